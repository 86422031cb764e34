package domain

import "context"

type Notification struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// NotificationSink delivers a message to a person. Callers treat every
// failure as non-fatal.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}
