package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"sealtrack/internal/domain"
)

var ErrQueueFull = errors.New("notification queue full")

type Metrics interface {
	ObserveNotification(delivered bool)
}

// Dispatcher decouples callers from delivery: Notify only enqueues and
// Run drains the queue into the wrapped sink.
type Dispatcher struct {
	sink    domain.NotificationSink
	queue   chan domain.Notification
	timeout time.Duration
	logger  *zap.Logger
	metrics Metrics

	closeOnce sync.Once
	done      chan struct{}
}

func NewDispatcher(sink domain.NotificationSink, size int, logger *zap.Logger, metrics Metrics) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sink:    sink,
		queue:   make(chan domain.Notification, size),
		timeout: 30 * time.Second,
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) error {
	select {
	case <-d.done:
		return errors.New("notification dispatcher stopped")
	default:
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.observe(false)
		return ErrQueueFull
	}
}

// Run delivers queued notifications until ctx is cancelled, then drains
// whatever is still queued with a fresh deadline.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.closeOnce.Do(func() { close(d.done) })
	for {
		select {
		case n := <-d.queue:
			d.deliver(context.WithoutCancel(ctx), n)
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx))
			return nil
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.sink.Notify(ctx, n); err != nil {
		d.observe(false)
		d.logger.Warn("notification delivery failed", zap.String("recipient", n.Recipient), zap.Error(err))
		return
	}
	d.observe(true)
}

func (d *Dispatcher) observe(delivered bool) {
	if d.metrics != nil {
		d.metrics.ObserveNotification(delivered)
	}
}
