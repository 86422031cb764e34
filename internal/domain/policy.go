package domain

type AccessAction string

const (
	ActionView   AccessAction = "view"
	ActionEdit   AccessAction = "edit"
	ActionSign   AccessAction = "sign"
	ActionVerify AccessAction = "verify"
	ActionReject AccessAction = "reject"
)

type PolicyPrincipal struct {
	Subject string   `json:"subject"`
	Email   string   `json:"email"`
	Roles   []string `json:"roles"`
}

type PolicyDocument struct {
	ID           string   `json:"id"`
	CreatedBy    string   `json:"created_by"`
	Status       string   `json:"status"`
	SignerEmails []string `json:"signer_emails"`
}

type PolicyInput struct {
	Action    AccessAction    `json:"action"`
	Principal PolicyPrincipal `json:"principal"`
	Document  PolicyDocument  `json:"document"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

// NewPolicyInput projects a principal and document into the policy input
// document. Emails are normalized so the policy can compare them directly.
func NewPolicyInput(action AccessAction, principal Principal, doc Document) PolicyInput {
	emails := make([]string, 0, len(doc.Signers))
	for _, s := range doc.Signers {
		emails = append(emails, NormalizeEmail(s.Email))
	}
	roles := principal.Roles
	if roles == nil {
		roles = []string{}
	}
	return PolicyInput{
		Action: action,
		Principal: PolicyPrincipal{
			Subject: principal.Subject,
			Email:   NormalizeEmail(principal.Email),
			Roles:   roles,
		},
		Document: PolicyDocument{
			ID:           doc.ID,
			CreatedBy:    doc.CreatedBy,
			Status:       string(doc.Status),
			SignerEmails: emails,
		},
	}
}
