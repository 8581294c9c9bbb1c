package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"
)

// Sender is the outbound email transport. Implementations return the
// provider-assigned message ID on success.
type Sender interface {
	Send(ctx context.Context, from string, to []string, subject, html string) (string, error)
}

// ResendSender delivers email through the Resend API.
type ResendSender struct {
	client *resend.Client
}

func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

// Send implements Sender. The client's own HTTP timeout is the only dispatch
// timeout; a timeout error is an ordinary transport failure to the caller.
func (s *ResendSender) Send(ctx context.Context, from string, to []string, subject, html string) (string, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      to,
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return "", fmt.Errorf("sending via resend: %w", err)
	}
	return sent.Id, nil
}

// FromAddress formats a sender identity into RFC 5322 address form,
// "Name <email>" when a name is set.
func FromAddress(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
