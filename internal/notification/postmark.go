package notification

import (
	"context"
	"fmt"
	"html"

	"github.com/keighl/postmark"
)

// emailSender is the part of the Postmark client we use.
type emailSender interface {
	SendEmail(email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkNotifier delivers messages as email through Postmark.
type PostmarkNotifier struct {
	client emailSender
	from   string
}

// NewPostmarkNotifier builds a notifier for the given server token and sender
// address.
func NewPostmarkNotifier(serverToken, from string) *PostmarkNotifier {
	return &PostmarkNotifier{client: postmark.NewClient(serverToken, ""), from: from}
}

// Send renders the message and hands it to Postmark.
func (n *PostmarkNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	htmlBody := "<p>" + html.EscapeString(message.Body) + "</p>"
	textBody := message.Body
	if message.Link != "" {
		htmlBody += fmt.Sprintf(`<p><a href="%s">%s</a></p>`, html.EscapeString(message.Link), html.EscapeString(message.Link))
		textBody += "\n\n" + message.Link
	}

	_, err := n.client.SendEmail(postmark.Email{
		From:     n.from,
		To:       message.Destination,
		Subject:  message.Subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
		Tag:      message.Kind,
	})
	if err != nil {
		return fmt.Errorf("send %s email: %w", message.Kind, err)
	}
	return nil
}
