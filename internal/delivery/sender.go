// Package delivery hands emitted notifications to channels outside the app.
package delivery

import (
	"context"
	"errors"
	"strings"

	"flulance/internal/models"
)

// ErrNoAddress means the contact has no address for this channel. The worker
// treats it as nothing to do.
var ErrNoAddress = errors.New("no address for channel")

// Message is the channel-neutral rendering of a notification.
type Message struct {
	Subject string
	Body    string
	Link    string
}

// Sender delivers one message to one contact.
type Sender interface {
	Name() string
	Send(ctx context.Context, contact models.DeliveryContact, msg Message) error
}

// NewMessage renders a notification. publicURL prefixes relative deep links.
func NewMessage(n *models.Notification, publicURL string) Message {
	msg := Message{Subject: n.Title, Body: n.Body}
	if n.Link != nil && *n.Link != "" {
		link := *n.Link
		if strings.HasPrefix(link, "/") && publicURL != "" {
			link = strings.TrimRight(publicURL, "/") + link
		}
		msg.Link = link
	}
	return msg
}
