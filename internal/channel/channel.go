// internal/channel/channel.go
package channel

import (
	"context"
	"fmt"

	"github.com/telinga/telinga-backend/internal/model"
)

// Client is the narrow boundary to an outbound provider. Send returns the
// provider message id; CheckStatus returns the provider's last-known status
// for that id, lowercased.
type Client interface {
	Send(ctx context.Context, to, body string) (string, error)
	CheckStatus(ctx context.Context, providerMessageID string) (string, error)
}

// Registry holds one client per channel.
type Registry map[model.Channel]Client

// ClientFor returns the client for the channel or an error for unknown ones.
func (r Registry) ClientFor(c model.Channel) (Client, error) {
	client, ok := r[c]
	if !ok {
		return nil, fmt.Errorf("no client registered for channel %s", c)
	}
	return client, nil
}

// Recipient picks the channel-appropriate address from a customer record.
func Recipient(c model.Channel, customer *model.Customer) string {
	if c == model.ChannelSMS {
		return customer.Phone
	}
	return customer.Email
}
