// Package dispatch renders alert messages and delivers them to emergency
// contacts over a primary channel with a local fallback.
package dispatch

import "context"

// Channel is one delivery path for an alert message. Send must honor ctx
// cancellation; the dispatcher bounds each call with a timeout at the call
// site.
type Channel interface {
	// Name identifies the channel in delivery records ("sms", "slack", ...).
	Name() string

	// Send delivers body to the recipient identified by phone. It returns
	// the provider-assigned message ID and delivery status on success.
	Send(ctx context.Context, phone, body string) (providerID, status string, err error)
}
