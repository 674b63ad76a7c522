package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/mwillard/beacon/internal/config"
	"github.com/mwillard/beacon/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultSendTimeout bounds one delivery attempt to one contact.
const DefaultSendTimeout = 15 * time.Second

// Dispatcher delivers a rendered alert to every enabled contact. Delivery to
// each contact is independent: a slow or failing contact never blocks the
// others, and one failure never fails the whole dispatch.
type Dispatcher struct {
	primary     Channel // nil when no gateway is configured
	fallback    Channel
	sendTimeout time.Duration
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	Primary     Channel // optional; fallback-only dispatch when nil
	Fallback    Channel // defaults to RecordChannel
	SendTimeout time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) *Dispatcher {
	if opts.Fallback == nil {
		opts.Fallback = NewRecordChannel()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		primary:     opts.Primary,
		fallback:    opts.Fallback,
		sendTimeout: opts.SendTimeout,
	}
}

// FromConfig builds a Dispatcher with the configured primary channel.
// Missing credentials leave the primary nil: every delivery then goes through
// the local record fallback, which is an expected mode, not an error.
func FromConfig(cfg *config.Config) *Dispatcher {
	var primary Channel
	var err error

	switch cfg.Channels.Primary {
	case "sms":
		primary, err = NewSMSChannel(cfg.Channels.SMS)
	case "slack":
		primary, err = NewSlackChannel(cfg.Channels.Slack)
	case "discord":
		primary, err = NewDiscordChannel(cfg.Channels.Discord)
	case "record":
		// Fallback-only by explicit choice.
	}
	if err != nil {
		log.Printf("dispatch: primary channel %q unavailable: %v (using record fallback)", cfg.Channels.Primary, err)
		primary = nil
	}

	return NewDispatcher(DispatcherOpts{Primary: primary})
}

// Dispatch renders tmpl against vars and fans the message out to every
// enabled contact, returning exactly one Delivery per enabled contact in the
// contacts' order. Disabled contacts are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, tmpl *models.Template, vars map[string]string, contacts []models.Contact) []models.Delivery {
	body := Render(tmpl.Body, vars)

	var enabled []models.Contact
	for _, c := range contacts {
		if c.Enabled {
			enabled = append(enabled, c)
		} else {
			log.Printf("dispatch: skipping disabled contact %s", c.Name)
		}
	}

	results := make([]models.Delivery, len(enabled))
	var g errgroup.Group
	for i, c := range enabled {
		i, c := i, c
		g.Go(func() error {
			results[i] = d.sendOne(ctx, c, body)
			return nil
		})
	}
	g.Wait()

	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	log.Printf("dispatch: emergency messages sent: %d/%d successful", successful, len(results))
	return results
}

// sendOne attempts delivery to a single contact: primary channel first, then
// the local fallback on gateway error or absence of a gateway.
func (d *Dispatcher) sendOne(ctx context.Context, contact models.Contact, body string) models.Delivery {
	del := models.Delivery{
		ContactName:  contact.Name,
		ContactPhone: contact.Phone,
		SentAt:       time.Now(),
	}

	if d.primary != nil {
		providerID, status, err := d.sendVia(ctx, d.primary, contact.Phone, body)
		if err == nil {
			del.Channel = d.primary.Name()
			del.Success = true
			del.ProviderID = providerID
			del.Status = status
			log.Printf("dispatch: message sent to %s via %s: %s", contact.Name, d.primary.Name(), providerID)
			return del
		}
		log.Printf("dispatch: %s delivery to %s failed: %v (falling back)", d.primary.Name(), contact.Name, err)
	}

	providerID, status, err := d.sendVia(ctx, d.fallback, contact.Phone, body)
	if err != nil {
		del.Channel = d.fallback.Name()
		del.Success = false
		del.Error = err.Error()
		del.Status = "failed"
		return del
	}
	del.Channel = d.fallback.Name()
	del.Success = true
	del.ProviderID = providerID
	del.Status = status
	return del
}

// sendVia calls one channel under the dispatcher's per-send timeout.
func (d *Dispatcher) sendVia(ctx context.Context, ch Channel, phone, body string) (string, string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return ch.Send(callCtx, phone, body)
}
