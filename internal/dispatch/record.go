package dispatch

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// RecordChannel is the local, dependency-free fallback: it logs the fully
// rendered message and reports success with a synthetic message ID, so an
// alert attempt always produces an auditable result even with zero external
// connectivity.
type RecordChannel struct{}

// NewRecordChannel creates the fallback channel.
func NewRecordChannel() *RecordChannel { return &RecordChannel{} }

func (c *RecordChannel) Name() string { return "record" }

func (c *RecordChannel) Send(ctx context.Context, phone, body string) (string, string, error) {
	log.Printf("dispatch: FALLBACK DELIVERY (no gateway)")
	log.Printf("dispatch: to: %s", phone)
	log.Printf("dispatch: message: %s", body)
	return "record-" + uuid.NewString(), "recorded", nil
}
