package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mwillard/beacon/internal/events"
)

// handleSSE streams audit log events to the client by polling the log for
// rows past the watermark seen at connect time.
func handleSSE(audit *events.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// No audit log wired: connected frame only.
		if audit == nil {
			return
		}

		// Only stream events newer than the connect watermark.
		var lastSeenID uint
		if recent, err := audit.Recent(1); err == nil && len(recent) > 0 {
			lastSeenID = recent[0].ID
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(2 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				fresh, err := audit.Since(lastSeenID)
				if err != nil || len(fresh) == 0 {
					continue
				}
				lastSeenID = fresh[len(fresh)-1].ID
				for _, ev := range fresh {
					writeSSE(c.Writer, ev.Kind, ev)
				}
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
