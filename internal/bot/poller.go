package bot

import (
	"context"
	"log"
	"time"
)

// Poller drives the handler from getUpdates long polling. The alternative
// webhook mode is served by the HTTP router instead.
type Poller struct {
	client  *Client
	handler *Handler
	timeout time.Duration
}

func NewPoller(client *Client, handler *Handler) *Poller {
	return &Poller{client: client, handler: handler, timeout: 50 * time.Second}
}

// Run blocks until ctx is cancelled. Transport errors back off briefly and
// the loop continues; updates are acknowledged by advancing the offset.
func (p *Poller) Run(ctx context.Context) error {
	// Polling and webhook modes are mutually exclusive on the API side.
	if err := p.client.DeleteWebhook(ctx); err != nil {
		log.Printf("delete webhook: %v", err)
	}

	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("get updates: %v", err)
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		for _, upd := range updates {
			offset = upd.UpdateID + 1
			p.handler.HandleUpdate(ctx, upd)
		}
	}
}
