package hub

import (
	"context"
	"errors"
	"io"

	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/rs/zerolog/log"
)

// Tap attaches an in-process listener that receives every message published
// after the call, in order, until ctx is cancelled or the hub closes.
// fn runs on the tap's own goroutine.
func (h *Hub) Tap(ctx context.Context, name string, fn func(events.Message)) error {
	sub, err := h.SubscribeChannel()
	if err != nil {
		return err
	}

	go func() {
		defer h.Unsubscribe(sub.ID())
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
					log.Warn().Err(err).Str("tap", name).Msg("tap stopped")
				}
				return
			}
			if n := sub.TakeDropped(); n > 0 {
				log.Debug().Str("tap", name).Uint64("dropped", n).Msg("tap fell behind")
			}
			fn(msg)
		}
	}()

	log.Debug().Str("tap", name).Str("subscriber_id", sub.ID()).Msg("tap attached")
	return nil
}
