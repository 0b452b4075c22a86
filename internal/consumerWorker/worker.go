// Package consumerWorker drains the notification queue and delivers each
// message to the student's chat.
package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"github.com/NegroPrimo123/Students-Bot/internal/notify"
	"github.com/NegroPrimo123/Students-Bot/internal/rabbit"
)

// Sender delivers one text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Reader struct {
	RMQ    *rabbit.Client
	sender Sender
	done   chan struct{}
	cancel context.CancelFunc
}

func NewReader(rmq *rabbit.Client, sender Sender) *Reader {
	return &Reader{
		RMQ:    rmq,
		sender: sender,
		done:   make(chan struct{}),
	}
}

// Start consumes until the context is cancelled. Delivery failures are logged
// and the message dropped; a dead chat must not wedge the queue.
func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("🐇 notification reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var msg notify.Message
			if err := json.Unmarshal(body, &msg); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("failed to unmarshal notification: %s", string(body))
				return nil
			}

			if err := r.sender.Send(cctx, msg.ChatID, msg.Text); err != nil {
				zlog.Logger.Error().
					Err(err).
					Int64("chat_id", msg.ChatID).
					Msg("failed to deliver notification")
				return nil
			}

			zlog.Logger.Info().
				Int64("chat_id", msg.ChatID).
				Msg("📨 notification delivered")
			return nil
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("🛑 notification reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
