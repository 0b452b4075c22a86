// Package notify is the fire-and-forget boundary between business operations
// and outbound student messages. Callers enqueue and move on; the consumer
// worker drains the queue and performs the actual delivery.
package notify

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Message is the queue payload for one outbound notification.
type Message struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Queue is the producing side of the notification queue.
type Queue interface {
	Publish(message []byte) error
}

// Dispatcher enqueues notifications. Enqueue failures are logged and
// swallowed: the triggering operation never branches on notification outcome.
type Dispatcher struct {
	queue Queue
	log   *zerolog.Logger

	// BulkDelay spaces out sends of a broadcast to stay under the
	// transport's rate limit.
	BulkDelay time.Duration
}

const defaultBulkDelay = 100 * time.Millisecond

func NewDispatcher(queue Queue, log *zerolog.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, log: log, BulkDelay: defaultBulkDelay}
}

func (d *Dispatcher) Notify(chatID int64, text string) {
	payload, err := json.Marshal(Message{ChatID: chatID, Text: text})
	if err != nil {
		d.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to marshal notification")
		return
	}
	if err := d.queue.Publish(payload); err != nil {
		d.log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to enqueue notification")
	}
}

// Broadcast enqueues a batch of notifications with a fixed delay between
// sends. One recipient failing never aborts the rest; the tallies are
// returned for logging.
func (d *Dispatcher) Broadcast(msgs []Message) (sent, failed int) {
	for i, m := range msgs {
		if i > 0 && d.BulkDelay > 0 {
			time.Sleep(d.BulkDelay)
		}
		payload, err := json.Marshal(m)
		if err != nil {
			d.log.Error().Err(err).Int64("chat_id", m.ChatID).Msg("failed to marshal notification")
			failed++
			continue
		}
		if err := d.queue.Publish(payload); err != nil {
			d.log.Warn().Err(err).Int64("chat_id", m.ChatID).Msg("failed to enqueue notification")
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}
