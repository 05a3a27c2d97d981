// Package events publishes round-over notifications so scoreboards and
// other listeners can follow games without polling the server.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/huerush/internal/game"
)

// Notifier receives finished rounds.
type Notifier interface {
	RoundOver(ctx context.Context, r game.RoundResult) error
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) RoundOver(context.Context, game.RoundResult) error { return nil }
func (Nop) Close()                                            {}

// Publisher is the subset of *nats.Conn used by NATS.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATS publishes each result as JSON on a fixed subject.
type NATS struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
}

// Connect dials url and returns a NATS notifier.
func Connect(url, subject string) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("huerush-server"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATS{pub: nc, conn: nc, subject: subject}, nil
}

// NewNATS wraps an existing publisher (tests, shared connections).
func NewNATS(pub Publisher, subject string) *NATS {
	return &NATS{pub: pub, subject: subject}
}

func (n *NATS) RoundOver(ctx context.Context, r game.RoundResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return n.pub.Publish(n.subject, data)
}

// Close drains the owned connection, if any.
func (n *NATS) Close() {
	if n.conn != nil {
		_ = n.conn.Drain()
	}
}
