package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/campuspass/outpass-api/internal/observability"
)

// OutpassEvent is the payload published when an outpass changes state.
type OutpassEvent struct {
	Kind      string    `json:"kind"`
	OutpassID uint      `json:"outpass_id"`
	StudentID uint      `json:"student_id"`
	ActorID   uint      `json:"actor_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Notifier fans outpass events out to interested parties. Dispatch is best
// effort: a broker outage never fails the transition that triggered it.
type Notifier interface {
	Notify(ctx context.Context, event OutpassEvent)
}

type natsNotifier struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNotifier builds a NATS-backed notifier. A nil connection degrades to
// log-only dispatch, which keeps single-node deployments broker-free.
func NewNotifier(conn *nats.Conn, logger zerolog.Logger) Notifier {
	return &natsNotifier{
		conn:   conn,
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *natsNotifier) Notify(ctx context.Context, event OutpassEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error().Err(err).Uint("outpass_id", event.OutpassID).Msg("encode event")
		observability.Notifications().WithLabelValues("error").Inc()
		return
	}

	if n.conn == nil {
		n.logger.Info().
			Str("kind", event.Kind).
			Uint("outpass_id", event.OutpassID).
			Msg("event (no broker configured)")
		observability.Notifications().WithLabelValues("logged").Inc()
		return
	}

	subject := "outpass.events." + event.Kind
	if err := n.conn.Publish(subject, payload); err != nil {
		n.logger.Warn().Err(err).Str("subject", subject).Msg("publish event")
		observability.Notifications().WithLabelValues("error").Inc()
		return
	}

	observability.Notifications().WithLabelValues("published").Inc()
}
