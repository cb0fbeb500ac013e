package audit

import (
	"time"

	"github.com/rs/zerolog"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger writes one structured audit line per state-changing event.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Str("component", "audit").Logger()}
}

func (a *Logger) LogSync(passID, userID, status string, persisted, skipped int) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: "SYNC_PASS",
		Reference: passID,
		UserID:    userID,
		Status:    status,
		Details: map[string]int{
			"persisted": persisted,
			"skipped":   skipped,
		},
	})
}

func (a *Logger) LogCheckout(orderID, userID, planID, grossAmount string) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: "CHECKOUT",
		Reference: orderID,
		UserID:    userID,
		Status:    "pending",
		Details: map[string]string{
			"plan_id":      planID,
			"gross_amount": grossAmount,
		},
	})
}

func (a *Logger) LogReconciliation(orderID, userID, from, to string) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: "RECONCILIATION",
		Reference: orderID,
		UserID:    userID,
		Status:    to,
		Details:   map[string]string{"from": from},
	})
}

func (a *Logger) LogError(reference, userID string, err error) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		Reference: reference,
		UserID:    userID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) write(event Event) {
	a.log.Info().
		Time("event_ts", event.Timestamp).
		Str("event_type", event.EventType).
		Str("reference", event.Reference).
		Str("user_id", event.UserID).
		Str("status", event.Status).
		Interface("details", event.Details).
		Msg("AUDIT")
}
