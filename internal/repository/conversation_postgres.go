package repository

import (
	"context"
	"fmt"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository is the write-only audit log of handled messages
type ConversationRepository interface {
	SaveEvent(ctx context.Context, event entity.ConversationEvent) error
	SaveSafetyLog(ctx context.Context, log entity.SafetyLog) error
}

var _ ConversationRepository = &ConversationPostgres{}

// ConversationPostgres implements ConversationRepository using PostgreSQL
type ConversationPostgres struct {
	db *pgxpool.Pool
}

func NewConversationPostgres(db *pgxpool.Pool) *ConversationPostgres {
	return &ConversationPostgres{db: db}
}

func (r *ConversationPostgres) SaveEvent(ctx context.Context, event entity.ConversationEvent) error {
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		return fmt.Errorf("parse event ID: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO conversation_events (id, sender_id, input, output, kind, route, outcome, sources, image_included, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`,
		eventID,
		event.SenderID,
		event.Input,
		event.Output,
		string(event.Kind),
		string(event.Route),
		string(event.Outcome),
		nonNil(event.Sources),
		event.ImageIncluded,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save conversation event: %w", err)
	}
	return nil
}

func (r *ConversationPostgres) SaveSafetyLog(ctx context.Context, log entity.SafetyLog) error {
	logID, err := uuid.Parse(log.ID)
	if err != nil {
		return fmt.Errorf("parse safety log ID: %w", err)
	}
	eventID, err := uuid.Parse(log.EventID)
	if err != nil {
		return fmt.Errorf("parse event ID: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO safety_logs (id, event_id, sender_id, query, sources, grounded, complexity, image_included, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		logID,
		eventID,
		log.SenderID,
		log.Query,
		nonNil(log.Sources),
		log.Grounded,
		string(log.Complexity),
		log.ImageIncluded,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save safety log: %w", err)
	}
	return nil
}

// nonNil keeps NOT NULL text[] columns from receiving a SQL NULL.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
