// Package pgstore provides a PostgreSQL implementation of watcher.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/casebridge/internal/watcher"
)

var tracer = otel.Tracer("github.com/linnemanlabs/casebridge/internal/watcher/pgstore")

//go:embed schema.sql
var schema string

// Store persists watcher state and wake-up slots in PostgreSQL. The wake-up
// slot is a nullable column on the state row, so Delete atomically removes
// both, and a slot can never outlive its record.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool is owned by the
// caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get retrieves the state for a case id.
func (s *Store) Get(ctx context.Context, caseID string) (*watcher.State, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT case_id, routing_key, dedup_key, closed_at, incident_id, note_id, from_email
		FROM case_watchers WHERE case_id = $1`

	var st watcher.State
	var closedAt *time.Time
	err := s.pool.QueryRow(ctx, query, caseID).Scan(
		&st.CaseID, &st.RoutingKey, &st.DedupKey, &closedAt,
		&st.IncidentID, &st.NoteID, &st.FromEmail,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("get state: %w", err))
	}
	st.ClosedAt = closedAt
	return &st, true, nil
}

// Put upserts the state for st.CaseID, preserving the wake-up slot.
func (s *Store) Put(ctx context.Context, st *watcher.State) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "INSERT")
	defer span.End()

	query := `INSERT INTO case_watchers (case_id, routing_key, dedup_key, closed_at, incident_id, note_id, from_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (case_id) DO UPDATE SET
			routing_key = EXCLUDED.routing_key,
			dedup_key   = EXCLUDED.dedup_key,
			closed_at   = EXCLUDED.closed_at,
			incident_id = EXCLUDED.incident_id,
			note_id     = EXCLUDED.note_id,
			from_email  = EXCLUDED.from_email,
			updated_at  = now()`

	_, err := s.pool.Exec(ctx, query,
		st.CaseID, st.RoutingKey, st.DedupKey, st.ClosedAt,
		st.IncidentID, st.NoteID, st.FromEmail,
	)
	if err != nil {
		return fail(span, fmt.Errorf("put state: %w", err))
	}
	return nil
}

// Delete removes the state row, taking the wake-up slot with it.
func (s *Store) Delete(ctx context.Context, caseID string) error {
	ctx, span := startSpan(ctx, "pgstore.Delete", "DELETE")
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM case_watchers WHERE case_id = $1`, caseID); err != nil {
		return fail(span, fmt.Errorf("delete state: %w", err))
	}
	return nil
}

// SetWakeUp schedules the case's wake-up slot, replacing any existing one.
func (s *Store) SetWakeUp(ctx context.Context, caseID string, at time.Time) error {
	ctx, span := startSpan(ctx, "pgstore.SetWakeUp", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`UPDATE case_watchers SET wake_at = $2, updated_at = now() WHERE case_id = $1`,
		caseID, at,
	)
	if err != nil {
		return fail(span, fmt.Errorf("set wake-up: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fail(span, fmt.Errorf("set wake-up: no state for case %s", caseID))
	}
	return nil
}

// ClearWakeUp unschedules the case's wake-up slot, keeping the state.
func (s *Store) ClearWakeUp(ctx context.Context, caseID string) error {
	ctx, span := startSpan(ctx, "pgstore.ClearWakeUp", "UPDATE")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`UPDATE case_watchers SET wake_at = NULL, updated_at = now() WHERE case_id = $1`,
		caseID,
	)
	if err != nil {
		return fail(span, fmt.Errorf("clear wake-up: %w", err))
	}
	return nil
}

// Due returns up to limit case ids whose wake-up is at or before now,
// soonest first.
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ctx, span := startSpan(ctx, "pgstore.Due", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT case_id FROM case_watchers
		WHERE wake_at IS NOT NULL AND wake_at <= $1
		ORDER BY wake_at LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("scan due: %w", err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fail(span, fmt.Errorf("scan due row: %w", err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate due rows: %w", err))
	}
	return ids, nil
}
