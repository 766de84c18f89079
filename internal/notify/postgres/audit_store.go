package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// AuditStore appends every delivered order-state change to order_state_changes.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Record appends one row for state.
func (s *AuditStore) Record(ctx context.Context, state domain.OrderState) error {
	var detailJSON []byte
	if state.Valid {
		b, err := json.Marshal(state.RelevantState)
		if err != nil {
			return fmt.Errorf("postgres: marshal relevant state: %w", err)
		}
		detailJSON = b
	}

	const query = `INSERT INTO order_state_changes (order_hash, valid, reason, detail) VALUES ($1, $2, $3, $4)`
	_, err := s.pool.Exec(ctx, query, state.OrderHash.Hex(), state.Valid, string(state.Reason), detailJSON)
	if err != nil {
		return fmt.Errorf("postgres: record state change for %s: %w", state.OrderHash, err)
	}
	return nil
}

// Entry is one row of the audit trail, as returned by List.
type Entry struct {
	ID        int64
	OrderHash string
	Valid     bool
	Reason    string
	CreatedAt time.Time
}

// List returns the most recent audit entries, newest first, capped at limit.
func (s *AuditStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, order_hash, valid, reason, created_at FROM order_state_changes ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var reason *string
		if err := rows.Scan(&e.ID, &e.OrderHash, &e.Valid, &reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		if reason != nil {
			e.Reason = *reason
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit entries rows: %w", err)
	}
	return entries, nil
}
