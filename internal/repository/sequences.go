package repository

import (
	"context"
	"fmt"

	"github.com/brasillegalize/agency-server/internal/database"
)

// SequenceRepository hands out per-scope counters for human-readable ids
type SequenceRepository struct {
	db database.Querier
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db database.Querier) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next increments and returns the counter for scope. The upsert is a single
// statement, so concurrent callers always receive distinct values.
func (r *SequenceRepository) Next(ctx context.Context, scope string) (int64, error) {
	query := `
		INSERT INTO id_sequences (scope, value) VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE SET value = id_sequences.value + 1
		RETURNING value
	`
	var n int64
	if err := r.db.QueryRow(ctx, query, scope).Scan(&n); err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", scope, err)
	}
	return n, nil
}
