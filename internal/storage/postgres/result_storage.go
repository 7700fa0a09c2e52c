package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/models"
)

const resultInsertChunk = 500

// ResultStorage implements PostgreSQL storage for discovered matches
type ResultStorage struct {
	db     *PostgresDB
	logger arbor.ILogger
}

// NewResultStorage creates a new result storage instance
func NewResultStorage(db *PostgresDB, logger arbor.ILogger) *ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

// InsertMatches persists discovered matches for a job. Inserts are keyed on
// (job_id, hash_hex) with ON CONFLICT DO NOTHING, so replayed work units
// leave the table unchanged.
func (s *ResultStorage) InsertMatches(ctx context.Context, jobID uuid.UUID, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(matches); start += resultInsertChunk {
		end := start + resultInsertChunk
		if end > len(matches) {
			end = len(matches)
		}
		chunk := matches[start:end]

		query := fmt.Sprintf(
			`INSERT INTO results (job_id, hash_hex, phone_number, found_at) VALUES %s
			 ON CONFLICT (job_id, hash_hex) DO NOTHING`,
			valueTuplesWithNow(1, len(chunk), 3),
		)
		args := make([]interface{}, 0, len(chunk)*3)
		for _, m := range chunk {
			args = append(args, jobID, m.HashHex, m.Phone)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert matches: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit matches: %w", err)
	}

	s.logger.Debug().
		Str("job_id", jobID.String()).
		Int("matches", len(matches)).
		Msg("Matches persisted")
	return nil
}

// GetResultRows returns one row per target of the job, left-joined against
// discovered matches, ordered by fingerprint. Unresolved targets carry the
// NOT FOUND placeholder.
func (s *ResultStorage) GetResultRows(ctx context.Context, jobID uuid.UUID) ([]models.ResultRow, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT t.hash_hex, COALESCE(r.phone_number, $2) AS phone
		 FROM targets t
		 LEFT JOIN results r ON r.job_id = t.job_id AND r.hash_hex = t.hash_hex
		 WHERE t.job_id = $1
		 ORDER BY t.hash_hex`,
		jobID, models.NotFoundPlaceholder,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query result rows: %w", err)
	}
	defer rows.Close()

	results := []models.ResultRow{}
	for rows.Next() {
		var row models.ResultRow
		if err := rows.Scan(&row.HashHex, &row.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// valueTuplesWithNow builds insert tuples whose last column is now():
// "($1, $2, $3, now()), ($4, $5, $6, now())".
func valueTuplesWithNow(start, count, width int) string {
	out := ""
	for i := 0; i < count; i++ {
		if i > 0 {
			out += ", "
		}
		out += "(" + placeholderList(start+i*width, width) + ", now())"
	}
	return out
}
