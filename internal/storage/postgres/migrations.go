package postgres

import "fmt"

// migrations are applied in order on every startup; each statement is
// idempotent so a restart never fails on existing objects.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		job_id            UUID PRIMARY KEY,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		status            TEXT NOT NULL DEFAULT 'RUNNING',
		total_hashes      INT NOT NULL DEFAULT 0,
		batches_expected  INT NOT NULL DEFAULT 0,
		batches_completed INT NOT NULL DEFAULT 0,
		found_count       INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS targets (
		job_id   UUID NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
		hash_hex CHAR(32) NOT NULL,
		PRIMARY KEY (job_id, hash_hex)
	)`,
	`CREATE TABLE IF NOT EXISTS results (
		job_id       UUID NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
		hash_hex     CHAR(32) NOT NULL,
		phone_number TEXT NOT NULL,
		found_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (job_id, hash_hex)
	)`,
	`CREATE TABLE IF NOT EXISTS processed_batches (
		job_id      UUID NOT NULL REFERENCES jobs(job_id) ON DELETE CASCADE,
		batch_index INT NOT NULL,
		PRIMARY KEY (job_id, batch_index)
	)`,
	// The mapping table is populated by the offline loader; the schema is
	// declared here so a fresh environment comes up without manual DDL.
	`CREATE TABLE IF NOT EXISTS md5_phone_map_bin (
		md5_hash     BYTEA PRIMARY KEY,
		phone_number CHAR(11) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_md5_phone_map_bin_phone ON md5_phone_map_bin (phone_number)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at DESC)`,
}

// migrate applies all schema migrations
func (p *PostgresDB) migrate() error {
	for i, stmt := range migrations {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	p.logger.Debug().Int("migrations", len(migrations)).Msg("Schema migrations applied")
	return nil
}
