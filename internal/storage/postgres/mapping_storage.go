package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/models"
)

// MappingStorage reads the precomputed fingerprint-to-phone mapping. The
// table is populated by an offline loader and is read-only at runtime.
type MappingStorage struct {
	db     *PostgresDB
	logger arbor.ILogger
}

// NewMappingStorage creates a new mapping storage instance
func NewMappingStorage(db *PostgresDB, logger arbor.ILogger) *MappingStorage {
	return &MappingStorage{
		db:     db,
		logger: logger,
	}
}

// LookupBatch resolves a unit's fingerprints in one round-trip against the
// indexed binary primary key. Fingerprints that fail hex decoding are
// skipped; they can never have a mapping entry.
func (s *MappingStorage) LookupBatch(ctx context.Context, hashesHex []string) ([]models.Match, error) {
	if len(hashesHex) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(hashesHex))
	for _, h := range hashesHex {
		b, err := models.FingerprintBytes(strings.TrimSpace(h))
		if err != nil {
			s.logger.Warn().Str("hash", h).Msg("Skipping undecodable fingerprint in lookup batch")
			continue
		}
		args = append(args, b)
	}
	if len(args) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT encode(md5_hash, 'hex') AS md5_hex, phone_number
		 FROM md5_phone_map_bin
		 WHERE md5_hash IN (%s)`,
		placeholderList(1, len(args)),
	)

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.HashHex, &m.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan mapping row: %w", err)
		}
		// CHAR(11) pads shorter phone numbers with trailing spaces
		m.Phone = strings.TrimRight(m.Phone, " ")
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
