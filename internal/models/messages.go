package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Message type discriminators and the current schema version. Both queues
// carry the same tagged wire record; consumers reject unknown types and
// versions instead of guessing.
const (
	MessageTypeWorkUnit       = "work_unit"
	MessageTypeResultEnvelope = "result_envelope"
	MessageVersion            = 1
)

// WorkUnit is one dispatched slice of a job's fingerprints, identified by
// (JobID, BatchIndex).
type WorkUnit struct {
	JobID      uuid.UUID
	BatchIndex int
	Hashes     []string
}

// Match is a single resolved fingerprint.
type Match struct {
	HashHex string `json:"hash"`
	Phone   string `json:"phone"`
}

// ResultEnvelope is a worker's per-unit answer: every match discovered in
// the unit identified by (JobID, BatchIndex). An empty Matches list is a
// valid envelope and still advances job progress.
type ResultEnvelope struct {
	JobID      uuid.UUID
	BatchIndex int
	Matches    []Match
}

// wireMessage is the tagged on-the-wire form shared by both queues.
type wireMessage struct {
	Type       string  `json:"type"`
	Version    int     `json:"version"`
	JobID      string  `json:"jobId"`
	BatchIndex int     `json:"batchIndex"`
	Hashes     []string `json:"hashes,omitempty"`
	Matches    []Match  `json:"matches,omitempty"`
}

// EncodeWorkUnit serializes a work unit for publication.
func EncodeWorkUnit(unit WorkUnit) ([]byte, error) {
	if unit.BatchIndex < 0 {
		return nil, fmt.Errorf("batch index must be non-negative, got %d", unit.BatchIndex)
	}
	return json.Marshal(wireMessage{
		Type:       MessageTypeWorkUnit,
		Version:    MessageVersion,
		JobID:      unit.JobID.String(),
		BatchIndex: unit.BatchIndex,
		Hashes:     unit.Hashes,
	})
}

// DecodeWorkUnit deserializes a work unit, rejecting foreign or future
// message schemas.
func DecodeWorkUnit(data []byte) (WorkUnit, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return WorkUnit{}, fmt.Errorf("failed to decode work unit: %w", err)
	}
	if err := checkHeader(msg, MessageTypeWorkUnit); err != nil {
		return WorkUnit{}, err
	}
	jobID, err := uuid.Parse(msg.JobID)
	if err != nil {
		return WorkUnit{}, fmt.Errorf("invalid job id %q: %w", msg.JobID, err)
	}
	return WorkUnit{
		JobID:      jobID,
		BatchIndex: msg.BatchIndex,
		Hashes:     msg.Hashes,
	}, nil
}

// EncodeResultEnvelope serializes a result envelope for publication.
func EncodeResultEnvelope(env ResultEnvelope) ([]byte, error) {
	if env.BatchIndex < 0 {
		return nil, fmt.Errorf("batch index must be non-negative, got %d", env.BatchIndex)
	}
	return json.Marshal(wireMessage{
		Type:       MessageTypeResultEnvelope,
		Version:    MessageVersion,
		JobID:      env.JobID.String(),
		BatchIndex: env.BatchIndex,
		Matches:    env.Matches,
	})
}

// DecodeResultEnvelope deserializes a result envelope.
func DecodeResultEnvelope(data []byte) (ResultEnvelope, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ResultEnvelope{}, fmt.Errorf("failed to decode result envelope: %w", err)
	}
	if err := checkHeader(msg, MessageTypeResultEnvelope); err != nil {
		return ResultEnvelope{}, err
	}
	jobID, err := uuid.Parse(msg.JobID)
	if err != nil {
		return ResultEnvelope{}, fmt.Errorf("invalid job id %q: %w", msg.JobID, err)
	}
	return ResultEnvelope{
		JobID:      jobID,
		BatchIndex: msg.BatchIndex,
		Matches:    msg.Matches,
	}, nil
}

func checkHeader(msg wireMessage, wantType string) error {
	if msg.Type != wantType {
		return fmt.Errorf("unexpected message type %q, want %q", msg.Type, wantType)
	}
	if msg.Version != MessageVersion {
		return fmt.Errorf("unsupported message version %d", msg.Version)
	}
	if msg.BatchIndex < 0 {
		return fmt.Errorf("batch index must be non-negative, got %d", msg.BatchIndex)
	}
	return nil
}
