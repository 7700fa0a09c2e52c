package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkUnitCodec(t *testing.T) {
	unit := WorkUnit{
		JobID:      uuid.New(),
		BatchIndex: 3,
		Hashes:     []string{"0cc175b9c0f1b6a831c399e269772661"},
	}

	body, err := EncodeWorkUnit(unit)
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &wire))
	assert.Equal(t, "work_unit", wire["type"])
	assert.Equal(t, float64(1), wire["version"])

	decoded, err := DecodeWorkUnit(body)
	require.NoError(t, err)
	assert.Equal(t, unit, decoded)
}

func TestResultEnvelopeCodec(t *testing.T) {
	env := ResultEnvelope{
		JobID:      uuid.New(),
		BatchIndex: 0,
		Matches: []Match{
			{HashHex: "0cc175b9c0f1b6a831c399e269772661", Phone: "13512345678"},
		},
	}

	body, err := EncodeResultEnvelope(env)
	require.NoError(t, err)

	decoded, err := DecodeResultEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestDecode_RejectsForeignType(t *testing.T) {
	body, err := EncodeWorkUnit(WorkUnit{JobID: uuid.New()})
	require.NoError(t, err)

	_, err = DecodeResultEnvelope(body)
	assert.ErrorContains(t, err, "unexpected message type")

	envBody, err := EncodeResultEnvelope(ResultEnvelope{JobID: uuid.New()})
	require.NoError(t, err)

	_, err = DecodeWorkUnit(envBody)
	assert.ErrorContains(t, err, "unexpected message type")
}

func TestDecode_RejectsUnsupportedVersion(t *testing.T) {
	body := []byte(`{"type":"work_unit","version":2,"jobId":"` + uuid.NewString() + `","batchIndex":0}`)
	_, err := DecodeWorkUnit(body)
	assert.ErrorContains(t, err, "unsupported message version")
}

func TestDecode_RejectsNegativeBatchIndex(t *testing.T) {
	body := []byte(`{"type":"work_unit","version":1,"jobId":"` + uuid.NewString() + `","batchIndex":-1}`)
	_, err := DecodeWorkUnit(body)
	assert.ErrorContains(t, err, "batch index")
}

func TestDecode_RejectsBadJobID(t *testing.T) {
	body := []byte(`{"type":"work_unit","version":1,"jobId":"not-a-uuid","batchIndex":0}`)
	_, err := DecodeWorkUnit(body)
	assert.ErrorContains(t, err, "invalid job id")
}

func TestDecode_RejectsMalformedJSON(t *testing.T) {
	_, err := DecodeWorkUnit([]byte("{"))
	assert.Error(t, err)

	_, err = DecodeResultEnvelope([]byte("not json"))
	assert.Error(t, err)
}

func TestEncode_RejectsNegativeBatchIndex(t *testing.T) {
	_, err := EncodeWorkUnit(WorkUnit{JobID: uuid.New(), BatchIndex: -1})
	assert.Error(t, err)

	_, err = EncodeResultEnvelope(ResultEnvelope{JobID: uuid.New(), BatchIndex: -2})
	assert.Error(t, err)
}
