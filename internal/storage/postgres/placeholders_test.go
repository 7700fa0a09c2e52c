package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholderList(t *testing.T) {
	assert.Equal(t, "$1", placeholderList(1, 1))
	assert.Equal(t, "$1, $2, $3", placeholderList(1, 3))
	assert.Equal(t, "$5, $6", placeholderList(5, 2))
}

func TestValueTuples(t *testing.T) {
	assert.Equal(t, "($1, $2)", valueTuples(1, 1, 2))
	assert.Equal(t, "($1, $2), ($3, $4)", valueTuples(1, 2, 2))
	assert.Equal(t, "($1, $2, $3), ($4, $5, $6)", valueTuples(1, 2, 3))
}

func TestValueTuplesWithNow(t *testing.T) {
	assert.Equal(t, "($1, $2, $3, now())", valueTuplesWithNow(1, 1, 3))
	assert.Equal(t, "($1, $2, $3, now()), ($4, $5, $6, now())", valueTuplesWithNow(1, 2, 3))
}
