package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshilgor/testtaker-sub001/internal/logging"
)

func TestReadRaw(t *testing.T) {
	in := strings.NewReader(`{"skill":"Algebra","correct":true,"occurred_at":"2026-03-10T10:00:00Z"}

{"skill":"Vocabulary","is_correct":false,"timestamp":"2026-03-10 11:00:00"}
not json
{"skill":"Geometry","correct":"yes"}
`)
	raws, bad, err := readRaw(in, &runtime{log: logging.Nop()})
	require.NoError(t, err)
	assert.Equal(t, 2, bad)
	require.Len(t, raws, 2)
	assert.Equal(t, "Algebra", raws[0].Skill)
	assert.Equal(t, "Vocabulary", raws[1].Skill)
}
