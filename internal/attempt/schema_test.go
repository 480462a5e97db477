package attempt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	raw, err := DecodeJSON([]byte(`{
		"skill": "Algebra",
		"correct": true,
		"difficulty": "easy",
		"occurred_at": "2026-03-01T10:00:00Z",
		"source": "quiz"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Algebra", raw.Skill)
	require.NotNil(t, raw.Correct)
	assert.True(t, *raw.Correct)

	ev, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, DifficultyEasy, ev.Difficulty)
	assert.Equal(t, SourceQuiz, ev.Source)
}

func TestDecodeJSON_NullSkillIsMalformedOnNormalize(t *testing.T) {
	raw, err := DecodeJSON([]byte(`{"skill": null, "occurred_at": "2026-03-01T10:00:00Z"}`))
	require.NoError(t, err)
	_, err = Normalize(raw)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecodeJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"skill":`},
		{"not an object", `["Algebra"]`},
		{"correct as string", `{"skill":"Algebra","correct":"yes"}`},
		{"negative millis", `{"skill":"Algebra","occurred_at_ms":-5}`},
		{"fractional millis", `{"skill":"Algebra","occurred_at_ms":1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}
