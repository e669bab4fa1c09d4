package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "MIRA", cfg.Persona)
	assert.Equal(t, 6, cfg.MinQuestions)
	assert.Equal(t, 12, cfg.MaxQuestions)
	assert.Equal(t, "generic", cfg.Role.Fallback)
	assert.Equal(t, "balanced", cfg.InterviewType.Fallback)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "MIRA", cfg.Persona)

	path := filepath.Join(t.TempDir(), "prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
persona: NOVA
min_questions: 3
max_questions: 5
role:
  fallback: any
  guidance:
    any: Ask about experience.
interview_type:
  fallback: any
  guidance:
    any: Mix it up.
`), 0o644))

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "NOVA", cfg.Persona)
	assert.Equal(t, "any", cfg.Role.Classify("Engineer"))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad yaml", "persona: [", "decode yaml"},
		{"no persona", "min_questions: 1\nmax_questions: 2\nrole: {fallback: a, guidance: {a: x}}\ninterview_type: {fallback: a, guidance: {a: x}}", "persona is required"},
		{"inverted bounds", "persona: X\nmin_questions: 5\nmax_questions: 2\nrole: {fallback: a, guidance: {a: x}}\ninterview_type: {fallback: a, guidance: {a: x}}", "question bounds"},
		{"unknown fallback", "persona: X\nmin_questions: 1\nmax_questions: 2\nrole: {fallback: b, guidance: {a: x}}\ninterview_type: {fallback: a, guidance: {a: x}}", `fallback "b"`},
		{"unknown rule guidance", "persona: X\nmin_questions: 1\nmax_questions: 2\nrole: {fallback: a, guidance: {a: x}, rules: [{keywords: [k], guidance: z}]}\ninterview_type: {fallback: a, guidance: {a: x}}", `unknown guidance "z"`},
		{"empty keywords", "persona: X\nmin_questions: 1\nmax_questions: 2\nrole: {fallback: a, guidance: {a: x}}\ninterview_type: {fallback: a, guidance: {a: x}, rules: [{guidance: a}]}", "no keywords"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
