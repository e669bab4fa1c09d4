package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMarshalIsFlat(t *testing.T) {
	data, err := json.Marshal(Event{
		Type:  EventTranscript,
		Data:  map[string]any{"text": "hello", "type": "ignored"},
		Audio: []byte{1, 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"transcript","text":"hello"}`, string(data))
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.AllowInterruptions)
	assert.Positive(t, opts.EndOfTurnSilence)
	assert.Empty(t, opts.Greeting)
}
