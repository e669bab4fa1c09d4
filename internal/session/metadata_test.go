package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		wantID   string
		wantOK   bool
	}{
		{"valid", `{"sessionId":"66b1f0c2a4e5d6f7a8b9c0d1"}`, "66b1f0c2a4e5d6f7a8b9c0d1", true},
		{"extra fields", `{"sessionId":" abc ","sample_rate":16000}`, "abc", true},
		{"invalid json", `{not valid json`, "", false},
		{"empty", ``, "", false},
		{"blank id", `{"sessionId":"   "}`, "", false},
		{"missing field", `{"session":"abc"}`, "", false},
		{"numeric id", `{"sessionId":42}`, "", false},
		{"null", `null`, "", false},
		{"array", `["abc"]`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id string
			var ok bool
			assert.NotPanics(t, func() { id, ok = ExtractID(tt.metadata) })
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
