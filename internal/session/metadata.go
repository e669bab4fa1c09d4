package session

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ExtractID pulls the sessionId field out of a participant metadata blob.
// Anything other than a JSON object with a non-blank string sessionId yields
// ok=false; the reason is logged, never returned.
func ExtractID(metadata string) (id string, ok bool) {
	if strings.TrimSpace(metadata) == "" {
		slog.Info("participant metadata empty, no session id")
		return "", false
	}

	var meta struct {
		SessionID *string `json:"sessionId"`
	}
	if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
		slog.Error("parse participant metadata", "error", err)
		return "", false
	}
	if meta.SessionID == nil || strings.TrimSpace(*meta.SessionID) == "" {
		slog.Info("participant metadata has no sessionId")
		return "", false
	}
	return strings.TrimSpace(*meta.SessionID), true
}
