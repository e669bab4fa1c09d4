// Package prompts renders the interviewer system prompt from a session record.
package prompts

// DefaultFallback is the generic prompt used whenever no session-specific
// prompt can be produced.
const DefaultFallback = "You are MIRA, an AI interview assistant. You are conducting an interview session. Be professional, ask relevant questions, and provide constructive feedback."

// Fallback returns prompt, or DefaultFallback when prompt is empty.
func Fallback(prompt string) string {
	if prompt != "" {
		return prompt
	}
	return DefaultFallback
}
