package session

import (
	"alpaca/internal/provider"
	"alpaca/internal/storage"
)

// AssembleHistory builds the ordered history handed to the model
// backend. When a preset is active its system prompt is prepended as a
// synthetic leading message; that message is never written to storage.
func AssembleHistory(msgs []storage.Message, preset *storage.CustomModel) []provider.Message {
	out := make([]provider.Message, 0, len(msgs)+1)
	if preset != nil {
		out = append(out, provider.Message{
			Role:    storage.RoleSystem,
			Content: preset.SystemPrompt,
		})
	}
	for _, m := range msgs {
		out = append(out, provider.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
