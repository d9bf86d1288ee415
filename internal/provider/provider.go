package provider

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one incremental unit of generated text. Content may be empty
// for bookkeeping frames the backend emits; consumers skip those.
type Chunk struct {
	Content string
}

type ModelInfo struct {
	Name              string `json:"name"`
	SizeBytes         int64  `json:"size_bytes"`
	Format            string `json:"format,omitempty"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameter_size,omitempty"`
	QuantizationLevel string `json:"quantization_level,omitempty"`
}

type Backend interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
	// ChatStream opens a token stream for the given model and ordered
	// history. Both channels are closed when the stream ends; a failure
	// at any point surfaces on the error channel.
	ChatStream(ctx context.Context, model string, history []Message) (<-chan Chunk, <-chan error)
}
