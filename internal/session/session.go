package session

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"alpaca/internal/metrics"
	"alpaca/internal/provider"
	"alpaca/internal/storage"
)

const (
	EventConnected        = "connected"
	EventResponseStart    = "response_start"
	EventResponseChunk    = "response_chunk"
	EventResponseComplete = "response_complete"
	EventError            = "error"
)

// Channel is the per-client event channel an exchange pushes output to.
// Emit must deliver in call order to a connected client and be a silent
// no-op once the client is gone.
type Channel interface {
	Emit(event string, payload any)
}

type SendMessageRequest struct {
	ChatID  int64  `json:"chat_id"`
	Message string `json:"message"`
	Model   string `json:"model"`
}

type StartPayload struct {
	ChatID int64 `json:"chat_id"`
}

type ChunkPayload struct {
	ChatID  int64  `json:"chat_id"`
	Content string `json:"content"`
}

type CompletePayload struct {
	ChatID int64 `json:"chat_id"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

type StatusPayload struct {
	Status string `json:"status"`
}

// Runner drives one message exchange per Run call: persist the user
// message, stream the model response to the channel, and commit the
// assistant message once the stream completes.
type Runner struct {
	store        *storage.Store
	backend      provider.Backend
	chunkTimeout time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

type Config struct {
	Store        *storage.Store
	Backend      provider.Backend
	ChunkTimeout time.Duration
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
}

func New(cfg Config) *Runner {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = 2 * time.Minute
	}
	return &Runner{
		store:        cfg.Store,
		backend:      cfg.Backend,
		chunkTimeout: cfg.ChunkTimeout,
		logger:       cfg.Logger,
		metrics:      m,
	}
}

// Run executes one exchange. It blocks until the exchange completes or
// fails; callers start one goroutine per inbound send_message event.
// The channel may disconnect mid-stream; the generation still runs to
// completion and its result is persisted.
func (r *Runner) Run(ctx context.Context, ch Channel, req SendMessageRequest) {
	r.metrics.ExchangesStarted.Inc()
	log := r.logger.With().Int64("chat_id", req.ChatID).Logger()

	if req.ChatID <= 0 || strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.Model) == "" {
		r.fail(ch, log, nil, "Missing required fields")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	baseModel := req.Model
	var activePreset *storage.CustomModel
	preset, found, err := r.store.ResolvePreset(ctx, req.Model)
	if err != nil {
		r.fail(ch, log, err, "Failed to resolve model")
		return
	}
	if found {
		baseModel = preset.BaseModel
		activePreset = &preset
	}

	if _, err := r.store.AppendMessage(ctx, req.ChatID, storage.RoleUser, req.Message); err != nil {
		r.fail(ch, log, err, "Failed to save message")
		return
	}
	msgs, err := r.store.ListMessages(ctx, req.ChatID)
	if err != nil {
		r.fail(ch, log, err, "Failed to load chat history")
		return
	}
	if err := r.store.TouchChat(ctx, req.ChatID); err != nil {
		r.fail(ch, log, err, "Failed to update chat")
		return
	}

	ch.Emit(EventResponseStart, StartPayload{ChatID: req.ChatID})

	history := AssembleHistory(msgs, activePreset)
	chunks, errs := r.backend.ChatStream(ctx, baseModel, history)

	var acc strings.Builder
	timer := time.NewTimer(r.chunkTimeout)
	defer timer.Stop()

	for chunks != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			// Any frame proves the stream is alive, content or not.
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(r.chunkTimeout)
			if chunk.Content == "" {
				continue
			}
			acc.WriteString(chunk.Content)
			ch.Emit(EventResponseChunk, ChunkPayload{ChatID: req.ChatID, Content: chunk.Content})
			r.metrics.ChunksRelayed.Inc()
		case <-timer.C:
			r.fail(ch, log, nil, "Timed out waiting for model output")
			return
		case <-ctx.Done():
			r.fail(ch, log, ctx.Err(), "Generation canceled")
			return
		}
	}

	// The backend closes both channels on return, so any failure is
	// waiting here once the chunk channel drains. Partial output is
	// discarded, not persisted.
	if err := <-errs; err != nil {
		r.fail(ch, log, err, "Model backend error: "+err.Error())
		return
	}

	if _, err := r.store.AppendMessage(ctx, req.ChatID, storage.RoleAssistant, acc.String()); err != nil {
		r.fail(ch, log, err, "Failed to save response")
		return
	}
	if err := r.store.RenameChatIfFirstExchange(ctx, req.ChatID, req.Message); err != nil {
		log.Error().Err(err).Msg("failed to rename chat after first exchange")
	}

	ch.Emit(EventResponseComplete, CompletePayload{ChatID: req.ChatID})
	r.metrics.ExchangesCompleted.Inc()
}

func (r *Runner) fail(ch Channel, log zerolog.Logger, err error, msg string) {
	if err != nil {
		log.Error().Err(err).Msg("exchange failed")
	} else {
		log.Warn().Str("reason", msg).Msg("exchange rejected")
	}
	r.metrics.ExchangesFailed.Inc()
	ch.Emit(EventError, ErrorPayload{Error: msg})
}
