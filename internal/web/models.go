package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"alpaca/internal/provider"
	"alpaca/internal/storage"
)

type modelView struct {
	Name              string `json:"name"`
	Size              string `json:"size,omitempty"`
	Type              string `json:"type"`
	Format            string `json:"format,omitempty"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameter_size,omitempty"`
	QuantizationLevel string `json:"quantization_level,omitempty"`
	BaseModel         string `json:"base_model,omitempty"`
	SystemPrompt      string `json:"system_prompt,omitempty"`
}

type presetView struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	BaseModel    string    `json:"base_model"`
	SystemPrompt string    `json:"system_prompt"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// listModels merges the base models reported by the backend (cached in
// redis for a short TTL) with the user-defined presets. `?refresh=1`
// drops the cached list and refetches, for when models were pulled or
// removed on the backend inside the TTL window.
func (s *Server) listModels(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		base []provider.ModelInfo
		hit  bool
		err  error
	)
	if c.Query("refresh") != "" {
		if err := s.modelCache.Invalidate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("model cache invalidate failed")
		}
	} else {
		base, hit, err = s.modelCache.Get(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("model cache read failed")
		}
	}
	if !hit {
		base, err = s.backend.ListModels(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to list backend models")
			respondErr(c, http.StatusInternalServerError, "Failed to list models")
			return
		}
		if err := s.modelCache.Set(ctx, base); err != nil {
			s.logger.Warn().Err(err).Msg("model cache write failed")
		}
	}

	presets, err := s.store.ListPresets(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list presets")
		respondErr(c, http.StatusInternalServerError, "Failed to list models")
		return
	}

	views := make([]modelView, 0, len(base)+len(presets))
	for _, m := range base {
		views = append(views, modelView{
			Name:              m.Name,
			Size:              fmt.Sprintf("%.2f MB", float64(m.SizeBytes)/1024/1024),
			Type:              "base",
			Format:            m.Format,
			Family:            m.Family,
			ParameterSize:     m.ParameterSize,
			QuantizationLevel: m.QuantizationLevel,
		})
	}
	for _, p := range presets {
		views = append(views, modelView{
			Name:         p.Name,
			Type:         "custom",
			BaseModel:    p.BaseModel,
			SystemPrompt: p.SystemPrompt,
		})
	}
	respondOK(c, gin.H{"models": views})
}

func (s *Server) listCustomModels(c *gin.Context) {
	presets, err := s.store.ListPresets(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list presets")
		respondErr(c, http.StatusInternalServerError, "Failed to list custom models")
		return
	}
	views := make([]presetView, 0, len(presets))
	for _, p := range presets {
		views = append(views, presetView{
			ID:           p.ID,
			Name:         p.Name,
			BaseModel:    p.BaseModel,
			SystemPrompt: p.SystemPrompt,
			CreatedAt:    p.CreatedAt,
			UpdatedAt:    p.UpdatedAt,
		})
	}
	respondOK(c, gin.H{"models": views})
}

type customModelReq struct {
	Name         string `json:"name"`
	BaseModel    string `json:"base_model"`
	SystemPrompt string `json:"system_prompt"`
}

func (s *Server) createCustomModel(c *gin.Context) {
	var req customModelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := s.store.CreatePreset(c.Request.Context(), req.Name, req.BaseModel, req.SystemPrompt)
	if err != nil {
		s.respondPresetErr(c, err)
		return
	}
	respondOK(c, gin.H{"model_id": id})
}

func (s *Server) updateCustomModel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req customModelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.store.UpdatePreset(c.Request.Context(), id, req.Name, req.BaseModel, req.SystemPrompt); err != nil {
		s.respondPresetErr(c, err)
		return
	}
	respondOK(c, nil)
}

func (s *Server) deleteCustomModel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeletePreset(c.Request.Context(), id); err != nil {
		s.respondPresetErr(c, err)
		return
	}
	respondOK(c, nil)
}

func (s *Server) respondPresetErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrValidation):
		respondErr(c, http.StatusBadRequest, "All fields are required")
	case errors.Is(err, storage.ErrConflict):
		respondErr(c, http.StatusBadRequest, "Model name already exists")
	case errors.Is(err, storage.ErrNotFound):
		respondErr(c, http.StatusNotFound, "Model not found")
	default:
		s.logger.Error().Err(err).Msg("preset operation failed")
		respondErr(c, http.StatusInternalServerError, "Internal error")
	}
}
