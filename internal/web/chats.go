package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"alpaca/internal/storage"
)

type chatView struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageView struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func chatToView(c storage.Chat) chatView {
	return chatView{
		ID:        c.ID,
		Title:     c.Title,
		Model:     c.Model,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (s *Server) listChats(c *gin.Context) {
	chats, err := s.store.ListChats(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list chats")
		respondErr(c, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	views := make([]chatView, 0, len(chats))
	for _, chat := range chats {
		views = append(views, chatToView(chat))
	}
	respondOK(c, gin.H{"chats": views})
}

type createChatReq struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

func (s *Server) createChat(c *gin.Context) {
	var req createChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := s.store.CreateChat(c.Request.Context(), req.Title, req.Model)
	if err != nil {
		if errors.Is(err, storage.ErrValidation) {
			respondErr(c, http.StatusBadRequest, "Model is required")
			return
		}
		s.logger.Error().Err(err).Msg("failed to create chat")
		respondErr(c, http.StatusInternalServerError, "Failed to create chat")
		return
	}
	respondOK(c, gin.H{"chat_id": id})
}

func (s *Server) getChat(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	chat, msgs, err := s.store.GetChat(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "Chat not found")
			return
		}
		s.logger.Error().Err(err).Int64("chat_id", id).Msg("failed to get chat")
		respondErr(c, http.StatusInternalServerError, "Failed to get chat")
		return
	}

	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, messageView{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}
	respondOK(c, gin.H{"chat": chatToView(chat), "messages": views})
}

func (s *Server) deleteChat(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.store.DeleteChat(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondErr(c, http.StatusNotFound, "Chat not found")
			return
		}
		s.logger.Error().Err(err).Int64("chat_id", id).Msg("failed to delete chat")
		respondErr(c, http.StatusInternalServerError, "Failed to delete chat")
		return
	}
	respondOK(c, nil)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondErr(c, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}
