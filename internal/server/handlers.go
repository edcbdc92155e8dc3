package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m2tx/agent_chat/internal/agent"
	"github.com/m2tx/agent_chat/internal/conversation"
	apperrors "github.com/m2tx/agent_chat/internal/errors"
	"github.com/m2tx/agent_chat/internal/logger"
	"github.com/m2tx/agent_chat/internal/stream"
)

type chatRequest struct {
	ID       string                    `json:"id"`
	Messages []conversation.RawMessage `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	session, err := s.auth.Authenticate(r)
	if err != nil {
		logger.FromContext(r.Context(), s.logger).Debug("Chat request rejected", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	history := conversation.Normalize(req.Messages)
	if len(history) == 0 {
		http.Error(w, "messages are required", http.StatusBadRequest)
		return
	}

	flusher, ok := flusherOf(w)
	if !ok {
		s.logger.Error("Streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(logger.WithConversationID(r.Context(), req.ID))
	defer cancel()

	out := stream.New(s.cfg.StreamBuffer)
	turn := agent.Turn{ConversationID: req.ID, OwnerID: session.UserID, History: history}
	go func() {
		if err := s.turns.Run(ctx, turn, out); err != nil {
			logger.FromContext(ctx, s.logger).Debug("Turn ended with error", "error", err)
		}
	}()

	w.Header().Set("Content-Type", stream.ContentType)
	w.Header().Set(stream.ProtocolHeader, stream.ProtocolValue)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := stream.NewEncoder(w)
	for chunk := range out.Chunks() {
		if err := enc.Encode(chunk); err != nil {
			logger.FromContext(ctx, s.logger).Warn("Stream write failed", "error", err)
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	session, err := s.auth.Authenticate(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx := logger.WithConversationID(r.Context(), id)
	err = s.deleter.Delete(ctx, id, session.UserID)
	switch {
	case err == nil:
		logger.FromContext(ctx, s.logger).Info("Chat deleted")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Chat deleted"))
	case errors.Is(err, apperrors.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrPermissionDenied):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	default:
		logger.FromContext(ctx, s.logger).Error("Delete failed", "category", apperrors.Category(err), "error", err)
		http.Error(w, "An error occurred while processing your request", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
