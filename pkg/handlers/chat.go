package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyloop-ai/studyloop-engine/pkg/chat"
	"github.com/studyloop-ai/studyloop-engine/pkg/models"
)

// ChatService is the orchestrator surface the chat handlers depend on.
type ChatService interface {
	StreamTurn(ctx context.Context, turn *chat.TurnRequest, userID string, events chan<- models.ChatEvent) error
	SetFavourite(ctx context.Context, chatID uuid.UUID, userID string, favourite bool) error
	Rename(ctx context.Context, chatID uuid.UUID, userID, title string) error
	Delete(ctx context.Context, chatID uuid.UUID, userID string) error
	DeleteLastMessage(ctx context.Context, chatID uuid.UUID, userID string) error
	DeleteTrailing(ctx context.Context, messageID uuid.UUID, userID string) error
}

// ChatHandler handles the streaming chat endpoint and chat management.
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.StreamTurn)
	mux.HandleFunc("PATCH /chat", h.SetFavourite)
	mux.HandleFunc("DELETE /chat", h.Delete)
	mux.HandleFunc("PATCH /chat/title", h.Rename)
}

// StreamTurn handles POST /chat.
// The response is a Server-Sent Events stream of chat events terminated by a
// finish or error event.
func (h *ChatHandler) StreamTurn(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}

	var turn chat.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := turn.Validate(); err != nil {
		if err := WriteError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported")
		if err := ErrorResponse(w, http.StatusInternalServerError, "sse_unsupported", "SSE not supported"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	eventChan := make(chan models.ChatEvent, 100)

	// Run the turn in background; the orchestrator emits the finish event
	// itself on success. It detaches from the request context once the turn
	// is accepted, so this loop keeps draining after a client disconnect
	// (writes to the dead connection are discarded) until the turn ends.
	go func() {
		defer close(eventChan)
		if err := h.service.StreamTurn(r.Context(), &turn, userID, eventChan); err != nil {
			h.logger.Error("Chat turn failed",
				zap.String("chat_id", turn.ID.String()),
				zap.Error(err))
			eventChan <- models.NewErrorEvent(err.Error())
		}
	}()

	// Stream events to client
	for event := range eventChan {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		// Stop on finish or error
		if event.Type == models.ChatEventFinish || event.Type == models.ChatEventError {
			break
		}
	}
}

// SetFavourite handles PATCH /chat?id=<uuid>&fav=true|false.
func (h *ChatHandler) SetFavourite(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(w, r, "id", h.logger)
	if !ok {
		return
	}

	favourite := r.URL.Query().Get("fav") == "true"

	if err := h.service.SetFavourite(r.Context(), chatID, userID, favourite); err != nil {
		h.logger.Error("Failed to update chat favourite",
			zap.String("chat_id", chatID.String()),
			zap.Error(err))
		if err := WriteError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]bool{"is_favourite": favourite}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Rename handles PATCH /chat/title?id=<uuid>&title=<text>.
func (h *ChatHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(w, r, "id", h.logger)
	if !ok {
		return
	}

	title := r.URL.Query().Get("title")

	if err := h.service.Rename(r.Context(), chatID, userID, title); err != nil {
		h.logger.Error("Failed to rename chat",
			zap.String("chat_id", chatID.String()),
			zap.Error(err))
		if err := WriteError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"title": title}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /chat?id=<uuid>. Owner only.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := RequireUser(w, r, h.logger)
	if !ok {
		return
	}
	chatID, ok := parseIDParam(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), chatID, userID); err != nil {
		h.logger.Error("Failed to delete chat",
			zap.String("chat_id", chatID.String()),
			zap.Error(err))
		if err := WriteError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// parseIDParam reads a UUID query parameter, writing a 400 on failure.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.URL.Query().Get(name))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", fmt.Sprintf("Invalid %s parameter", name)); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
