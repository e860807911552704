package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"loqui.chat/assistant-service/internal/auth"
	"loqui.chat/assistant-service/internal/core"
	"loqui.chat/assistant-service/internal/store"
)

// BackfillRunner runs one embedding backfill pass.
type BackfillRunner interface {
	Run(ctx context.Context) ([]core.ItemResult, error)
}

// BotResponder produces and persists the bot's reply to one chat message.
type BotResponder interface {
	ProcessMessage(ctx context.Context, content, conversationID, senderID string) (*store.Message, error)
}

type APIHandler struct {
	backfill BackfillRunner
	bot      BotResponder
}

func NewAPIHandler(backfill BackfillRunner, bot BotResponder) *APIHandler {
	return &APIHandler{backfill: backfill, bot: bot}
}

// ServiceAuthMiddleware requires the Bearer service token the chat backend
// (or the backfill scheduler) presents when invoking a handler.
func (h *APIHandler) ServiceAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if _, err := auth.ValidateServiceToken(tokenString); err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type backfillResponse struct {
	Success bool              `json:"success"`
	Results []core.ItemResult `json:"results"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// BackfillEmbeddingsHandler runs a full scan-and-fill pass. Per-item
// failures are reported in the 200 results; only a failed fetch phase turns
// into a 500.
func (h *APIHandler) BackfillEmbeddingsHandler(w http.ResponseWriter, r *http.Request) {
	results, err := h.backfill.Run(r.Context())
	if err != nil {
		log.Printf("Error processing embeddings: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, backfillResponse{Success: true, Results: results})
}

type BotMessageRequest struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
}

type botMessageResponse struct {
	Success bool           `json:"success"`
	Message *store.Message `json:"message"`
}

// BotMessageHandler answers one chat message. Pipeline failures are logged
// with their cause and reported to the caller as an opaque 500.
func (h *APIHandler) BotMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req BotMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Content == "" || req.ConversationID == "" || req.SenderID == "" {
		http.Error(w, "content, conversationId and senderId are required", http.StatusBadRequest)
		return
	}

	msg, err := h.bot.ProcessMessage(r.Context(), req.Content, req.ConversationID, req.SenderID)
	if err != nil {
		log.Printf("Error in bot-messages handler for conversation %s: %v", req.ConversationID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to process bot message"})
		return
	}

	writeJSON(w, http.StatusOK, botMessageResponse{Success: true, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response body: %v", err)
	}
}
