package core

import (
	"context"

	"loqui.chat/assistant-service/internal/store"
)

// Embedder generates a vector embedding for a single text string.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ReplyGenerator produces a completion constrained to a JSON object body.
// The returned string is the raw JSON text of the model's reply.
type ReplyGenerator interface {
	GetJSONReply(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// BackfillStore is the persistence surface the backfill pass needs: one
// "rows missing an embedding" query per content category, plus the
// embedding write.
type BackfillStore interface {
	PostsWithoutEmbeddings() ([]store.ContentItem, error)
	MessagesWithoutEmbeddings() ([]store.ContentItem, error)
	PostThreadCommentsWithoutEmbeddings() ([]store.ContentItem, error)
	ConversationThreadCommentsWithoutEmbeddings() ([]store.ContentItem, error)
	SaveEmbedding(rec *store.VectorEmbedding) error
}

// BotStore is the persistence surface the chat-reply pipeline needs.
type BotStore interface {
	GetUserLanguage(userID string) (*store.UserLanguage, error)
	SearchSimilarContent(queryEmbedding []float32, threshold float64, limit int, userID string) ([]store.SimilarityResult, error)
	CreateMessage(msg *store.Message) error
}
