package core

import (
	"context"
	"fmt"
	"log"

	"loqui.chat/assistant-service/internal/store"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ItemResult is the per-item outcome of one backfill pass.
type ItemResult struct {
	ContentType store.ContentType `json:"content_type"`
	ContentID   string            `json:"content_id"`
	Status      string            `json:"status"`
	Error       string            `json:"error,omitempty"`
}

// BackfillService fills in missing vector embeddings for the four content
// categories. Items are processed strictly sequentially; a single item's
// failure is recorded and the pass moves on.
type BackfillService struct {
	store    BackfillStore
	embedder Embedder
}

func NewBackfillService(st BackfillStore, embedder Embedder) *BackfillService {
	return &BackfillService{
		store:    st,
		embedder: embedder,
	}
}

// fetchContentWithoutEmbeddings gathers the rows missing an embedding from
// all four categories and tags each with its category. Any category query
// failing aborts the whole pass.
func (s *BackfillService) fetchContentWithoutEmbeddings() ([]store.ContentItem, error) {
	items := []store.ContentItem{}

	posts, err := s.store.PostsWithoutEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts without embeddings: %w", err)
	}
	items = appendTagged(items, posts, store.ContentTypePost)

	messages, err := s.store.MessagesWithoutEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages without embeddings: %w", err)
	}
	items = appendTagged(items, messages, store.ContentTypeMessage)

	postComments, err := s.store.PostThreadCommentsWithoutEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch post thread comments without embeddings: %w", err)
	}
	items = appendTagged(items, postComments, store.ContentTypePostThreadComment)

	convComments, err := s.store.ConversationThreadCommentsWithoutEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation thread comments without embeddings: %w", err)
	}
	items = appendTagged(items, convComments, store.ContentTypeConversationThreadComment)

	log.Printf("Fetched %d items without embeddings.", len(items))
	return items, nil
}

func appendTagged(items []store.ContentItem, rows []store.ContentItem, contentType store.ContentType) []store.ContentItem {
	for _, row := range rows {
		row.Type = contentType
		items = append(items, row)
	}
	return items
}

// newEmbeddingRecord maps a content item onto an embedding record with the
// single foreign key matching the item's category.
func newEmbeddingRecord(item store.ContentItem, embedding []float32) (*store.VectorEmbedding, error) {
	rec := &store.VectorEmbedding{Embedding: embedding}
	switch item.Type {
	case store.ContentTypePost:
		rec.PostID = &item.ID
	case store.ContentTypeMessage:
		rec.MessageID = &item.ID
	case store.ContentTypePostThreadComment:
		rec.PostThreadCommentID = &item.ID
	case store.ContentTypeConversationThreadComment:
		rec.ConversationThreadCommentID = &item.ID
	default:
		return nil, fmt.Errorf("unknown content type %q", item.Type)
	}
	return rec, nil
}

// Run performs one full scan-and-fill pass. The returned slice is never nil
// and holds one entry per fetched item, in processing order. An error is
// returned only when the fetch phase itself fails; per-item failures are
// recorded in the results and do not stop the pass.
func (s *BackfillService) Run(ctx context.Context) ([]ItemResult, error) {
	items, err := s.fetchContentWithoutEmbeddings()
	if err != nil {
		return nil, err
	}

	results := []ItemResult{}
	for _, item := range items {
		results = append(results, s.processItem(ctx, item))
	}

	log.Printf("Backfill pass complete: %d items processed.", len(results))
	return results, nil
}

func (s *BackfillService) processItem(ctx context.Context, item store.ContentItem) ItemResult {
	result := ItemResult{
		ContentType: item.Type,
		ContentID:   item.ID,
	}

	if item.Content == "" {
		log.Printf("%s id %s has no content. Skipping.", item.Type, item.ID)
		result.Status = StatusFailed
		result.Error = "No content"
		return result
	}

	embedding, err := s.embedder.GetEmbedding(ctx, item.Content)
	if err != nil {
		log.Printf("Error embedding %s id %s: %v", item.Type, item.ID, err)
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	rec, err := newEmbeddingRecord(item, embedding)
	if err == nil {
		err = s.store.SaveEmbedding(rec)
	}
	if err != nil {
		log.Printf("Error saving embedding for %s id %s: %v", item.Type, item.ID, err)
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = StatusSuccess
	return result
}
