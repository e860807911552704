package store

import "time"

// ContentType identifies which of the four content tables a row came from.
type ContentType string

const (
	ContentTypePost                      ContentType = "post"
	ContentTypeMessage                   ContentType = "message"
	ContentTypePostThreadComment         ContentType = "post_thread_comment"
	ContentTypeConversationThreadComment ContentType = "conversation_thread_comment"
)

// Similarity-search result content types. Thread replies are reported as
// their own types and carry a ParentID referencing the post or message the
// thread hangs off.
const (
	SearchTypePost       = "post"
	SearchTypeMessage    = "message"
	SearchTypePostThread = "post_thread"
	SearchTypeDMThread   = "dm_thread"
)

type User struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	NativeLanguage string `json:"native_language"`
}

// UserLanguage is the language preference read for a user before composing
// a reply. Language is the display name from top_languages and may be empty
// when the user's native_language has no entry there.
type UserLanguage struct {
	NativeLanguage string `json:"native_language"`
	Language       string `json:"language"`
}

// ContentItem is one row lacking an embedding, tagged with its source table.
type ContentItem struct {
	ID      string      `json:"id"`
	Content string      `json:"content"`
	Type    ContentType `json:"type"`
}

// VectorEmbedding is one row of vector_embeddings. Exactly one of the four
// foreign keys is set, determined by the content type of the embedded row.
type VectorEmbedding struct {
	ID                          string    `json:"id"`
	Embedding                   []float32 `json:"-"`
	CreatedAt                   time.Time `json:"created_at"`
	PostID                      *string   `json:"post_id,omitempty"`
	MessageID                   *string   `json:"message_id,omitempty"`
	PostThreadCommentID         *string   `json:"post_thread_comment_id,omitempty"`
	ConversationThreadCommentID *string   `json:"conversation_thread_comment_id,omitempty"`
}

// SimilarityResult is one ranked row from the similarity search. Exactly one
// of ChannelID and ConversationID is non-empty; ParentID is non-empty only
// for thread-reply content types.
type SimilarityResult struct {
	ContentID      string    `json:"content_id"`
	ContentType    string    `json:"content_type"`
	ChannelID      string    `json:"channel_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ParentID       string    `json:"parent_id,omitempty"`
	DisplayName    string    `json:"display_name"`
	CreatedAt      time.Time `json:"created_at"`
	Content        string    `json:"content"`
	Similarity     float64   `json:"similarity"`
}

// Message is a row of the messages table; bot replies are persisted here.
type Message struct {
	ID             string    `json:"id"` // UUID
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type Post struct {
	ID        string    `json:"id"` // UUID
	ChannelID string    `json:"channel_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadComment is a reply inside a thread. For post threads ParentID is a
// post id; for conversation threads it is a message id.
type ThreadComment struct {
	ID        string    `json:"id"` // UUID
	ParentID  string    `json:"parent_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
