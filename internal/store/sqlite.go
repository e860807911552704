package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"loqui.chat/assistant-service/internal/utils"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS top_languages (
        code TEXT PRIMARY KEY,
        language TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        display_name TEXT NOT NULL,
        native_language TEXT,
        FOREIGN KEY (native_language) REFERENCES top_languages (code)
    );

    CREATE TABLE IF NOT EXISTS channels (
        id TEXT PRIMARY KEY,
        name TEXT
    );

    CREATE TABLE IF NOT EXISTS channel_members (
        channel_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        PRIMARY KEY (channel_id, user_id),
        FOREIGN KEY (channel_id) REFERENCES channels (id),
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY
    );

    CREATE TABLE IF NOT EXISTS conversation_participants (
        conversation_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        PRIMARY KEY (conversation_id, user_id),
        FOREIGN KEY (conversation_id) REFERENCES conversations (id),
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS posts (
        id TEXT PRIMARY KEY, -- UUID
        channel_id TEXT NOT NULL,
        sender_id TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (channel_id) REFERENCES channels (id),
        FOREIGN KEY (sender_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        conversation_id TEXT NOT NULL,
        sender_id TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id),
        FOREIGN KEY (sender_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS post_thread_comments (
        id TEXT PRIMARY KEY, -- UUID
        post_id TEXT NOT NULL,
        sender_id TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (post_id) REFERENCES posts (id),
        FOREIGN KEY (sender_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS conversation_thread_comments (
        id TEXT PRIMARY KEY, -- UUID
        message_id TEXT NOT NULL,
        sender_id TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (message_id) REFERENCES messages (id),
        FOREIGN KEY (sender_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS vector_embeddings (
        id TEXT PRIMARY KEY, -- UUID
        embedding_json TEXT NOT NULL, -- JSON string of []float32
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        post_id TEXT,
        message_id TEXT,
        post_thread_comment_id TEXT,
        conversation_thread_comment_id TEXT,
        FOREIGN KEY (post_id) REFERENCES posts (id),
        FOREIGN KEY (message_id) REFERENCES messages (id),
        FOREIGN KEY (post_thread_comment_id) REFERENCES post_thread_comments (id),
        FOREIGN KEY (conversation_thread_comment_id) REFERENCES conversation_thread_comments (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods
func (s *SQLiteStore) CreateUser(user *User) error {
	var native interface{}
	if user.NativeLanguage != "" {
		native = user.NativeLanguage
	}
	_, err := s.db.Exec("INSERT INTO users (id, display_name, native_language) VALUES (?, ?, ?)", user.ID, user.DisplayName, native)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserLanguage returns the language preference for a user, or nil when
// the user does not exist. Language is empty when native_language has no
// matching top_languages row.
func (s *SQLiteStore) GetUserLanguage(userID string) (*UserLanguage, error) {
	var pref UserLanguage
	var native sql.NullString
	err := s.db.QueryRow(`
        SELECT u.native_language, COALESCE(tl.language, '')
        FROM users u
        LEFT JOIN top_languages tl ON tl.code = u.native_language
        WHERE u.id = ?`, userID).Scan(&native, &pref.Language)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user language: %w", err)
	}
	if native.Valid {
		pref.NativeLanguage = native.String
	}
	return &pref, nil
}

func (s *SQLiteStore) CreateLanguage(code, language string) error {
	_, err := s.db.Exec("INSERT INTO top_languages (code, language) VALUES (?, ?)", code, language)
	if err != nil {
		return fmt.Errorf("failed to insert language: %w", err)
	}
	return nil
}

// Channel / conversation methods
func (s *SQLiteStore) CreateChannel(id, name string) error {
	_, err := s.db.Exec("INSERT INTO channels (id, name) VALUES (?, ?)", id, name)
	if err != nil {
		return fmt.Errorf("failed to insert channel: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddChannelMember(channelID, userID string) error {
	_, err := s.db.Exec("INSERT INTO channel_members (channel_id, user_id) VALUES (?, ?)", channelID, userID)
	if err != nil {
		return fmt.Errorf("failed to insert channel member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateConversation(id string) error {
	_, err := s.db.Exec("INSERT INTO conversations (id) VALUES (?)", id)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddConversationParticipant(conversationID, userID string) error {
	_, err := s.db.Exec("INSERT INTO conversation_participants (conversation_id, user_id) VALUES (?, ?)", conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to insert conversation participant: %w", err)
	}
	return nil
}

// Content methods
func (s *SQLiteStore) CreatePost(post *Post) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	_, err := s.db.Exec("INSERT INTO posts (id, channel_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)",
		post.ID, post.ChannelID, post.SenderID, post.Content, post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateMessage(msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	stmt, err := s.db.Prepare("INSERT INTO messages (id, conversation_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreatePostThreadComment(comment *ThreadComment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	_, err := s.db.Exec("INSERT INTO post_thread_comments (id, post_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)",
		comment.ID, comment.ParentID, comment.SenderID, comment.Content, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post thread comment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateConversationThreadComment(comment *ThreadComment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	_, err := s.db.Exec("INSERT INTO conversation_thread_comments (id, message_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)",
		comment.ID, comment.ParentID, comment.SenderID, comment.Content, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation thread comment: %w", err)
	}
	return nil
}

// Backfill queries. Each content category has its own independent query so
// one failing table surfaces as that query's error.
func (s *SQLiteStore) PostsWithoutEmbeddings() ([]ContentItem, error) {
	return s.itemsWithoutEmbeddings(`
        SELECT p.id, p.content FROM posts p
        LEFT JOIN vector_embeddings ve ON ve.post_id = p.id
        WHERE ve.id IS NULL ORDER BY p.created_at`)
}

func (s *SQLiteStore) MessagesWithoutEmbeddings() ([]ContentItem, error) {
	return s.itemsWithoutEmbeddings(`
        SELECT m.id, m.content FROM messages m
        LEFT JOIN vector_embeddings ve ON ve.message_id = m.id
        WHERE ve.id IS NULL ORDER BY m.created_at`)
}

func (s *SQLiteStore) PostThreadCommentsWithoutEmbeddings() ([]ContentItem, error) {
	return s.itemsWithoutEmbeddings(`
        SELECT c.id, c.content FROM post_thread_comments c
        LEFT JOIN vector_embeddings ve ON ve.post_thread_comment_id = c.id
        WHERE ve.id IS NULL ORDER BY c.created_at`)
}

func (s *SQLiteStore) ConversationThreadCommentsWithoutEmbeddings() ([]ContentItem, error) {
	return s.itemsWithoutEmbeddings(`
        SELECT c.id, c.content FROM conversation_thread_comments c
        LEFT JOIN vector_embeddings ve ON ve.conversation_thread_comment_id = c.id
        WHERE ve.id IS NULL ORDER BY c.created_at`)
}

func (s *SQLiteStore) itemsWithoutEmbeddings(query string) ([]ContentItem, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query items without embeddings: %w", err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		var item ContentItem
		if err := rows.Scan(&item.ID, &item.Content); err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveEmbedding persists one embedding record. Exactly one foreign key must
// be set; the record's ID and timestamp are assigned here.
func (s *SQLiteStore) SaveEmbedding(rec *VectorEmbedding) error {
	fkCount := 0
	for _, fk := range []*string{rec.PostID, rec.MessageID, rec.PostThreadCommentID, rec.ConversationThreadCommentID} {
		if fk != nil {
			fkCount++
		}
	}
	if fkCount != 1 {
		return fmt.Errorf("embedding record must reference exactly one content row, got %d references", fkCount)
	}

	embeddingBytes, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	stmt, err := s.db.Prepare(`
        INSERT INTO vector_embeddings
            (id, embedding_json, created_at, post_id, message_id, post_thread_comment_id, conversation_thread_comment_id)
        VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(rec.ID, string(embeddingBytes), rec.CreatedAt,
		rec.PostID, rec.MessageID, rec.PostThreadCommentID, rec.ConversationThreadCommentID)
	if err != nil {
		return fmt.Errorf("failed to execute embedding insert: %w", err)
	}
	return nil
}

// CountEmbeddings reports the number of stored embedding records.
func (s *SQLiteStore) CountEmbeddings() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM vector_embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// candidateQueries covers the four embedded content tables, each restricted
// to rows visible to the requesting user (channel membership for channel
// content, conversation participation for DM content). Columns: content id,
// channel id, conversation id, parent id, display name, created at,
// content, embedding JSON.
var candidateQueries = []struct {
	contentType string
	query       string
}{
	{SearchTypePost, `
        SELECT p.id, p.channel_id, '', '', u.display_name, p.created_at, p.content, ve.embedding_json
        FROM posts p
        JOIN users u ON u.id = p.sender_id
        JOIN vector_embeddings ve ON ve.post_id = p.id
        JOIN channel_members cm ON cm.channel_id = p.channel_id AND cm.user_id = ?`},
	{SearchTypeMessage, `
        SELECT m.id, '', m.conversation_id, '', u.display_name, m.created_at, m.content, ve.embedding_json
        FROM messages m
        JOIN users u ON u.id = m.sender_id
        JOIN vector_embeddings ve ON ve.message_id = m.id
        JOIN conversation_participants cp ON cp.conversation_id = m.conversation_id AND cp.user_id = ?`},
	{SearchTypePostThread, `
        SELECT c.id, p.channel_id, '', c.post_id, u.display_name, c.created_at, c.content, ve.embedding_json
        FROM post_thread_comments c
        JOIN posts p ON p.id = c.post_id
        JOIN users u ON u.id = c.sender_id
        JOIN vector_embeddings ve ON ve.post_thread_comment_id = c.id
        JOIN channel_members cm ON cm.channel_id = p.channel_id AND cm.user_id = ?`},
	{SearchTypeDMThread, `
        SELECT c.id, '', m.conversation_id, c.message_id, u.display_name, c.created_at, c.content, ve.embedding_json
        FROM conversation_thread_comments c
        JOIN messages m ON m.id = c.message_id
        JOIN users u ON u.id = c.sender_id
        JOIN vector_embeddings ve ON ve.conversation_thread_comment_id = c.id
        JOIN conversation_participants cp ON cp.conversation_id = m.conversation_id AND cp.user_id = ?`},
}

// SearchSimilarContent ranks content visible to userID by cosine similarity
// against queryEmbedding. The threshold is a maximum cosine distance
// (1 - similarity), the same convention as the pgvector "<=>" operator;
// results come back in descending similarity, truncated to limit.
func (s *SQLiteStore) SearchSimilarContent(queryEmbedding []float32, threshold float64, limit int, userID string) ([]SimilarityResult, error) {
	var results []SimilarityResult
	for _, source := range candidateQueries {
		candidates, err := s.similarityCandidates(source.query, source.contentType, queryEmbedding, threshold, userID)
		if err != nil {
			return nil, err
		}
		results = append(results, candidates...)
	}

	// Sort by similarity in descending order
	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SQLiteStore) similarityCandidates(query, contentType string, queryEmbedding []float32, threshold float64, userID string) ([]SimilarityResult, error) {
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s similarity candidates: %w", contentType, err)
	}
	defer rows.Close()

	var results []SimilarityResult
	for rows.Next() {
		res := SimilarityResult{ContentType: contentType}
		var embeddingJSON string
		if err := rows.Scan(&res.ContentID, &res.ChannelID, &res.ConversationID,
			&res.ParentID, &res.DisplayName, &res.CreatedAt, &res.Content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan %s similarity candidate: %w", contentType, err)
		}

		var embedding []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &embedding); err != nil {
			log.Printf("Warning: failed to unmarshal embedding for %s %s: %v. Skipping.", contentType, res.ContentID, err)
			continue
		}

		distance, err := utils.CosineDistance(queryEmbedding, embedding)
		if err != nil {
			log.Printf("Warning: failed to compare embedding for %s %s: %v. Skipping.", contentType, res.ContentID, err)
			continue
		}
		if float64(distance) >= threshold {
			continue
		}
		res.Similarity = float64(1 - distance)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s similarity candidates: %w", contentType, err)
	}
	return results, nil
}

type seedFixture struct {
	Languages []struct {
		Code     string `json:"code"`
		Language string `json:"language"`
	} `json:"languages"`
	Users    []User `json:"users"`
	Channels []struct {
		ID      string   `json:"id"`
		Name    string   `json:"name"`
		Members []string `json:"members"`
	} `json:"channels"`
	Conversations []struct {
		ID           string   `json:"id"`
		Participants []string `json:"participants"`
	} `json:"conversations"`
	Posts                      []Post          `json:"posts"`
	Messages                   []Message       `json:"messages"`
	PostThreadComments         []ThreadComment `json:"post_thread_comments"`
	ConversationThreadComments []ThreadComment `json:"conversation_thread_comments"`
}

// SeedFromFile loads a JSON fixture of languages, users, channels,
// conversations, and content rows. Content is inserted without embeddings;
// the backfill handler fills those in on its next pass.
func (s *SQLiteStore) SeedFromFile(filePath string) (int, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file %s: %w", filePath, err)
	}

	var fixture seedFixture
	if err := json.Unmarshal(contentBytes, &fixture); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", filePath, err)
	}

	count := 0
	for _, lang := range fixture.Languages {
		if err := s.CreateLanguage(lang.Code, lang.Language); err != nil {
			return count, err
		}
		count++
	}
	for i := range fixture.Users {
		if err := s.CreateUser(&fixture.Users[i]); err != nil {
			return count, err
		}
		count++
	}
	for _, ch := range fixture.Channels {
		if err := s.CreateChannel(ch.ID, ch.Name); err != nil {
			return count, err
		}
		count++
		for _, member := range ch.Members {
			if err := s.AddChannelMember(ch.ID, member); err != nil {
				return count, err
			}
		}
	}
	for _, conv := range fixture.Conversations {
		if err := s.CreateConversation(conv.ID); err != nil {
			return count, err
		}
		count++
		for _, participant := range conv.Participants {
			if err := s.AddConversationParticipant(conv.ID, participant); err != nil {
				return count, err
			}
		}
	}
	for i := range fixture.Posts {
		if err := s.CreatePost(&fixture.Posts[i]); err != nil {
			return count, err
		}
		count++
	}
	for i := range fixture.Messages {
		if err := s.CreateMessage(&fixture.Messages[i]); err != nil {
			return count, err
		}
		count++
	}
	for i := range fixture.PostThreadComments {
		if err := s.CreatePostThreadComment(&fixture.PostThreadComments[i]); err != nil {
			return count, err
		}
		count++
	}
	for i := range fixture.ConversationThreadComments {
		if err := s.CreateConversationThreadComment(&fixture.ConversationThreadComments[i]); err != nil {
			return count, err
		}
		count++
	}

	log.Printf("Seeded %d rows from %s.", count, filePath)
	return count, nil
}
