package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"loqui.chat/assistant-service/internal/store"
)

type fakeBackfillStore struct {
	posts        []store.ContentItem
	messages     []store.ContentItem
	postComments []store.ContentItem
	convComments []store.ContentItem

	postsErr        error
	messagesErr     error
	postCommentsErr error
	convCommentsErr error
	saveErr         error

	saved []*store.VectorEmbedding
}

func (f *fakeBackfillStore) PostsWithoutEmbeddings() ([]store.ContentItem, error) {
	return f.posts, f.postsErr
}

func (f *fakeBackfillStore) MessagesWithoutEmbeddings() ([]store.ContentItem, error) {
	return f.messages, f.messagesErr
}

func (f *fakeBackfillStore) PostThreadCommentsWithoutEmbeddings() ([]store.ContentItem, error) {
	return f.postComments, f.postCommentsErr
}

func (f *fakeBackfillStore) ConversationThreadCommentsWithoutEmbeddings() ([]store.ContentItem, error) {
	return f.convComments, f.convCommentsErr
}

func (f *fakeBackfillStore) SaveEmbedding(rec *store.VectorEmbedding) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, rec)
	return nil
}

type fakeEmbedder struct {
	embed func(text string) ([]float32, error)
}

func (f *fakeEmbedder) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	if f.embed != nil {
		return f.embed(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestBackfillRun_NoWork(t *testing.T) {
	st := &fakeBackfillStore{}
	svc := NewBackfillService(st, &fakeEmbedder{})

	results, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Empty(t, st.saved)
}

func TestBackfillRun_EmptyContentSkipped(t *testing.T) {
	for _, tc := range []struct {
		name string
		fill func(*fakeBackfillStore, store.ContentItem)
		want store.ContentType
	}{
		{"post", func(s *fakeBackfillStore, i store.ContentItem) { s.posts = append(s.posts, i) }, store.ContentTypePost},
		{"message", func(s *fakeBackfillStore, i store.ContentItem) { s.messages = append(s.messages, i) }, store.ContentTypeMessage},
		{"post thread comment", func(s *fakeBackfillStore, i store.ContentItem) { s.postComments = append(s.postComments, i) }, store.ContentTypePostThreadComment},
		{"conversation thread comment", func(s *fakeBackfillStore, i store.ContentItem) { s.convComments = append(s.convComments, i) }, store.ContentTypeConversationThreadComment},
	} {
		t.Run(tc.name, func(t *testing.T) {
			st := &fakeBackfillStore{}
			tc.fill(st, store.ContentItem{ID: "row-1", Content: ""})
			svc := NewBackfillService(st, &fakeEmbedder{})

			results, err := svc.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, tc.want, results[0].ContentType)
			assert.Equal(t, "row-1", results[0].ContentID)
			assert.Equal(t, StatusFailed, results[0].Status)
			assert.Equal(t, "No content", results[0].Error)
			assert.Empty(t, st.saved, "no embedding write may happen for empty content")
		})
	}
}

func TestBackfillRun_ForeignKeyMapping(t *testing.T) {
	st := &fakeBackfillStore{
		posts:        []store.ContentItem{{ID: "p1", Content: "a post"}},
		messages:     []store.ContentItem{{ID: "m1", Content: "a message"}},
		postComments: []store.ContentItem{{ID: "pc1", Content: "a post comment"}},
		convComments: []store.ContentItem{{ID: "cc1", Content: "a dm comment"}},
	}
	svc := NewBackfillService(st, &fakeEmbedder{})

	results, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, res := range results {
		assert.Equal(t, StatusSuccess, res.Status)
	}

	require.Len(t, st.saved, 4)
	for _, rec := range st.saved {
		fks := 0
		for _, fk := range []*string{rec.PostID, rec.MessageID, rec.PostThreadCommentID, rec.ConversationThreadCommentID} {
			if fk != nil {
				fks++
			}
		}
		assert.Equal(t, 1, fks, "exactly one foreign key must be set")
	}
	require.NotNil(t, st.saved[0].PostID)
	assert.Equal(t, "p1", *st.saved[0].PostID)
	require.NotNil(t, st.saved[1].MessageID)
	assert.Equal(t, "m1", *st.saved[1].MessageID)
	require.NotNil(t, st.saved[2].PostThreadCommentID)
	assert.Equal(t, "pc1", *st.saved[2].PostThreadCommentID)
	require.NotNil(t, st.saved[3].ConversationThreadCommentID)
	assert.Equal(t, "cc1", *st.saved[3].ConversationThreadCommentID)
}

func TestBackfillRun_EmbedFailureDoesNotStopPass(t *testing.T) {
	st := &fakeBackfillStore{
		posts: []store.ContentItem{
			{ID: "p1", Content: "first"},
			{ID: "p2", Content: "second"},
			{ID: "p3", Content: "third"},
		},
	}
	embedder := &fakeEmbedder{embed: func(text string) ([]float32, error) {
		if text == "second" {
			return nil, fmt.Errorf("embedding API error: quota exceeded")
		}
		return []float32{1}, nil
	}}
	svc := NewBackfillService(st, embedder)

	results, err := svc.Run(context.Background())
	require.NoError(t, err, "a single item's failure must not fail the pass")
	require.Len(t, results, 3)

	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "quota exceeded")
	assert.Equal(t, StatusSuccess, results[2].Status)
	assert.Len(t, st.saved, 2)
}

func TestBackfillRun_SaveFailureRecorded(t *testing.T) {
	st := &fakeBackfillStore{
		messages: []store.ContentItem{{ID: "m1", Content: "hello"}},
		saveErr:  fmt.Errorf("disk full"),
	}
	svc := NewBackfillService(st, &fakeEmbedder{})

	results, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, "disk full", results[0].Error)
}

func TestBackfillRun_FetchFailureIsFatal(t *testing.T) {
	for _, tc := range []struct {
		name string
		fill func(*fakeBackfillStore)
	}{
		{"posts", func(s *fakeBackfillStore) { s.postsErr = fmt.Errorf("posts query failed") }},
		{"messages", func(s *fakeBackfillStore) { s.messagesErr = fmt.Errorf("messages query failed") }},
		{"post thread comments", func(s *fakeBackfillStore) { s.postCommentsErr = fmt.Errorf("post comments query failed") }},
		{"conversation thread comments", func(s *fakeBackfillStore) { s.convCommentsErr = fmt.Errorf("conv comments query failed") }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			st := &fakeBackfillStore{
				posts: []store.ContentItem{{ID: "p1", Content: "still fetched first"}},
			}
			tc.fill(st)
			svc := NewBackfillService(st, &fakeEmbedder{})

			results, err := svc.Run(context.Background())
			require.Error(t, err)
			assert.Nil(t, results)
			assert.Empty(t, st.saved, "a failed fetch phase must perform zero writes")
		})
	}
}
