package core

import (
	"context"
	"encoding/json"
	"fmt"

	"loqui.chat/assistant-service/internal/store"
)

const (
	// matchThreshold is passed to the similarity search as a maximum cosine
	// distance; 1.0 admits any positively similar row. See
	// store.SearchSimilarContent for the convention.
	matchThreshold = 1.0
	matchCount     = 5

	defaultReplyLanguage = "English"

	systemPromptFmt = "You are a helpful AI assistant in a chat application. " +
		"Use the provided context to help answer the user's question. " +
		"If no relevant context is found, respond based on your general knowledge. " +
		"Keep responses concise and friendly. You should respond in %s language. " +
		"Your response must be a valid JSON object with two fields: 'response' (your text response) " +
		"and 'relevant_sources' (an array of indices of the provided sources that contained the " +
		"information requested by the user). If there are multiple sources used, include all of them " +
		"in the relevant_sources array. Exclude any sources that are not relevant to the user's question."

	userPromptFmt = "Context from messages and posts throughout the company's communication:\n%s\n\nUser's message: %s"
)

// assistantReply is the JSON object the model is instructed to return.
type assistantReply struct {
	Response        string `json:"response"`
	RelevantSources []int  `json:"relevant_sources"`
}

// BotService answers a chat message: it retrieves semantically similar
// prior content visible to the sender, asks the model for a reply in the
// sender's preferred language, renders cited sources as links, and persists
// the combined text as a message from the bot identity.
type BotService struct {
	store     BotStore
	embedder  Embedder
	replier   ReplyGenerator
	botUserID string
}

func NewBotService(st BotStore, embedder Embedder, replier ReplyGenerator, botUserID string) *BotService {
	return &BotService{
		store:     st,
		embedder:  embedder,
		replier:   replier,
		botUserID: botUserID,
	}
}

func (s *BotService) ProcessMessage(ctx context.Context, content, conversationID, senderID string) (*store.Message, error) {
	pref, err := s.store.GetUserLanguage(senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user data: %w", err)
	}
	if pref == nil {
		return nil, fmt.Errorf("user %s not found", senderID)
	}

	embedding, err := s.embedder.GetEmbedding(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed message: %w", err)
	}

	similar, err := s.store.SearchSimilarContent(embedding, matchThreshold, matchCount, senderID)
	if err != nil {
		return nil, fmt.Errorf("search error: %w", err)
	}

	language := pref.Language
	if language == "" {
		language = defaultReplyLanguage
	}

	raw, err := s.replier.GetJSONReply(ctx,
		fmt.Sprintf(systemPromptFmt, language),
		fmt.Sprintf(userPromptFmt, BuildContext(similar), content))
	if err != nil {
		return nil, fmt.Errorf("failed to get chat completion: %w", err)
	}
	if raw == "" {
		return nil, fmt.Errorf("no response received from model")
	}

	var reply assistantReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("failed to decode model reply as JSON: %w", err)
	}

	msg := &store.Message{
		Content:        reply.Response + FormatSourceLinks(reply.RelevantSources, similar),
		ConversationID: conversationID,
		SenderID:       s.botUserID,
	}
	if err := s.store.CreateMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to save bot message: %w", err)
	}

	return msg, nil
}
