package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"swifthand/api/internal/chat"
	"swifthand/api/internal/search"
)

const chatContextSize = 3

// Chat answers a visitor question, grounding the prompt on the best matching services.
func (s *Service) Chat(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", domainError(http.StatusBadRequest, "QUERY_REQUIRED", "Query is required.", nil)
	}
	if s.chat == nil {
		return "", domainError(http.StatusServiceUnavailable, "CHAT_UNAVAILABLE", "The AI assistant is not configured.", nil)
	}

	var matches []search.Result
	if s.search != nil {
		matches = s.search.Search(ctx, search.Query{Text: query, Limit: chatContextSize}).Results
		if len(matches) > chatContextSize {
			matches = matches[:chatContextSize]
		}
	}
	prompt, err := chat.BuildPrompt(s.cfg.CompanyName, chat.BuildContext(matches), query)
	if err != nil {
		return "", err
	}

	reply, err := s.chat.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, chat.ErrNotConfigured) {
			return "", domainError(http.StatusServiceUnavailable, "CHAT_UNAVAILABLE", "The AI assistant is not configured.", nil)
		}
		log.Printf("chat: completion failed: %v", err)
		return "", domainError(http.StatusInternalServerError, "CHAT_FAILED", "Something went wrong with the AI assistant.", nil)
	}
	return reply, nil
}
