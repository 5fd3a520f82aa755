// Package faq stores per-group canned answers and matches incoming questions
// against them.
package faq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/itl33054/wwannengBOT/internal/database"
)

// DefaultThreshold is the minimum similarity for an automatic answer.
const DefaultThreshold = 0.75

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// Manager manages the FAQ entries of every group.
type Manager struct {
	store     database.FAQStore
	threshold float64
	logger    *slog.Logger
}

// NewManager creates a Manager. A threshold outside (0, 1] falls back to
// DefaultThreshold.
func NewManager(store database.FAQStore, threshold float64, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Manager{store: store, threshold: threshold, logger: logger.With("component", "faq")}
}

// Add stores a question and its answer. It returns false when the question
// already exists in the chat.
func (m *Manager) Add(ctx context.Context, chatID int64, question, answer string) (bool, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return false, nil
	}

	err := m.store.AddFAQ(ctx, &database.FAQ{
		ChatID:   chatID,
		Question: question,
		Answer:   answer,
		Keywords: keywords(question),
	})
	if errors.Is(err, database.ErrConflict) {
		m.logger.WarnContext(ctx, "FAQ already exists", "chat_id", chatID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m.logger.InfoContext(ctx, "FAQ added", "chat_id", chatID)
	return true, nil
}

// List returns the FAQs of a chat in the order they were added.
func (m *Manager) List(ctx context.Context, chatID int64) ([]database.FAQ, error) {
	return m.store.ListFAQs(ctx, chatID)
}

// DeleteByIndex removes the entry at the zero-based position index of List
// and returns its question. ok is false for an index out of range.
func (m *Manager) DeleteByIndex(ctx context.Context, chatID int64, index int) (string, bool, error) {
	faqs, err := m.store.ListFAQs(ctx, chatID)
	if err != nil {
		return "", false, err
	}
	if index < 0 || index >= len(faqs) {
		return "", false, nil
	}

	entry := faqs[index]
	if err := m.store.DeleteFAQ(ctx, entry.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	m.logger.InfoContext(ctx, "FAQ deleted", "chat_id", chatID, "faq_id", entry.ID)
	return entry.Question, true, nil
}

// FindAnswer returns the answer of the most similar question when its
// similarity reaches the threshold. Earlier entries win ties.
func (m *Manager) FindAnswer(ctx context.Context, chatID int64, text string) (string, bool, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false, nil
	}

	faqs, err := m.store.ListFAQs(ctx, chatID)
	if err != nil {
		return "", false, err
	}

	best, answer := 0.0, ""
	for _, f := range faqs {
		if score := Similarity(text, strings.ToLower(f.Question)); score > best {
			best, answer = score, f.Answer
		}
	}
	if best < m.threshold {
		return "", false, nil
	}
	m.logger.DebugContext(ctx, "FAQ matched", "chat_id", chatID, "similarity", best)
	return answer, true, nil
}

// Similarity returns 1 - distance/maxLen over runes, in [0, 1].
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func keywords(question string) string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(question), "")
	return strings.Join(strings.Fields(cleaned), " ")
}
