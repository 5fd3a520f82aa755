package database

import (
	"context"
	"fmt"
)

// AddFAQ inserts faq and sets its ID. A duplicate question in the same chat
// returns ErrConflict.
func (s *sqlxStore) AddFAQ(ctx context.Context, faq *FAQ) error {
	if faq == nil {
		return fmt.Errorf("cannot save nil faq")
	}

	result, err := s.db.ExecContext(ctx, `
        INSERT INTO faqs (chat_id, question, answer, keywords) VALUES (?, ?, ?, ?)
        ON CONFLICT(chat_id, question) DO NOTHING;
    `, formatID(faq.ChatID), faq.Question, faq.Answer, faq.Keywords)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving FAQ", "chat_id", faq.ChatID, "error", err)
		return fmt.Errorf("failed to save faq for chat %d: %w", faq.ChatID, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrConflict
	}
	if id, err := result.LastInsertId(); err == nil {
		faq.ID = id
	}
	return nil
}

// ListFAQs returns the FAQs of a chat in insertion order.
func (s *sqlxStore) ListFAQs(ctx context.Context, chatID int64) ([]FAQ, error) {
	var faqs []FAQ
	err := s.db.SelectContext(ctx, &faqs, `
        SELECT id, chat_id, question, answer, keywords FROM faqs
        WHERE chat_id = ? ORDER BY id ASC;
    `, formatID(chatID))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing FAQs", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to list faqs of chat %d: %w", chatID, err)
	}
	return faqs, nil
}

// DeleteFAQ removes one FAQ by id, returning ErrNotFound when absent.
func (s *sqlxStore) DeleteFAQ(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM faqs WHERE id = ?;`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting FAQ", "faq_id", id, "error", err)
		return fmt.Errorf("failed to delete faq %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}
