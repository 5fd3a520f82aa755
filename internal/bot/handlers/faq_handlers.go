package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/itl33054/wwannengBOT/internal/telegram"
)

// faqHandler manages the per-group FAQ list. Numbers shown to users start at 1.
type faqHandler struct {
	deps HandlerDeps
}

func (h faqHandler) add(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	if !isGroup(msg) {
		h.deps.reply(ctx, api, msg, m.GroupOnly)
		return
	}
	question, answer, ok := strings.Cut(commandArgs(msg.Text), "|")
	question, answer = strings.TrimSpace(question), strings.TrimSpace(answer)
	if !ok || question == "" || answer == "" {
		h.deps.reply(ctx, api, msg, m.FAQUsage)
		return
	}

	added, err := h.deps.FAQ.Add(ctx, msg.Chat.ID, question, answer)
	switch {
	case err != nil:
		h.deps.Logger.ErrorContext(ctx, "Adding FAQ failed", "chat_id", msg.Chat.ID, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
	case !added:
		h.deps.reply(ctx, api, msg, m.FAQExists)
	default:
		h.deps.reply(ctx, api, msg, m.FAQAdded)
	}
}

func (h faqHandler) del(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	if !isGroup(msg) {
		h.deps.reply(ctx, api, msg, m.GroupOnly)
		return
	}
	n, err := strconv.Atoi(commandArgs(msg.Text))
	if err != nil || n < 1 {
		h.deps.reply(ctx, api, msg, m.FAQDelUsage)
		return
	}

	question, ok, err := h.deps.FAQ.DeleteByIndex(ctx, msg.Chat.ID, n-1)
	switch {
	case err != nil:
		h.deps.Logger.ErrorContext(ctx, "Deleting FAQ failed", "chat_id", msg.Chat.ID, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
	case !ok:
		h.deps.reply(ctx, api, msg, m.FAQNotFound)
	default:
		h.deps.reply(ctx, api, msg, render(m.FAQDeleted, "question", question))
	}
}

func (h faqHandler) list(ctx context.Context, api telegram.API, msg *models.Message) {
	m := h.deps.Config.Messages
	if !isGroup(msg) {
		h.deps.reply(ctx, api, msg, m.GroupOnly)
		return
	}
	faqs, err := h.deps.FAQ.List(ctx, msg.Chat.ID)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Listing FAQs failed", "chat_id", msg.Chat.ID, "error", err)
		h.deps.reply(ctx, api, msg, m.GeneralError)
		return
	}
	if len(faqs) == 0 {
		h.deps.reply(ctx, api, msg, m.FAQListEmpty)
		return
	}

	var sb strings.Builder
	sb.WriteString(m.FAQListTitle)
	for i, f := range faqs {
		fmt.Fprintf(&sb, "\n%d. %s\n   %s", i+1, f.Question, f.Answer)
	}
	h.deps.reply(ctx, api, msg, sb.String())
}
