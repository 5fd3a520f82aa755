// Package telegramtest provides a testify mock of the Bot API.
package telegramtest

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/mock"
)

// API mocks telegram.API. Sent messages are also recorded in order so tests
// can assert on text without setting an expectation per call when
// RecordSends is used.
type API struct {
	mock.Mock

	mu    sync.Mutex
	sends []*bot.SendMessageParams
}

// RecordSends makes SendMessage accept any call and remember its params.
func (m *API) RecordSends() {
	m.On("SendMessage", mock.Anything, mock.Anything).Return(&models.Message{ID: 1}, nil).Maybe()
}

// Sent returns the recorded SendMessage params.
func (m *API) Sent() []*bot.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*bot.SendMessageParams(nil), m.sends...)
}

// SentTexts returns the text of every recorded message.
func (m *API) SentTexts() []string {
	var texts []string
	for _, p := range m.Sent() {
		texts = append(texts, p.Text)
	}
	return texts
}

func (m *API) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	m.sends = append(m.sends, params)
	m.mu.Unlock()
	args := m.Called(ctx, params)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *API) DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error) {
	args := m.Called(ctx, params)
	return args.Bool(0), args.Error(1)
}

func (m *API) RestrictChatMember(ctx context.Context, params *bot.RestrictChatMemberParams) (bool, error) {
	args := m.Called(ctx, params)
	return args.Bool(0), args.Error(1)
}

func (m *API) GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error) {
	args := m.Called(ctx, params)
	member, _ := args.Get(0).(*models.ChatMember)
	return member, args.Error(1)
}

func (m *API) SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error) {
	args := m.Called(ctx, params)
	return args.Bool(0), args.Error(1)
}

// Member builds a chat member of the given type.
func Member(t models.ChatMemberType) *models.ChatMember {
	m := &models.ChatMember{Type: t}
	switch t {
	case models.ChatMemberTypeOwner:
		m.Owner = &models.ChatMemberOwner{}
	case models.ChatMemberTypeAdministrator:
		m.Administrator = &models.ChatMemberAdministrator{}
	case models.ChatMemberTypeMember:
		m.Member = &models.ChatMemberMember{}
	}
	return m
}

// Admin builds an administrator with or without the restrict right.
func Admin(canRestrict bool) *models.ChatMember {
	return &models.ChatMember{
		Type:          models.ChatMemberTypeAdministrator,
		Administrator: &models.ChatMemberAdministrator{CanRestrictMembers: canRestrict},
	}
}
