package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/itl33054/wwannengBOT/internal/config"
	"github.com/itl33054/wwannengBOT/internal/database"
	"github.com/itl33054/wwannengBOT/internal/logger"
)

const botID int64 = 999

var sentAt = time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC)

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func testClient(gen generateFunc, retries int) *sdkClient {
	cfg := config.Defaults().Gemini
	cfg.MaxRetries = retries
	cfg.RetryDelaySeconds = 0
	return newSDKClient(gen, cfg, logger.Discard())
}

func history() []database.Message {
	return []database.Message{
		{UserID: 1, UserName: "Alice", Timestamp: sentAt.Unix(), Text: "hi all"},
		{UserID: botID, UserName: "Bot", Timestamp: sentAt.Add(time.Second).Unix(), Text: "hello"},
		{UserID: 2, UserUsername: "bob", Timestamp: sentAt.Add(2 * time.Second).Unix(), Text: ""},
		{UserID: 2, UserUsername: "bob", Timestamp: sentAt.Add(3 * time.Second).Unix(), Text: "@bot what time is it"},
	}
}

func TestFormatMessageForAI(t *testing.T) {
	msgs := history()
	assert.Equal(t, "[2024-05-15 09:30:00] UID 1 (Alice): hi all", formatMessageForAI(&msgs[0]))
	assert.Equal(t, "[2024-05-15 09:30:03] UID 2 (@bob): @bot what time is it", formatMessageForAI(&msgs[3]))

	anon := database.Message{UserID: 3, Timestamp: sentAt.Unix(), Text: "x"}
	assert.Equal(t, "[2024-05-15 09:30:00] UID 3: x", formatMessageForAI(&anon))
}

func TestBuildContentsSkipsEmptyAndMarksBot(t *testing.T) {
	contents := buildContents(history(), botID)
	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, string(genai.RoleUser), contents[2].Role)
}

func TestGenerateReplyStripsPrefixes(t *testing.T) {
	var gotCfg *genai.GenerateContentConfig
	c := testClient(func(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotCfg = cfg
		assert.Equal(t, config.DefaultGeminiModel, model)
		assert.Len(t, contents, 3)
		return textResponse("[2024-05-15 09:30:04] UID 999 (Bot): It is half past nine."), nil
	}, 0)

	reply, err := c.GenerateReply(context.Background(), history(), botID, "wwbot", "WW")
	require.NoError(t, err)
	assert.Equal(t, "It is half past nine.", reply)

	require.NotNil(t, gotCfg.SystemInstruction)
	instruction := gotCfg.SystemInstruction.Parts[0].Text
	assert.Contains(t, instruction, "You are WW")
	assert.Contains(t, instruction, "@wwbot")
	assert.Contains(t, instruction, config.DefaultGeminiInstruction)
	// The shared base config is not mutated.
	assert.Equal(t, config.DefaultGeminiInstruction, c.contentConfig.SystemInstruction.Parts[0].Text)
}

func TestGenerateReplyWithoutText(t *testing.T) {
	c := testClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		t.Fatal("model must not be called")
		return nil, nil
	}, 0)
	_, err := c.GenerateReply(context.Background(), []database.Message{{UserID: 1}}, botID, "b", "B")
	assert.Error(t, err)
}

func TestRetries(t *testing.T) {
	tests := []struct {
		name    string
		errs    []error
		retries int
		calls   int
		wantErr bool
	}{
		{"retriable then success", []error{genai.APIError{Code: 503}, nil}, 2, 2, false},
		{"retriable exhausted", []error{genai.APIError{Code: 500}, genai.APIError{Code: 500}}, 1, 2, true},
		{"not retriable", []error{genai.APIError{Code: 400}}, 3, 1, true},
		{"plain error", []error{errors.New("dial tcp: refused")}, 3, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			c := testClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				err := tt.errs[calls]
				calls++
				if err != nil {
					return nil, err
				}
				return textResponse("ok"), nil
			}, tt.retries)

			reply, err := c.GenerateReply(context.Background(), history(), botID, "b", "B")
			assert.Equal(t, tt.calls, calls)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", reply)
		})
	}
}

func TestExtractTextFromResponse(t *testing.T) {
	c := testClient(nil, 0)
	ctx := context.Background()

	_, err := c.extractTextFromResponse(ctx, &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
			BlockReason:        genai.BlockedReasonSafety,
			BlockReasonMessage: "unsafe",
		},
	})
	assert.ErrorContains(t, err, "unsafe")

	_, err = c.extractTextFromResponse(ctx, &genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = c.extractTextFromResponse(ctx, textResponse("[2024-05-15 09:30:04] UID 1: "))
	assert.Error(t, err)

	text, err := c.extractTextFromResponse(ctx, textResponse("line one\nline two"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
}
