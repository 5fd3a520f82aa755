// Package gemini implements integration with Google's Gemini AI API.
// It generates the replies the bot posts when it is addressed.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/itl33054/wwannengBOT/internal/config"
	"github.com/itl33054/wwannengBOT/internal/database"
)

// Client generates chat replies.
type Client interface {
	// GenerateReply answers the last message of history. history is oldest first.
	GenerateReply(ctx context.Context, history []database.Message, botID int64, botUsername, botFirstName string) (string, error)
}

// generateFunc matches genai's Models.GenerateContent.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type sdkClient struct {
	generate         generateFunc
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
	timeout          time.Duration
}

var messagePrefix = regexp.MustCompile(`(?m)^(?:\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] UID -?\d+(?: \([^)\n]*\))?: )+`)

func (c *sdkClient) prependBotHeader(cfg *genai.GenerateContentConfig, botUsername, botFirstName string) *genai.GenerateContentConfig {
	copyCfg := *cfg
	header := fmt.Sprintf(MentionSystemInstructionHeader, botFirstName, botUsername, botUsername)

	var existingText string
	if cfg.SystemInstruction != nil && len(cfg.SystemInstruction.Parts) > 0 {
		existingText = cfg.SystemInstruction.Parts[0].Text
	}

	copyCfg.SystemInstruction = &genai.Content{
		Parts: []*genai.Part{
			{Text: header + existingText},
		},
	}
	return &copyCfg
}

func formatMessageForAI(m *database.Message) string {
	name := strings.TrimSpace(m.UserName)
	if name == "" && m.UserUsername != "" {
		name = "@" + m.UserUsername
	}
	if name == "" {
		return fmt.Sprintf("[%s] UID %d: %s", m.SentAt().Format(time.DateTime), m.UserID, m.Text)
	}
	return fmt.Sprintf("[%s] UID %d (%s): %s", m.SentAt().Format(time.DateTime), m.UserID, name, m.Text)
}

// buildContents maps history to genai contents. Messages sent by the bot use
// the model role.
func buildContents(history []database.Message, botID int64) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for i := range history {
		m := &history[i]
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if m.UserID == botID {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(formatMessageForAI(m), role))
	}
	return contents
}

// NewClient creates a new Gemini AI client with the provided configuration.
func NewClient(
	ctx context.Context,
	cfg config.GeminiConfig,
	log *slog.Logger,
) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return newSDKClient(gi.Models.GenerateContent, cfg, logger), nil
}

func newSDKClient(generate generateFunc, cfg config.GeminiConfig, logger *slog.Logger) *sdkClient {
	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,

		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
	if cfg.SystemInstruction != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}

	return &sdkClient{
		generate:         generate,
		log:              logger,
		contentConfig:    baseCfg,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
		timeout:          cfg.Timeout,
	}
}

func retriable(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Code == http.StatusInternalServerError || apiErr.Code == http.StatusServiceUnavailable
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code, apiErrPtr.Code == http.StatusInternalServerError || apiErrPtr.Code == http.StatusServiceUnavailable
	}
	return 0, false
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		var resp *genai.GenerateContentResponse
		resp, err = c.generate(ctx, modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		code, ok := retriable(err)
		if !ok {
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}
		if i == c.maxRetries {
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, code, err)
		}

		c.log.InfoContext(ctx, "Retrying Gemini API call due to retriable APIError", "delay", c.retryDelay, "code", code)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gemini retry aborted: %w", ctx.Err())
		case <-time.After(c.retryDelay):
		}
	}
	return nil, err
}

func (c *sdkClient) GenerateReply(ctx context.Context, history []database.Message, botID int64, botUsername, botFirstName string) (string, error) {
	contents := buildContents(history, botID)
	if len(contents) == 0 {
		return "", fmt.Errorf("no message to reply to")
	}
	c.log.DebugContext(ctx, "Generating reply", "message_count", len(contents))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cfgWithHeader := c.prependBotHeader(c.contentConfig, botUsername, botFirstName)
	resp, err := c.generateContentWithRetries(ctx, c.defaultModelName, contents, cfgWithHeader)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini reply generation failed", "error", err)
		return "", err
	}

	return c.extractTextFromResponse(ctx, resp)
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("gemini returned no response")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("reply blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("reply returned no content, finish reason: %s", finishReason)
	}

	rawText := resp.Text()
	cleanText := strings.TrimSpace(messagePrefix.ReplaceAllString(rawText, ""))
	if cleanText == "" {
		c.log.WarnContext(ctx, "Gemini response text is empty after stripping prefixes", "raw_text", rawText)
		return "", fmt.Errorf("reply was empty after processing")
	}

	return cleanText, nil
}
