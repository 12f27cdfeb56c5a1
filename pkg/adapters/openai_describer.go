package adapters

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
	"github.com/shouni/gemini-roomplan-kit/pkg/imgutil"
	"github.com/shouni/gemini-roomplan-kit/pkg/prompt"
)

// ChatCompleter は *openai.Client のうち本パッケージが使うメソッドです。
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient は API キーと任意のベース URL から OpenAI 互換クライアントを生成します。
func NewOpenAIClient(apiKey, baseURL string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg), nil
}

// OpenAIDescriber は OpenAI 互換のビジョンモデルで位置説明を取得します。
type OpenAIDescriber struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
}

// NewOpenAIDescriber は OpenAIDescriber を生成します。
func NewOpenAIDescriber(client ChatCompleter, modelName string, timeout time.Duration) (*OpenAIDescriber, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("modelName is required")
	}
	return &OpenAIDescriber{client: client, model: modelName, timeout: timeout}, nil
}

// Describe は GeminiDescriber と同じ契約で位置説明を返します。画像は base64 の data URL で送ります。
func (d *OpenAIDescriber) Describe(ctx context.Context, original, annotated image.Image) (string, error) {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt.DescribeLocation},
	}
	for i, img := range []image.Image{original, annotated} {
		url, err := dataURL(img)
		if err != nil {
			return "", fmt.Errorf("%w: 画像 %d の変換に失敗しました: %w", domain.ErrDescriptionUnavailable, i, err)
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: url},
		})
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDescriptionUnavailable, classifyTransportError(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %w", domain.ErrDescriptionUnavailable, errors.New("no choices returned by model"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrDescriptionUnavailable, errors.New("no text returned by model"))
	}
	return text, nil
}

func dataURL(img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("image is required")
	}
	data, err := imgutil.EncodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:" + imgutil.MimePNG + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
