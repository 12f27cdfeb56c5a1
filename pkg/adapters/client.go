package adapters

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// NewGeminiClient は Gemini API 用のクライアントを生成します。
// 戻り値の Models フィールドが GenerativeModel を満たします。
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}
	return client, nil
}

var _ GenerativeModel = (*genai.Models)(nil)
