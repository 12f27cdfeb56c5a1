package adapters

import (
	"context"
	"image"
	"sync"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
)

// mockImageCore は ImageGeneratorCore インターフェースのテスト用モックなのだ。
type mockImageCore struct {
	toPartFunc func(img image.Image) (*genai.Part, error)
	parseFunc  func(resp *genai.GenerateContentResponse, seed int64) (*domain.GenerationResult, error)
}

func (m *mockImageCore) ToPart(img image.Image) (*genai.Part, error) {
	if m.toPartFunc != nil {
		return m.toPartFunc(img)
	}
	// 画像の順序を確認できるよう、幅を Data に入れておくのだ
	return &genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{byte(img.Bounds().Dx())}}}, nil
}

func (m *mockImageCore) ParseToResponse(resp *genai.GenerateContentResponse, seed int64) (*domain.GenerationResult, error) {
	if m.parseFunc != nil {
		return m.parseFunc(resp, seed)
	}
	return &domain.GenerationResult{UsedSeed: seed, Success: true}, nil
}

// mockAIClient は GenerativeModel のテスト用モックなのだ。呼び出しを記録するのだ。
type mockAIClient struct {
	mu           sync.Mutex
	calls        int
	generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockAIClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.generateFunc != nil {
		return m.generateFunc(ctx, model, contents, config)
	}
	return nil, nil
}

// mockChatCompleter は ChatCompleter のテスト用モックなのだ。
type mockChatCompleter struct {
	createFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (m *mockChatCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return m.createFunc(ctx, req)
}

// textResponse はテキストだけを返す応答を作るのだ。
func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}, FinishReason: genai.FinishReasonStop},
		},
	}
}
