package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
	"github.com/shouni/gemini-roomplan-kit/pkg/utils"
)

// GeminiImageGenerator は 1 回分の生成リクエストを Gemini に送るアダプター層です。
// リトライは行いません（呼び出し側のワークフローが担います）。
type GeminiImageGenerator struct {
	imgCore  ImageGeneratorCore // 共通ロジック保持（コンポジション）
	aiClient GenerativeModel    // 通信クライアント
	model    string             // 使用するモデル名
	timeout  time.Duration      // 1 呼び出しあたりのタイムアウト（0 で無制限）
}

// NewGeminiImageGenerator は GeminiImageCore と依存関係を注入して初期化します。
func NewGeminiImageGenerator(
	core ImageGeneratorCore,
	aiClient GenerativeModel,
	modelName string,
	timeout time.Duration,
) (*GeminiImageGenerator, error) {
	if core == nil {
		return nil, fmt.Errorf("core is required")
	}
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("modelName is required")
	}
	return &GeminiImageGenerator{
		imgCore:  core,
		aiClient: aiClient,
		model:    modelName,
		timeout:  timeout,
	}, nil
}

// Generate はプロンプトと画像（リクエストの順序どおり）を送り、最初の生成画像を返します。
func (a *GeminiImageGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	imgs, err := imageParts(a.imgCore, req.Images...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	parts := append([]*genai.Part{genai.NewPartFromText(req.Prompt)}, imgs...)
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	// domain.Seed (*int64) を SDK 用の *int32 に変換する
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Seed:               utils.SeedToPtrInt32(req.Seed),
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.aiClient.GenerateContent(ctx, a.model, contents, config)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	slog.DebugContext(ctx, "画像生成の応答を受信しました", "model", a.model, "images", len(req.Images), "elapsed", time.Since(start))

	// 入力シード値を UsedSeed の初期値として扱うため、int64 型で抽出します。
	return a.imgCore.ParseToResponse(resp, utils.DereferenceSeed(req.Seed))
}
