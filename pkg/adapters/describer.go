package adapters

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"google.golang.org/genai"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
	"github.com/shouni/gemini-roomplan-kit/pkg/prompt"
)

// GeminiDescriber は赤い点の位置を Gemini のビジョンモデルで自然文に変換します。
type GeminiDescriber struct {
	imgCore  ImageGeneratorCore
	aiClient GenerativeModel
	model    string
	timeout  time.Duration
}

// NewGeminiDescriber は GeminiDescriber を生成します。
func NewGeminiDescriber(core ImageGeneratorCore, aiClient GenerativeModel, modelName string, timeout time.Duration) (*GeminiDescriber, error) {
	if core == nil {
		return nil, fmt.Errorf("core is required")
	}
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("modelName is required")
	}
	return &GeminiDescriber{imgCore: core, aiClient: aiClient, model: modelName, timeout: timeout}, nil
}

// Describe は [指示, 元画像, 注釈付き画像] の順で送り、位置の説明文を返します。
// 失敗や空の応答は domain.ErrDescriptionUnavailable です。空文字列を返すことはありません。
func (d *GeminiDescriber) Describe(ctx context.Context, original, annotated image.Image) (string, error) {
	imgs, err := imageParts(d.imgCore, original, annotated)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDescriptionUnavailable, err)
	}
	parts := append([]*genai.Part{genai.NewPartFromText(prompt.DescribeLocation)}, imgs...)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.aiClient.GenerateContent(ctx, d.model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrDescriptionUnavailable, classifyTransportError(err))
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrDescriptionUnavailable, errors.New("no text returned by model"))
	}
	return text, nil
}
