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

// GeminiVerifier は生成結果をレビューし、合否を判定します。
type GeminiVerifier struct {
	imgCore  ImageGeneratorCore
	aiClient GenerativeModel
	model    string
	timeout  time.Duration
}

// NewGeminiVerifier は GeminiVerifier を生成します。
func NewGeminiVerifier(core ImageGeneratorCore, aiClient GenerativeModel, modelName string, timeout time.Duration) (*GeminiVerifier, error) {
	if core == nil {
		return nil, fmt.Errorf("core is required")
	}
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("modelName is required")
	}
	return &GeminiVerifier{imgCore: core, aiClient: aiClient, model: modelName, timeout: timeout}, nil
}

// Review は生成画像の観察結果を返します。
func (v *GeminiVerifier) Review(ctx context.Context, in domain.Verification) (string, error) {
	return v.ask(ctx, prompt.Review(in.Target, in.Placement, in.Instructions), in)
}

// Examine はレビューを参考に合否と修正指示を返します。
func (v *GeminiVerifier) Examine(ctx context.Context, in domain.Verification, review string) (domain.Verdict, error) {
	raw, err := v.ask(ctx, prompt.Examine(in.Target, in.Placement, in.Instructions, review), in)
	if err != nil {
		return domain.Verdict{}, err
	}
	return prompt.ParseVerdict(raw), nil
}

func (v *GeminiVerifier) ask(ctx context.Context, instruction string, in domain.Verification) (string, error) {
	images := []image.Image{in.Original, in.Edited}
	if in.Target == domain.TargetInsertion && in.Item != nil {
		images = append(images, in.Item)
	}
	imgs, err := imageParts(v.imgCore, images...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrVerificationUnavailable, err)
	}
	parts := append([]*genai.Part{genai.NewPartFromText(instruction)}, imgs...)

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	resp, err := v.aiClient.GenerateContent(ctx, v.model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrVerificationUnavailable, classifyTransportError(err))
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrVerificationUnavailable, errors.New("no text returned by model"))
	}
	return text, nil
}
