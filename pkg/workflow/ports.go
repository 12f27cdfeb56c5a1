package workflow

import (
	"context"
	"image"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
)

// ImageGenerator は 1 回分の画像生成を行います。リトライはしません。
type ImageGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

// LocationDescriber は注釈付き画像の赤い点の位置を自然文で説明します。
// 失敗時は domain.ErrDescriptionUnavailable を返し、空文字列は返しません。
type LocationDescriber interface {
	Describe(ctx context.Context, original, annotated image.Image) (string, error)
}

// PlacementVerifier は生成結果をレビューし、合否を判定します。
type PlacementVerifier interface {
	Review(ctx context.Context, in domain.Verification) (string, error)
	Examine(ctx context.Context, in domain.Verification, review string) (domain.Verdict, error)
}
