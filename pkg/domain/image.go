package domain

import (
	"fmt"
	"image"
	"image/color"
)

const (
	// MaxRequestImages は 1 回の生成リクエストに含められる画像の上限です。
	MaxRequestImages = 3
	// MinMarkerRadius は自動算出されるマーカー半径の下限です。
	MinMarkerRadius = 4
	// DefaultOutlineWidth はマーカー外周の太さです。
	DefaultOutlineWidth = 2
)

// GenerationRequest は生成モデルへ送る 1 回分の要求です。
// Images の順序はそのままモデルへ渡されます（モデルは画像順に敏感）。
type GenerationRequest struct {
	Prompt string
	Images []image.Image
	Seed   *int64 // nil でランダム
}

// Validate は画像枚数とプロンプトの有無を検証します。
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("%w: prompt is empty", ErrInvalidRequest)
	}
	if n := len(r.Images); n == 0 || n > MaxRequestImages {
		return fmt.Errorf("%w: image count must be 1-%d, got %d", ErrInvalidRequest, MaxRequestImages, n)
	}
	for i, img := range r.Images {
		if img == nil {
			return fmt.Errorf("%w: image %d is nil", ErrInvalidRequest, i)
		}
	}
	return nil
}

// GenerationResult は生成された画像とそのメタデータです。
type GenerationResult struct {
	Image    image.Image
	Data     []byte // モデルが返した生データ
	MimeType string
	Text     string // 画像と一緒に返されたテキスト（あれば）
	UsedSeed int64  // 戻り値は情報欠落を防ぐため int64
	Success  bool
}

// MarkerStyle は注釈マーカーの見た目です。
// Radius が 0 の場合は画像サイズから自動で決めます。
type MarkerStyle struct {
	Radius       int
	Fill         color.RGBA
	Outline      color.RGBA
	OutlineWidth int
}

// DefaultMarkerStyle は線画の間取り図上でも見落とさない赤い点を返します。
func DefaultMarkerStyle() MarkerStyle {
	return MarkerStyle{
		Fill:         color.RGBA{R: 0xFF, A: 0xFF},
		Outline:      color.RGBA{R: 0x8B, A: 0xFF},
		OutlineWidth: DefaultOutlineWidth,
	}
}

// Normalize は未設定（アルファ 0）の色を既定値で埋めます。
func (s MarkerStyle) Normalize() MarkerStyle {
	def := DefaultMarkerStyle()
	if s.Fill.A == 0 {
		s.Fill = def.Fill
	}
	if s.Outline.A == 0 {
		s.Outline = def.Outline
		if s.OutlineWidth == 0 {
			s.OutlineWidth = def.OutlineWidth
		}
	}
	if s.OutlineWidth < 0 {
		s.OutlineWidth = 0
	}
	return s
}

// ResolveRadius は bounds に対する実際の半径を返します。
// 自動算出時は短辺の約 1%。
func (s MarkerStyle) ResolveRadius(bounds image.Rectangle) int {
	if s.Radius > 0 {
		return s.Radius
	}
	short := bounds.Dx()
	if bounds.Dy() < short {
		short = bounds.Dy()
	}
	r := (short + 50) / 100
	if r < MinMarkerRadius {
		r = MinMarkerRadius
	}
	return r
}
