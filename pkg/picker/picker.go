// Package picker は注釈を付ける位置（画像上の 1 点）を取得します。
package picker

import (
	"context"
	"image"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
)

// Source は画像上の 1 点を選ぶ手段です。
type Source interface {
	Pick(ctx context.Context, img image.Image) (image.Point, error)
}

// Validate は p が bounds の内側にあるかを検証します。範囲外の座標は丸めずにエラーを返します。
func Validate(p image.Point, bounds image.Rectangle) error {
	return domain.ValidatePoint(p, bounds)
}

// Fixed は数値で指定された座標をそのまま使う Source です。
type Fixed struct {
	X, Y int
}

// Pick は座標を画像の範囲で検証して返します。
func (f Fixed) Pick(_ context.Context, img image.Image) (image.Point, error) {
	p := image.Pt(f.X, f.Y)
	if err := Validate(p, img.Bounds()); err != nil {
		return image.Point{}, err
	}
	return p, nil
}
