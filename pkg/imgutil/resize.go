package imgutil

import (
	"image"

	"golang.org/x/image/draw"
)

// FitWidth は幅が maxWidth を超える画像を縦横比を保って縮小します。
// 戻り値の scale は「元の幅 / 表示幅」で、表示座標に掛けると元画像の座標になります。
// 縮小が不要なら img をそのまま返し、scale は 1 です。
func FitWidth(img image.Image, maxWidth int) (image.Image, float64) {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img, 1
	}

	scale := float64(b.Dx()) / float64(maxWidth)
	h := int(float64(b.Dy())/scale + 0.5)
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, scale
}

// ToSource は表示座標を元画像の座標へ戻します。範囲の検証は呼び出し側で行います。
func ToSource(display image.Point, scale float64, bounds image.Rectangle) image.Point {
	return image.Pt(
		bounds.Min.X+int(float64(display.X)*scale),
		bounds.Min.Y+int(float64(display.Y)*scale),
	)
}
