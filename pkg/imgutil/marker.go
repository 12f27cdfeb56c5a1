package imgutil

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
)

// Annotate は img のコピー上の p に円形マーカーを描いて返します。
// 入力画像は変更しません。円の外側のピクセルは入力と同一です。
func Annotate(img image.Image, p image.Point, style domain.MarkerStyle) (*image.RGBA, error) {
	b := img.Bounds()
	if err := domain.ValidatePoint(p, b); err != nil {
		return nil, err
	}

	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	style = style.Normalize()
	r := style.ResolveRadius(b)
	r2 := r * r
	// 外周リングの内側境界。これより内側は塗り色
	inner := r - style.OutlineWidth
	inner2 := -1
	if inner > 0 {
		inner2 = inner * inner
	}

	area := image.Rect(p.X-r, p.Y-r, p.X+r+1, p.Y+r+1).Intersect(b)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			dx, dy := x-p.X, y-p.Y
			d2 := dx*dx + dy*dy
			if d2 > r2 {
				continue
			}
			c := style.Fill
			if style.OutlineWidth > 0 && d2 > inner2 {
				c = style.Outline
			}
			dst.SetRGBA(x, y, c)
		}
	}
	return dst, nil
}
