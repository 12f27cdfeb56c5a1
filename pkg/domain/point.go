package domain

import "image"

// ValidatePoint は p が bounds 内（右端・下端は含まない）にあるかを検証します。
// 範囲外の座標は丸めずにエラーとします。丸めると意図した参照点がずれるためです。
func ValidatePoint(p image.Point, bounds image.Rectangle) error {
	if !p.In(bounds) {
		return &InvalidCoordinateError{Point: p, Bounds: bounds}
	}
	return nil
}
