package domain

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrInvalidCoordinate は座標が画像の範囲外のときに返ります。呼び出し側の誤りでリトライ不可。
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrPickerCancelled はクリックされずに選択画面が閉じられたときに返ります。
	ErrPickerCancelled = errors.New("picker cancelled")
	// ErrDescriptionUnavailable は位置説明を取得できなかったときに返ります。
	ErrDescriptionUnavailable = errors.New("location description unavailable")
	// ErrGenerationTimeout は生成呼び出しのタイムアウトです。
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrGenerationRejected は生成サービスが要求を拒否したことを表します（安全フィルター等）。
	// 同じプロンプトで再試行しても意味がありません。
	ErrGenerationRejected = errors.New("generation rejected")
	// ErrGenerationTransport は通信・認証エラーです。
	ErrGenerationTransport = errors.New("generation transport failure")
	// ErrVerificationUnavailable はレビュー／審査呼び出しが失敗したときに返ります。
	ErrVerificationUnavailable = errors.New("verification unavailable")
	// ErrInvalidRequest は生成リクエスト自体が不正なときに返ります。
	ErrInvalidRequest = errors.New("invalid generation request")
)

// InvalidCoordinateError は範囲外の座標と画像サイズを保持します。
type InvalidCoordinateError struct {
	Point  image.Point
	Bounds image.Rectangle
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("%s: (%d, %d) is outside %dx%d", ErrInvalidCoordinate, e.Point.X, e.Point.Y, e.Bounds.Dx(), e.Bounds.Dy())
}

// Is は errors.Is(err, ErrInvalidCoordinate) を成立させます。
func (e *InvalidCoordinateError) Is(target error) bool {
	return target == ErrInvalidCoordinate
}

// IsRetryable はフロー全体または生成ステージを再試行する価値があるかを返します。
// 拒否・入力誤り・キャンセルは対象外です。
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrGenerationRejected),
		errors.Is(err, ErrInvalidCoordinate),
		errors.Is(err, ErrPickerCancelled),
		errors.Is(err, ErrInvalidRequest):
		return false
	}
	return errors.Is(err, ErrGenerationTimeout) ||
		errors.Is(err, ErrGenerationTransport) ||
		errors.Is(err, ErrDescriptionUnavailable)
}
