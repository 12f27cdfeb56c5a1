package domain

import "image"

// VerifyTarget は検証対象の編集の種類です。
type VerifyTarget int

const (
	// TargetInsertion は家具の配置結果を検証します。
	TargetInsertion VerifyTarget = iota
	// TargetRemoval は家具の削除結果を検証します。
	TargetRemoval
)

func (t VerifyTarget) String() string {
	if t == TargetRemoval {
		return "removal"
	}
	return "insertion"
}

// Verification はレビューと審査に渡す材料です。
// Item は削除の検証では nil です。
type Verification struct {
	Target       VerifyTarget
	Original     image.Image
	Edited       image.Image
	Item         image.Image
	Placement    string // 位置説明
	Instructions string
}

// Verdict は審査の判定です。
type Verdict struct {
	Passed   bool
	Feedback string
}
