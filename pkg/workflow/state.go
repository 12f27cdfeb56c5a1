package workflow

import (
	"fmt"
	"image"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
)

// FlowKind はワークフローの種類です。
type FlowKind string

const (
	// FlowFloorPlan は部屋写真から間取り図を生成します。
	FlowFloorPlan FlowKind = "floorplan"
	// FlowTwoStepInsertion はクリック位置を説明文に変換してから家具を配置します。
	FlowTwoStepInsertion FlowKind = "two-step"
	// FlowDirectInsertion はマーカー付き間取り図をそのまま生成モデルに渡して配置します。
	FlowDirectInsertion FlowKind = "direct"
	// FlowRemoval はクリック位置の家具を取り除きます。
	FlowRemoval FlowKind = "removal"
)

// ParseFlowKind は名前から FlowKind を得ます。
func ParseFlowKind(name string) (FlowKind, error) {
	switch k := FlowKind(name); k {
	case FlowFloorPlan, FlowTwoStepInsertion, FlowDirectInsertion, FlowRemoval:
		return k, nil
	}
	return "", fmt.Errorf("unknown flow: %q", name)
}

// State はフロー内の段階です。
type State string

const (
	StateStart       State = "start"
	StateAnnotate    State = "annotate"
	StateDescribe    State = "describe"
	StateBuildPrompt State = "build_prompt"
	StateGenerate    State = "generate"
	StateVerify      State = "verify"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Input はフローへの入力です。使わない項目は無視されます。
type Input struct {
	// Room は元の部屋写真です。
	Room image.Image
	// Object は配置する家具の画像です（挿入フローのみ）。
	Object image.Image
	// Layout は注釈を付ける画像（通常は間取り図）です。nil の場合は Room に注釈を付けます。
	Layout image.Image
	// Annotated は注釈済みの画像です。指定された場合は Annotate を省略します。
	Annotated image.Image
	// Point は Layout（または Room）上のクリック位置です。
	Point        image.Point
	Instructions string
}

// FlowResult は 1 回のフロー実行の結果です。
// 失敗時も State と Trace はそこまでの経過を表します。
type FlowResult struct {
	Kind      FlowKind
	State     State
	Trace     []State
	Location  string
	Annotated image.Image
	Request   *domain.GenerationRequest
	Result    *domain.GenerationResult
	Attempts  int // 生成の試行回数
	Err       error
}
