// Package workflow はクリック位置から生成までの各段階を順に実行します。
package workflow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
	"github.com/shouni/gemini-roomplan-kit/pkg/imgutil"
	"github.com/shouni/gemini-roomplan-kit/pkg/prompt"
)

// ErrFlowDisabled は設定で無効化されたフローを実行しようとしたときに返ります。
var ErrFlowDisabled = errors.New("flow disabled")

// Options は Orchestrator の依存と設定です。
type Options struct {
	Generator ImageGenerator
	Describer LocationDescriber
	Verifier  PlacementVerifier

	Retry           RetryPolicy
	Marker          domain.MarkerStyle
	Seed            *int64 // nil でランダム
	FloorPlanPrompt string
	// DisableDescribe を true にすると位置説明を必要とするフローを拒否します（劣化運転はしません）。
	DisableDescribe bool
	// OnAttempt は検証付き実行で各試行が終わるたびに呼ばれます。
	OnAttempt func(Attempt)
	Logger    *slog.Logger
}

// Orchestrator はフローの順序、失敗時の打ち切り、再試行を受け持ちます。
// キャッシュは持たず、同じ入力には同じリクエストを組み立てます。
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
}

// New は Options を検証して Orchestrator を生成します。
func New(opts Options) (*Orchestrator, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{opts: opts, logger: logger}, nil
}

// plan は検証ループから 1 回分の実行に渡す上書き設定です。
type plan struct {
	location string // 空でなければ Annotate と Describe を省略
	feedback string
	verify   bool // true なら Done に進まず Generate で止める
}

// run は 1 回のフロー実行の状態遷移を記録します。
type run struct {
	res    *FlowResult
	logger *slog.Logger
}

func (r *run) enter(ctx context.Context, s State) {
	r.res.State = s
	r.res.Trace = append(r.res.Trace, s)
	r.logger.DebugContext(ctx, "状態遷移", "state", string(s))
}

func (r *run) fail(ctx context.Context, err error) (*FlowResult, error) {
	r.res.Err = err
	r.logger.WarnContext(ctx, "フローが失敗しました", "at", string(r.res.State), "error", err)
	r.enter(ctx, StateFailed)
	return r.res, err
}

// Run は指定されたフローを実行します。結果は失敗時も nil になりません。
func (o *Orchestrator) Run(ctx context.Context, kind FlowKind, in Input) (*FlowResult, error) {
	return o.run(ctx, kind, in, plan{})
}

// FloorPlan は部屋写真を間取り図に変換します。
func (o *Orchestrator) FloorPlan(ctx context.Context, room image.Image) (*FlowResult, error) {
	return o.Run(ctx, FlowFloorPlan, Input{Room: room})
}

// TwoStepInsertion は位置説明を経由して家具を配置します。
func (o *Orchestrator) TwoStepInsertion(ctx context.Context, in Input) (*FlowResult, error) {
	return o.Run(ctx, FlowTwoStepInsertion, in)
}

// DirectInsertion はマーカー付き間取り図を直接使って家具を配置します。
func (o *Orchestrator) DirectInsertion(ctx context.Context, in Input) (*FlowResult, error) {
	return o.Run(ctx, FlowDirectInsertion, in)
}

// Removal はクリック位置の家具を取り除きます。
func (o *Orchestrator) Removal(ctx context.Context, in Input) (*FlowResult, error) {
	return o.Run(ctx, FlowRemoval, in)
}

func (o *Orchestrator) run(ctx context.Context, kind FlowKind, in Input, p plan) (*FlowResult, error) {
	r := &run{
		res:    &FlowResult{Kind: kind},
		logger: o.logger.With("run_id", uuid.NewString(), "flow", string(kind)),
	}
	r.enter(ctx, StateStart)
	start := time.Now()

	var err error
	switch kind {
	case FlowFloorPlan:
		err = o.floorPlan(ctx, r, in)
	case FlowTwoStepInsertion:
		if o.opts.DisableDescribe {
			return r.fail(ctx, fmt.Errorf("%w: %s requires the describe step", ErrFlowDisabled, kind))
		}
		err = o.twoStep(ctx, r, in, p)
	case FlowDirectInsertion:
		err = o.direct(ctx, r, in, p)
	case FlowRemoval:
		if o.opts.DisableDescribe {
			return r.fail(ctx, fmt.Errorf("%w: %s requires the describe step", ErrFlowDisabled, kind))
		}
		err = o.removal(ctx, r, in, p)
	default:
		err = fmt.Errorf("unknown flow: %q", kind)
	}
	if err != nil {
		return r.fail(ctx, err)
	}
	if !p.verify {
		r.enter(ctx, StateDone)
	}
	r.logger.InfoContext(ctx, "フローが完了しました", "attempts", r.res.Attempts, "elapsed", time.Since(start))
	return r.res, nil
}

func (o *Orchestrator) floorPlan(ctx context.Context, r *run, in Input) error {
	if in.Room == nil {
		return fmt.Errorf("%w: room image is required", domain.ErrInvalidRequest)
	}
	return o.generate(ctx, r, prompt.FloorPlanTask(o.opts.FloorPlanPrompt), in.Room)
}

func (o *Orchestrator) twoStep(ctx context.Context, r *run, in Input, p plan) error {
	if in.Room == nil || in.Object == nil {
		return fmt.Errorf("%w: object and room images are required", domain.ErrInvalidRequest)
	}
	location, err := o.locate(ctx, r, in, p)
	if err != nil {
		return err
	}
	r.enter(ctx, StateBuildPrompt)
	text := prompt.Context{
		Task:         prompt.InsertTask,
		Location:     location,
		Instructions: in.Instructions,
		Feedback:     p.feedback,
	}.String()
	return o.generate(ctx, r, text, in.Object, in.Room)
}

func (o *Orchestrator) direct(ctx context.Context, r *run, in Input, p plan) error {
	if in.Room == nil || in.Object == nil {
		return fmt.Errorf("%w: object and room images are required", domain.ErrInvalidRequest)
	}
	annotated, err := o.annotate(ctx, r, in)
	if err != nil {
		return err
	}
	r.enter(ctx, StateBuildPrompt)
	text := prompt.Context{
		Task:         prompt.DirectInsertTask,
		Instructions: in.Instructions,
		Feedback:     p.feedback,
	}.String()
	return o.generate(ctx, r, text, in.Object, annotated, in.Room)
}

func (o *Orchestrator) removal(ctx context.Context, r *run, in Input, p plan) error {
	if in.Room == nil {
		return fmt.Errorf("%w: room image is required", domain.ErrInvalidRequest)
	}
	location, err := o.locate(ctx, r, in, p)
	if err != nil {
		return err
	}
	r.enter(ctx, StateBuildPrompt)
	text := prompt.Context{
		Task:         prompt.RemoveTask,
		Location:     location,
		Instructions: in.Instructions,
		Feedback:     p.feedback,
	}.String()
	return o.generate(ctx, r, text, in.Room)
}

// annotate は注釈済み画像を返します。呼び出し側が用意していれば Annotate を省略します。
func (o *Orchestrator) annotate(ctx context.Context, r *run, in Input) (image.Image, error) {
	if in.Annotated != nil {
		r.res.Annotated = in.Annotated
		return in.Annotated, nil
	}
	r.enter(ctx, StateAnnotate)
	target := in.Layout
	if target == nil {
		target = in.Room
	}
	if target == nil {
		return nil, fmt.Errorf("%w: no image to annotate", domain.ErrInvalidRequest)
	}
	annotated, err := imgutil.Annotate(target, in.Point, o.opts.Marker)
	if err != nil {
		return nil, err
	}
	r.res.Annotated = annotated
	return annotated, nil
}

// locate は注釈と位置説明を行い、説明文を返します。
func (o *Orchestrator) locate(ctx context.Context, r *run, in Input, p plan) (string, error) {
	if p.location != "" {
		r.res.Location = p.location
		return p.location, nil
	}
	annotated, err := o.annotate(ctx, r, in)
	if err != nil {
		return "", err
	}

	r.enter(ctx, StateDescribe)
	if o.opts.Describer == nil {
		return "", fmt.Errorf("%w: describer is not configured", domain.ErrDescriptionUnavailable)
	}
	location, err := o.opts.Describer.Describe(ctx, in.Room, annotated)
	if err != nil {
		if !errors.Is(err, domain.ErrDescriptionUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrDescriptionUnavailable, err)
		}
		return "", err
	}
	if location == "" {
		return "", fmt.Errorf("%w: empty description", domain.ErrDescriptionUnavailable)
	}
	r.logger.InfoContext(ctx, "位置説明を取得しました", "location", location)
	r.res.Location = location
	return location, nil
}

func (o *Orchestrator) generate(ctx context.Context, r *run, text string, images ...image.Image) error {
	req := domain.GenerationRequest{Prompt: text, Images: images, Seed: o.opts.Seed}
	if err := req.Validate(); err != nil {
		return err
	}
	r.res.Request = &req
	r.enter(ctx, StateGenerate)

	var result *domain.GenerationResult
	attempts, err := o.opts.Retry.do(ctx, func() error {
		res, err := o.opts.Generator.Generate(ctx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	}, func(err error, wait time.Duration) {
		r.logger.WarnContext(ctx, "画像生成に失敗したため再試行します", "error", err, "wait", wait)
	})
	r.res.Attempts = attempts
	if err != nil {
		return err
	}
	if result == nil || result.Image == nil {
		return fmt.Errorf("%w: generator returned no image", domain.ErrGenerationRejected)
	}
	r.res.Result = result
	return nil
}
