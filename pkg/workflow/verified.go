package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
	"github.com/shouni/gemini-roomplan-kit/pkg/prompt"
)

// Attempt は生成と検証 1 回分の記録です。
type Attempt struct {
	Number  int
	Result  *FlowResult
	Review  string
	Verdict domain.Verdict
}

// VerifiedResult は検証付き実行の結果です。Final は最後の試行の結果です。
type VerifiedResult struct {
	Final    *FlowResult
	Passed   bool
	Attempts []Attempt
}

// RunVerified は生成、レビュー、審査を合格するか maxAttempts に達するまで繰り返します。
// 不合格時の修正指示は次の試行のプロンプトに積み上げます。
// 位置説明は最初の試行でだけ取得します。
func (o *Orchestrator) RunVerified(ctx context.Context, kind FlowKind, in Input, maxAttempts int) (*VerifiedResult, error) {
	var target domain.VerifyTarget
	switch kind {
	case FlowTwoStepInsertion:
		target = domain.TargetInsertion
	case FlowRemoval:
		target = domain.TargetRemoval
	default:
		return nil, fmt.Errorf("%w: verification is not supported for %s", ErrFlowDisabled, kind)
	}
	if o.opts.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	out := &VerifiedResult{}
	var location string
	var feedback []string

	for i := 1; i <= maxAttempts; i++ {
		res, err := o.run(ctx, kind, in, plan{
			location: location,
			feedback: prompt.JoinFeedback(feedback),
			verify:   true,
		})
		out.Final = res
		if err != nil {
			return out, err
		}
		location = res.Location

		r := &run{res: res, logger: o.logger.With("flow", string(kind), "attempt", i)}
		r.enter(ctx, StateVerify)

		v := domain.Verification{
			Target:       target,
			Original:     in.Room,
			Edited:       res.Result.Image,
			Placement:    location,
			Instructions: in.Instructions,
		}
		if target == domain.TargetInsertion {
			v.Item = in.Object
		}

		review, err := o.opts.Verifier.Review(ctx, v)
		if err != nil {
			_, err = r.fail(ctx, verificationError(err))
			return out, err
		}
		verdict, err := o.opts.Verifier.Examine(ctx, v, review)
		if err != nil {
			_, err = r.fail(ctx, verificationError(err))
			return out, err
		}
		r.enter(ctx, StateDone)

		attempt := Attempt{Number: i, Result: res, Review: review, Verdict: verdict}
		out.Attempts = append(out.Attempts, attempt)
		if o.opts.OnAttempt != nil {
			o.opts.OnAttempt(attempt)
		}
		r.logger.InfoContext(ctx, "検証結果", "passed", verdict.Passed, "feedback", verdict.Feedback)

		if verdict.Passed {
			out.Passed = true
			return out, nil
		}
		feedback = append(feedback, verdict.Feedback)
	}
	return out, nil
}

func verificationError(err error) error {
	if errors.Is(err, domain.ErrVerificationUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrVerificationUnavailable, err)
}
