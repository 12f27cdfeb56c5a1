package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shouni/gemini-roomplan-kit/pkg/domain"
)

// RetryPolicy は生成ステージの再試行方針です。
// 対象はタイムアウトと通信エラーのみで、拒否や入力誤りは即座に失敗します。
type RetryPolicy struct {
	MaxAttempts int           // 1 以下で再試行なし
	Backoff     time.Duration // 試行間の待ち時間
}

func retryableGeneration(err error) bool {
	return errors.Is(err, domain.ErrGenerationTimeout) || errors.Is(err, domain.ErrGenerationTransport)
}

// do は fn を方針に従って実行し、試行回数と最後のエラーを返します。
// 呼び出し側の context が終了しても、fn が返したエラーの種別を優先して返します。
func (p RetryPolicy) do(ctx context.Context, fn func() error, notify func(err error, wait time.Duration)) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	var lastErr error
	op := func() error {
		attempts++
		err := fn()
		lastErr = err
		if err != nil && !retryableGeneration(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Backoff), uint64(maxAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(op, b, notify)
	if err != nil && lastErr != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return attempts, lastErr
	}
	return attempts, err
}
