package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy batas percobaan RetryingGateway.
type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	// jeda setelah gagal pertama, dobel tiap attempt s/d MaxBackoff
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, AttemptTimeout: 10 * time.Second, Backoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = d.AttemptTimeout
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	return p
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Backoff
	if d >= p.MaxBackoff {
		return p.MaxBackoff
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return d
}

// RetryingGateway retries NetworkError outcomes of the wrapped gateway.
// Every attempt gets its own timeout; the caller's context bounds the whole
// sequence, including the backoff sleeps.
type RetryingGateway struct {
	Next   PaymentGateway
	Policy RetryPolicy
	Log    *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

var _ PaymentGateway = (*RetryingGateway)(nil)

func NewRetryingGateway(next PaymentGateway, policy RetryPolicy, log *zap.Logger) *RetryingGateway {
	return &RetryingGateway{Next: next, Policy: policy.normalized(), Log: log.Named("gateway"), sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (g *RetryingGateway) Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResult, error) {
	var res AuthorizeResult
	err := g.do(ctx, "authorize", req.OrderID, func(actx context.Context) (Outcome, error) {
		var err error
		res, err = g.Next.Authorize(actx, req)
		return res.Outcome, err
	})
	return res, err
}

func (g *RetryingGateway) Verify(ctx context.Context, orderID string) (VerifyResult, error) {
	var res VerifyResult
	err := g.do(ctx, "verify", orderID, func(actx context.Context) (Outcome, error) {
		var err error
		res, err = g.Next.Verify(actx, orderID)
		return res.Outcome, err
	})
	return res, err
}

func (g *RetryingGateway) do(ctx context.Context, op, orderID string, call func(context.Context) (Outcome, error)) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		actx, cancel := context.WithTimeout(ctx, g.Policy.AttemptTimeout)
		outcome, err := call(actx)
		cancel()
		if err != nil {
			return err
		}
		if outcome != OutcomeNetworkError || attempt >= g.Policy.MaxAttempts {
			if outcome == OutcomeNetworkError {
				g.Log.Warn("gateway gave up", zap.String("op", op), zap.String("order_id", orderID), zap.Int("attempts", attempt))
			}
			return nil
		}

		wait := g.Policy.delay(attempt)
		g.Log.Info("gateway retry",
			zap.String("op", op), zap.String("order_id", orderID),
			zap.Int("attempt", attempt), zap.Duration("backoff", wait))
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}
