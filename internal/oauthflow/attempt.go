package oauthflow

import (
	"context"
	"sync"
	"time"

	"github.com/thellimist/oauthlink/internal/channel"
)

// Attempt is one authorization try. It starts Pending and moves to exactly
// one terminal status.
type Attempt struct {
	ID        string
	Config    AuthorizationConfig
	CreatedAt time.Time

	state   string
	authURL string
	sub     *channel.Subscription

	ctx     context.Context
	cancel  context.CancelCauseFunc
	release context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	status Status
	token  *TokenResult
	err    error
}

func newAttempt(id string, cfg AuthorizationConfig, state string, now time.Time, timeout time.Duration) *Attempt {
	ctx, cancel := context.WithCancelCause(context.Background())
	release := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, release = context.WithTimeoutCause(ctx, timeout, ErrAttemptTimeout)
	}
	return &Attempt{
		ID:        id,
		Config:    cfg,
		CreatedAt: now,
		state:     state,
		authURL:   cfg.AuthURL(state),
		ctx:       ctx,
		cancel:    cancel,
		release:   release,
		done:      make(chan struct{}),
		status:    StatusPending,
	}
}

// CorrelationToken is the state value routing the code back to this attempt.
// Empty when correlation is disabled.
func (a *Attempt) CorrelationToken() string {
	return a.state
}

// AuthURL is where the authorization surface was navigated.
func (a *Attempt) AuthURL() string {
	return a.authURL
}

// Status returns the current status.
func (a *Attempt) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Done is closed once the attempt reaches a terminal status.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Result returns the outcome. Token and error are nil while Pending.
func (a *Attempt) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Result{AttemptID: a.ID, Status: a.status, Token: a.token, Err: a.err}
}

// Wait blocks until the attempt finishes or ctx is done. Cancelling ctx
// does not cancel the attempt.
func (a *Attempt) Wait(ctx context.Context) (*TokenResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
	}
	r := a.Result()
	return r.Token, r.Err
}

// Cancel stops a Pending attempt and unregisters its listener. It has no
// effect once the attempt is terminal.
func (a *Attempt) Cancel() {
	a.cancel(ErrAttemptCancelled)
}

// finish moves a Pending attempt to status. It reports false if the attempt
// had already finished.
func (a *Attempt) finish(status Status, token *TokenResult, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.Terminal() {
		return false
	}
	a.status = status
	a.token = token
	a.err = err
	close(a.done)
	return true
}
