// Package oauthflow links a cloud-storage account by running the OAuth
// authorization-code flow: it opens the provider's consent screen, waits for
// the code to come back over the login channel and exchanges it for tokens.
package oauthflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thellimist/oauthlink/internal/channel"
)

// Options configure a Controller. Only Hub is required.
type Options struct {
	Hub        *channel.Hub
	Surface    Surface
	HTTPClient *http.Client
	Log        *slog.Logger

	// RedirectURI and TokenEndpoint are deployment-wide overrides.
	RedirectURI   string
	TokenEndpoint string

	// Timeout cancels a Pending attempt after this long. Zero waits forever.
	Timeout time.Duration

	// DisableOriginCheck accepts codes posted from any origin.
	DisableOriginCheck bool
	// DisableCorrelation drops the state parameter; the most recently
	// registered listener then receives the next message.
	DisableCorrelation bool

	// OnResult is called once per attempt when it leaves Pending.
	OnResult func(Result)

	Now func() time.Time
}

// Controller drives one authorization attempt at a time.
type Controller struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	current *Attempt
}

// NewController returns a Controller with defaults filled in.
func NewController(opts Options) (*Controller, error) {
	if opts.Hub == nil {
		return nil, fmt.Errorf("oauthflow: channel hub is required")
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Surface == nil {
		opts.Surface = BrowserSurface{Log: opts.Log}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{opts: opts, log: opts.Log}, nil
}

// Current returns the most recently started attempt, or nil if none has
// been started.
func (c *Controller) Current() *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Start begins a new attempt and returns without waiting for it. Invalid
// params yield a *ConfigurationError and no attempt. A Pending previous
// attempt is cancelled with ErrAttemptSuperseded.
func (c *Controller) Start(p StartParams) (*Attempt, error) {
	cfg, err := BuildConfig(p, c.opts.RedirectURI, c.opts.TokenEndpoint)
	if err != nil {
		return nil, err
	}

	var state string
	if !c.opts.DisableCorrelation {
		state, err = GenerateState()
		if err != nil {
			return nil, fmt.Errorf("generate state: %w", err)
		}
	}

	a := newAttempt(uuid.NewString(), cfg, state, c.opts.Now(), c.opts.Timeout)

	c.mu.Lock()
	prev := c.current
	c.current = a
	if prev != nil {
		prev.cancel(ErrAttemptSuperseded)
	}
	a.sub = c.opts.Hub.Subscribe(channel.LoginChannel, state)
	c.mu.Unlock()

	log := c.log.With("attempt", a.ID)
	log.Info("authorization started", "authorization_endpoint", cfg.AuthorizationEndpoint, "redirect_uri", cfg.RedirectURI)

	if err := c.opts.Surface.Open(a.authURL, PopupGeometry(p.Viewport)); err != nil {
		log.Warn("could not open authorization surface", "error", err)
	}

	go c.run(a, log)
	return a, nil
}

// Cancel cancels the current attempt if it is still Pending.
func (c *Controller) Cancel() {
	if a := c.Current(); a != nil {
		a.Cancel()
	}
}

func (c *Controller) run(a *Attempt, log *slog.Logger) {
	defer a.release()
	defer a.sub.Unsubscribe()

	for {
		select {
		case <-a.ctx.Done():
			c.complete(a, log, StatusCancelled, nil, context.Cause(a.ctx))
			return
		case msg := <-a.sub.C():
			if !c.acceptOrigin(a, msg) {
				log.Warn("ignoring message from unexpected origin", "origin", msg.Origin)
				continue
			}
			c.handle(a, log, msg)
			return
		}
	}
}

func (c *Controller) handle(a *Attempt, log *slog.Logger, msg channel.Message) {
	if msg.Error != "" {
		c.complete(a, log, StatusFailed, nil, fmt.Errorf("%w: %s: %s", ErrProviderDenied, msg.Error, msg.ErrorDescription))
		return
	}

	log.Debug("authorization code received")
	resp, err := ExchangeCode(a.ctx, c.opts.HTTPClient, a.Config, msg.Code)
	if cause := context.Cause(a.ctx); cause != nil {
		c.complete(a, log, StatusCancelled, nil, cause)
		return
	}
	if err != nil {
		c.complete(a, log, StatusFailed, nil, err)
		return
	}
	c.complete(a, log, StatusSucceeded, newTokenResult(resp, c.opts.Now()), nil)
}

func (c *Controller) acceptOrigin(a *Attempt, msg channel.Message) bool {
	if c.opts.DisableOriginCheck {
		return true
	}
	want := OriginOf(a.Config.RedirectURI)
	return want != "" && OriginOf(msg.Origin) == want
}

// complete finishes a and reports it. A success is only recorded while a is
// still the current, uncancelled attempt.
func (c *Controller) complete(a *Attempt, log *slog.Logger, status Status, token *TokenResult, err error) {
	a.sub.Unsubscribe()

	c.mu.Lock()
	if status == StatusSucceeded && (c.current != a || a.ctx.Err() != nil) {
		status, token, err = StatusCancelled, nil, context.Cause(a.ctx)
		if err == nil {
			err = ErrAttemptSuperseded
		}
	}
	ok := a.finish(status, token, err)
	c.mu.Unlock()
	if !ok {
		return
	}

	switch {
	case status == StatusSucceeded:
		log.Info("authorization succeeded")
	case errors.Is(err, ErrAttemptSuperseded):
		log.Debug("authorization superseded")
	default:
		log.Warn("authorization ended", "status", status.String(), "error", err)
	}

	if c.opts.OnResult != nil {
		c.opts.OnResult(a.Result())
	}
}
