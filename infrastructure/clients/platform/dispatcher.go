package platform

import (
	"context"
	"errors"
	"strings"
	"sync"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"golang.org/x/time/rate"
)

// Dispatcher routes sends to per-platform senders using the token of the
// user's connected account. Each platform has its own local rate limiter.
type Dispatcher struct {
	accounts repository.IAccount
	senders  map[string]Sender
	fallback func(platform string) Sender

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

type Option func(*Dispatcher)

func WithSender(platform string, s Sender) Option {
	return func(d *Dispatcher) { d.senders[strings.ToLower(platform)] = s }
}

// WithFallback serves platforms without a registered sender.
func WithFallback(f func(platform string) Sender) Option {
	return func(d *Dispatcher) { d.fallback = f }
}

func WithRateLimit(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		d.limit = rate.Limit(perSecond)
		d.burst = burst
	}
}

func NewDispatcher(accounts repository.IAccount, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		accounts: accounts,
		senders:  make(map[string]Sender),
		limit:    rate.Inf,
		burst:    1,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) sender(platform string) (Sender, bool) {
	if s, ok := d.senders[platform]; ok {
		return s, true
	}
	if d.fallback != nil {
		if s := d.fallback(platform); s != nil {
			return s, true
		}
	}
	return nil, false
}

func (d *Dispatcher) limiter(platform string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[platform]
	if !ok {
		l = rate.NewLimiter(d.limit, d.burst)
		d.limiters[platform] = l
	}
	return l
}

func (d *Dispatcher) token(ctx context.Context, userID, platform string) (string, *model.DispatchError) {
	if d.accounts == nil {
		return "", nil
	}
	acc, err := d.accounts.Get(ctx, userID, platform)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return "", &model.DispatchError{Platform: platform, Reason: model.ReasonAuthExpired, Message: "no connected account"}
	}
	if err != nil {
		return "", &model.DispatchError{Platform: platform, Reason: model.ReasonNetworkError, Message: err.Error()}
	}
	if !acc.Active {
		return "", &model.DispatchError{Platform: platform, Reason: model.ReasonAuthExpired, Message: "account disconnected"}
	}
	return acc.AccessToken, nil
}

func (d *Dispatcher) Send(ctx context.Context, req model.DispatchRequest) (string, *model.DispatchError) {
	platform := strings.ToLower(req.Platform)
	s, ok := d.sender(platform)
	if !ok {
		return "", &model.DispatchError{Platform: platform, Reason: model.ReasonRejected, Message: ErrUnsupportedPlatform.Error()}
	}
	if !d.limiter(platform).Allow() {
		return "", &model.DispatchError{Platform: platform, Reason: model.ReasonRateLimited, Message: "local rate limit exhausted"}
	}
	token, derr := d.token(ctx, req.UserID, platform)
	if derr != nil {
		return "", derr
	}
	remoteID, err := s.Publish(ctx, token, req)
	if err != nil {
		derr := Classify(platform, err)
		logger.GetLogger().WithField("post_id", req.PostID).WithField("platform", platform).
			WithField("reason", derr.Reason).Warn("platform send failed")
		return "", derr
	}
	return remoteID, nil
}

func (d *Dispatcher) Remove(ctx context.Context, userID, platform, remoteID string) error {
	platform = strings.ToLower(platform)
	s, ok := d.sender(platform)
	if !ok {
		return Classify(platform, ErrUnsupportedPlatform)
	}
	token, derr := d.token(ctx, userID, platform)
	if derr != nil {
		return derr
	}
	if err := s.Delete(ctx, token, remoteID); err != nil {
		return Classify(platform, err)
	}
	return nil
}

// VerifyCredentials asks the platform who owns token.
func (d *Dispatcher) VerifyCredentials(ctx context.Context, platform, token string) (*model.AccountIdentity, error) {
	platform = strings.ToLower(platform)
	s, ok := d.sender(platform)
	if !ok {
		return nil, Classify(platform, ErrUnsupportedPlatform)
	}
	id, err := s.Identify(ctx, token)
	if err != nil {
		return nil, Classify(platform, err)
	}
	return id, nil
}

var (
	_ repository.IPlatformDispatcher = (*Dispatcher)(nil)
	_ repository.ICredentialVerifier = (*Dispatcher)(nil)
)
