package powerbi

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// accessToken returns an app-only bearer token, from the cache when enabled
// and still valid.
func (b *Broker) accessToken(ctx context.Context) (string, error) {
	if b.cfg.CacheToken {
		b.mu.Lock()
		tok := b.cached
		b.mu.Unlock()
		if tok.Valid() {
			return tok.AccessToken, nil
		}
	}

	tok, err := b.fetchToken(ctx)
	if err != nil {
		return "", err
	}

	if b.cfg.CacheToken {
		b.mu.Lock()
		b.cached = tok
		b.mu.Unlock()
	}
	return tok.AccessToken, nil
}

// fetchToken runs the client-credentials grant, retrying transport errors,
// 429 and 5xx with exponential backoff. Other 4xx responses fail at once.
func (b *Broker) fetchToken(ctx context.Context) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.http)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.cfg.RetryInterval
	eb.MaxInterval = 5 * time.Second

	attempt := 0
	tok, err := backoff.Retry(ctx, func() (*oauth2.Token, error) {
		attempt++
		tok, err := b.creds.Token(ctx)
		if err == nil {
			return tok, nil
		}
		pe := tokenError(err)
		if ctx.Err() != nil || !pe.retryable() {
			return nil, backoff.Permanent(pe)
		}
		return nil, pe
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(b.cfg.TokenRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			b.log.Warn("powerbi token request failed; retrying",
				zap.Int("attempt", attempt),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		if pe, ok := AsProviderError(err); ok {
			return nil, pe
		}
		// context cancelled between attempts
		return nil, &ProviderError{Step: StepAccessToken, Message: err.Error(), Err: err}
	}
	return tok, nil
}

// tokenError maps an oauth2 failure to a ProviderError, preferring the
// identity endpoint's error_description.
func tokenError(err error) *ProviderError {
	pe := &ProviderError{Step: StepAccessToken, Message: err.Error(), Err: err}

	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return pe
	}
	if re.Response != nil {
		pe.StatusCode = re.Response.StatusCode
	}
	switch {
	case re.ErrorDescription != "":
		pe.Message = re.ErrorDescription
	case re.ErrorCode != "":
		pe.Message = re.ErrorCode
	case len(re.Body) > 0:
		pe.Message = string(re.Body)
	}
	return pe
}
