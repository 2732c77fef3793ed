package providers

import (
	"context"
	"time"

	"chistes/app/internal/apperror"
)

// Observer receives the outcome of every provider call.
type Observer interface {
	ObserveProviderCall(provider, outcome string, duration time.Duration)
}

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

type instrumented struct {
	Provider
	observer Observer
	now      func() time.Time
}

// Instrument wraps p so each Fetch is reported to observer. A nil observer
// returns p unchanged.
func Instrument(p Provider, observer Observer) Provider {
	if p == nil || observer == nil {
		return p
	}
	return &instrumented{Provider: p, observer: observer, now: time.Now}
}

func (i *instrumented) Fetch(ctx context.Context) (Joke, error) {
	start := i.now()
	joke, err := i.Provider.Fetch(ctx)

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
		if apperror.Is(err, apperror.KindTimeout) || ctx.Err() == context.DeadlineExceeded {
			outcome = OutcomeTimeout
		}
	}

	i.observer.ObserveProviderCall(i.Provider.Name(), outcome, i.now().Sub(start))
	return joke, err
}
