package combined

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chistes/app/internal/apperror"
	"chistes/app/internal/deadline"
	"chistes/app/internal/providers"
)

type stubProvider struct {
	name    string
	label   string
	delay   time.Duration
	fail    func(call int64) error
	calls   atomic.Int64
	started chan struct{}
}

func (p *stubProvider) Name() string  { return p.name }
func (p *stubProvider) Label() string { return p.label }

func (p *stubProvider) Fetch(ctx context.Context) (providers.Joke, error) {
	call := p.calls.Add(1)
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return providers.Joke{}, ctx.Err()
		}
	}
	if p.fail != nil {
		if err := p.fail(call); err != nil {
			return providers.Joke{}, err
		}
	}
	return providers.Joke{Text: fmt.Sprintf("%s joke %d", p.name, call)}, nil
}

func alwaysFail(reason string) func(int64) error {
	return func(int64) error {
		return apperror.Upstream(providers.CodeUnavailable, reason).With("motivo", reason)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	failed map[string]int
}

func (o *recordingObserver) ObserveCombinedFallbacks(provider string, failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failed == nil {
		o.failed = make(map[string]int)
	}
	o.failed[provider] += failed
}

func newService(t *testing.T, chuck, dad *stubProvider, opts Options) *Service {
	t.Helper()
	svc, err := NewService(chuck, dad, opts)
	require.NoError(t, err)
	svc.pick = func(int) int { return 1 }
	return svc
}

func TestNewServiceRequiresProviders(t *testing.T) {
	t.Parallel()

	_, err := NewService(nil, &stubProvider{}, Options{})
	assert.Error(t, err)
}

func TestCombineAllAvailable(t *testing.T) {
	t.Parallel()

	chuck := &stubProvider{name: "chuck"}
	dad := &stubProvider{name: "dad"}
	observer := &recordingObserver{}
	svc := newService(t, chuck, dad, Options{Observer: observer})

	result, err := svc.Combine(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Pairs, DefaultCount)
	assert.Equal(t, Stats{Total: 5, ChuckOK: 5, DadOK: 5}, result.Stats)
	for _, pair := range result.Pairs {
		assert.Equal(t, StatusSuccess, pair.Chuck.Status())
		assert.Equal(t, StatusSuccess, pair.Dad.Status())
		assert.Contains(t, pair.Combined, ". Por cierto, ")
	}
	assert.Equal(t, int64(5), chuck.calls.Load())
	assert.Equal(t, int64(5), dad.calls.Load())
	assert.Equal(t, 0, observer.failed["chuck"])
}

func TestCombineAllUnavailable(t *testing.T) {
	t.Parallel()

	chuck := &stubProvider{name: "chuck", fail: alwaysFail("Error HTTP 500: Internal Server Error")}
	dad := &stubProvider{name: "dad", fail: alwaysFail("Error de conexión - No se pudo contactar el servidor")}
	observer := &recordingObserver{}
	svc := newService(t, chuck, dad, Options{Observer: observer})

	_, err := svc.Combine(context.Background())
	require.Error(t, err)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindUnavailable, appErr.Kind)
	assert.Equal(t, "Servicios no disponibles", appErr.Code)
	assert.Equal(t, 5, observer.failed["chuck"])
	assert.Equal(t, 5, observer.failed["dad"])
}

func TestCombinePartialFailuresUseSingleSidedTemplates(t *testing.T) {
	t.Parallel()

	chuck := &stubProvider{name: "chuck"}
	dad := &stubProvider{name: "dad", fail: alwaysFail("Timeout - La API tardó demasiado en responder")}
	svc := newService(t, chuck, dad, Options{Count: 3})

	result, err := svc.Combine(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stats{Total: 3, ChuckOK: 3, DadFailed: 3}, result.Stats)
	for i, pair := range result.Pairs {
		assert.Equal(t, StatusFallback, pair.Dad.Status())
		assert.Equal(t, fmt.Sprintf("Dad Joke %d no disponible - Timeout - La API tardó demasiado en responder", i+1), pair.Dad.Text)
		assert.True(t, strings.HasSuffix(pair.Combined, " (Chuck Norris manda saludos)"))
	}
}

func TestCombineClassifiesByErrorNotText(t *testing.T) {
	t.Parallel()

	chuck := &stubProvider{name: "chuck no disponible"}
	dad := &stubProvider{name: "dad"}
	svc := newService(t, chuck, dad, Options{Count: 1})

	result, err := svc.Combine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.ChuckOK)
	assert.Equal(t, StatusSuccess, result.Pairs[0].Chuck.Status())
}

func TestCombineStartsAllCallsBeforeAwaiting(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 2*DefaultCount)
	release := make(chan struct{})
	gate := func(int64) error {
		<-release
		return nil
	}
	chuck := &stubProvider{name: "chuck", started: started, fail: gate}
	dad := &stubProvider{name: "dad", started: started, fail: gate}
	svc := newService(t, chuck, dad, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Combine(context.Background())
		done <- err
	}()

	for i := 0; i < 2*DefaultCount; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d calls started before any completed", i)
		}
	}
	close(release)

	require.NoError(t, <-done)
}

func TestCombineAggregateTimeout(t *testing.T) {
	t.Parallel()

	chuck := &stubProvider{name: "chuck", delay: time.Second}
	dad := &stubProvider{name: "dad", delay: time.Second}
	svc := newService(t, chuck, dad, Options{Policy: deadline.Policy{Provider: 5 * time.Second, Aggregate: 30 * time.Millisecond}})

	start := time.Now()
	_, err := svc.Combine(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindTimeout, appErr.Kind)
	assert.Equal(t, "Timeout de la operación", appErr.Code)
}

func TestCombinePerCallTimeoutBecomesFallback(t *testing.T) {
	t.Parallel()

	chuck := &stubProvider{name: "chuck", delay: time.Second}
	dad := &stubProvider{name: "dad"}
	svc := newService(t, chuck, dad, Options{Count: 2, Policy: deadline.Policy{Provider: 20 * time.Millisecond, Aggregate: 2 * time.Second}})

	result, err := svc.Combine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.ChuckFailed)
	assert.Equal(t, "Chiste Chuck Norris 1 no disponible - Timeout - La API tardó demasiado en responder", result.Pairs[0].Chuck.Text)
	assert.True(t, strings.HasSuffix(result.Pairs[0].Combined, " - ¡Un clásico de papá!"))
}

func TestMergeTemplates(t *testing.T) {
	t.Parallel()

	svc := &Service{}
	chuck := Outcome{Text: "Chuck Norris can divide by zero"}
	dad := Outcome{Text: "I Used To Hate Facial Hair"}

	expected := []string{
		"Mientras él can divide by zero, también i used to hate facial hair",
		"Chuck Norris can divide by zero. Por cierto, i used to hate facial hair",
		"Sabías que Chuck Norris can divide by zero? Además, i used to hate facial hair",
		"Chuck Norris can divide by zero. En un universo paralelo: I Used To Hate Facial Hair",
		"Chuck Norris aprobaría esto: Chuck Norris can divide by zero. Y añadiría: I Used To Hate Facial Hair",
	}

	for idx, want := range expected {
		svc.pick = func(int) int { return idx }
		assert.Equal(t, want, svc.merge(chuck, dad))
	}

	failed := Outcome{Text: "x", Err: errors.New("down")}
	assert.Equal(t, unavailableNotice, svc.merge(failed, failed))
}
