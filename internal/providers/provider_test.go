package providers

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chistes/app/internal/apperror"
)

func newServer(t *testing.T, handler stdhttp.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestChuckNorrisFetchesValue(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc","value":"Chuck Norris counted to infinity. Twice."}`))
	})

	provider, err := NewChuckNorris(Options{URL: srv.URL, UserAgent: "test-agent"})
	require.NoError(t, err)

	joke, err := provider.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", joke.ID)
	assert.Equal(t, "Chuck Norris counted to infinity. Twice.", joke.Text)
	assert.Equal(t, "Chuck Norris API", provider.Label())
}

func TestDadJokeFetchesJoke(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"id":"d1","joke":"I'm reading a book on anti-gravity.","status":200}`))
	})

	provider, err := NewDadJoke(Options{URL: srv.URL})
	require.NoError(t, err)

	joke, err := provider.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I'm reading a book on anti-gravity.", joke.Text)
	assert.Equal(t, "dad", provider.Name())
}

func TestFetchRejectsWrongShape(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		_, _ = w.Write([]byte(`{"id":"abc","text":"wrong field"}`))
	})

	provider, err := NewChuckNorris(Options{URL: srv.URL})
	require.NoError(t, err)

	_, err = provider.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperror.KindUpstream, apperror.KindOf(err))
	assert.Equal(t, "Texto de chiste inválido de Chuck Norris API", Reason(err))
}

func TestFetchRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		_, _ = w.Write([]byte(`<html>nope</html>`))
	})

	provider, err := NewDadJoke(Options{URL: srv.URL})
	require.NoError(t, err)

	_, err = provider.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Respuesta inválida de Dad Jokes API", Reason(err))
}

func TestFetchReportsHTTPStatus(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusServiceUnavailable)
	})

	provider, err := NewChuckNorris(Options{URL: srv.URL})
	require.NoError(t, err)

	_, err = provider.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Error HTTP 503: Service Unavailable", Reason(err))
}

func TestFetchReportsConnectionFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(stdhttp.HandlerFunc(func(stdhttp.ResponseWriter, *stdhttp.Request) {}))
	url := srv.URL
	srv.Close()

	provider, err := NewChuckNorris(Options{URL: url})
	require.NoError(t, err)

	_, err = provider.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Error de conexión - No se pudo contactar el servidor", Reason(err))
}

func TestFetchHonoursContextDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := newServer(t, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })

	provider, err := NewChuckNorris(Options{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = provider.Fetch(ctx)
	require.Error(t, err)
	assert.Equal(t, "Timeout - La API tardó demasiado en responder", Reason(err))
}

func TestNewProviderValidatesURL(t *testing.T) {
	t.Parallel()

	_, err := NewChuckNorris(Options{URL: "ftp://example.com"})
	assert.Error(t, err)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveProviderCall(provider, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, provider+":"+outcome)
}

func TestInstrumentRecordsOutcomes(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	srv := newServer(t, func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		if fail.Load() {
			w.WriteHeader(stdhttp.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	})

	base, err := NewChuckNorris(Options{URL: srv.URL})
	require.NoError(t, err)

	observer := &recordingObserver{}
	provider := Instrument(base, observer)

	_, err = provider.Fetch(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	_, err = provider.Fetch(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"chuck:success", "chuck:error"}, observer.outcomes)
	assert.Equal(t, "Chuck Norris API", provider.Label())
}
