// Package providers talks to the remote joke services. Each provider returns
// a single joke per call and validates the payload shape before reporting
// success.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"chistes/app/internal/apperror"
)

const (
	maxBodyBytes       = 1 << 20
	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "MiAppChistes/1.0"

	// CodeUnavailable is the stable error string for provider failures.
	CodeUnavailable = "Servicio externo no disponible"
)

// Joke is a single joke returned by a remote provider.
type Joke struct {
	ID   string
	Text string
}

// Provider fetches one joke per call from a remote service.
type Provider interface {
	// Name is a short machine name used for metrics and logs.
	Name() string
	// Label is the human readable source name returned to clients.
	Label() string
	Fetch(ctx context.Context) (Joke, error)
}

// Options configures an HTTP backed provider.
type Options struct {
	URL        string
	UserAgent  string
	HTTPClient *stdhttp.Client
	Logger     *logrus.Logger
}

type decodeFunc func(body []byte) (Joke, error)

// HTTPProvider fetches jokes with a GET request against a JSON endpoint.
type HTTPProvider struct {
	name      string
	label     string
	url       string
	userAgent string
	client    *stdhttp.Client
	logger    *logrus.Logger
	decode    decodeFunc
}

var _ Provider = (*HTTPProvider)(nil)

func newHTTPProvider(name, label string, opts Options, decode decodeFunc) (*HTTPProvider, error) {
	rawURL := strings.TrimSpace(opts.URL)
	if rawURL == "" {
		return nil, eris.Errorf("%s url is required", name)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid %s url: %s", name, rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, eris.Errorf("%s url must be http or https: %s", name, rawURL)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &stdhttp.Client{Timeout: defaultHTTPTimeout}
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &HTTPProvider{
		name:      name,
		label:     label,
		url:       rawURL,
		userAgent: userAgent,
		client:    client,
		logger:    opts.Logger,
		decode:    decode,
	}, nil
}

func (p *HTTPProvider) Name() string  { return p.name }
func (p *HTTPProvider) Label() string { return p.label }

// Fetch performs one request. Any non-2xx status, transport failure or
// malformed payload is reported as an Upstream error.
func (p *HTTPProvider) Fetch(ctx context.Context) (Joke, error) {
	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet, p.url, nil)
	if err != nil {
		return Joke{}, eris.Wrapf(err, "building %s request", p.name)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return Joke{}, p.failure(describeTransportError(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Joke{}, p.failure("Error leyendo la respuesta", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode)))
		if status == "" {
			status = "Error en el servidor remoto"
		}
		reason := fmt.Sprintf("Error HTTP %d: %s", resp.StatusCode, status)
		return Joke{}, p.failure(reason, eris.New(reason))
	}

	joke, err := p.decode(body)
	if err != nil {
		return Joke{}, p.failure(fmt.Sprintf("Respuesta inválida de %s", p.label), err)
	}

	joke.Text = strings.TrimSpace(joke.Text)
	if joke.Text == "" {
		reason := fmt.Sprintf("Texto de chiste inválido de %s", p.label)
		return Joke{}, p.failure(reason, eris.New(reason))
	}

	return joke, nil
}

func (p *HTTPProvider) failure(reason string, cause error) error {
	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"component": "providers",
			"provider":  p.name,
			"error":     cause.Error(),
		}).Warn(reason)
	}

	return apperror.Upstream(CodeUnavailable, fmt.Sprintf("%s no disponible: %s", p.label, reason)).
		With("proveedor", p.label).
		With("motivo", reason).
		WithCause(cause)
}

// Reason extracts the short failure description recorded by a provider, or
// the error text when the error did not come from a provider.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := apperror.As(err); ok {
		if reason, ok := appErr.Fields["motivo"].(string); ok && reason != "" {
			return reason
		}
		if appErr.Kind == apperror.KindTimeout {
			return "Timeout - La API tardó demasiado en responder"
		}
		if appErr.Detail != "" {
			return appErr.Detail
		}
	}
	return err.Error()
}

func describeTransportError(err error) string {
	if eris.Is(err, context.DeadlineExceeded) {
		return "Timeout - La API tardó demasiado en responder"
	}

	var netErr net.Error
	if eris.As(err, &netErr) && netErr.Timeout() {
		return "Timeout - La API tardó demasiado en responder"
	}

	if eris.Is(err, context.Canceled) {
		return "Solicitud cancelada"
	}

	return "Error de conexión - No se pudo contactar el servidor"
}

func decodeJSON(body []byte, target any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return eris.New("empty response body")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return eris.Wrap(err, "decoding response json")
	}
	return nil
}
