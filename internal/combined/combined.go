// Package combined fetches jokes from two providers in parallel and merges
// them pairwise into a single response.
package combined

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"chistes/app/internal/apperror"
	"chistes/app/internal/deadline"
	"chistes/app/internal/providers"
)

const (
	DefaultCount = 5

	StatusSuccess  = "éxito"
	StatusFallback = "fallback"

	unavailableNotice = "Lamentablemente, los servicios de chistes no están disponibles en este momento. ¡Intente nuevamente más tarde!"
)

// Outcome is the result of one provider call. Err is nil on success; on
// failure Text holds a placeholder naming the slot and the reason.
type Outcome struct {
	Text string
	Err  error
}

// OK reports whether the call produced a usable joke.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Status returns StatusSuccess or StatusFallback.
func (o Outcome) Status() string {
	if o.OK() {
		return StatusSuccess
	}
	return StatusFallback
}

// Pair is the i-th Chuck outcome matched with the i-th Dad outcome.
type Pair struct {
	Chuck    Outcome
	Dad      Outcome
	Combined string
}

// Stats counts successes and failures per provider.
type Stats struct {
	Total       int
	ChuckOK     int
	DadOK       int
	ChuckFailed int
	DadFailed   int
}

// Result is a complete combined response.
type Result struct {
	Pairs []Pair
	Stats Stats
}

// FallbackObserver is told how many slots per provider ended up as
// placeholders.
type FallbackObserver interface {
	ObserveCombinedFallbacks(provider string, failed int)
}

// Options configures a Service.
type Options struct {
	Count    int
	Policy   deadline.Policy
	Logger   *logrus.Logger
	Observer FallbackObserver
}

// Service runs the combined fan-out.
type Service struct {
	chuck    providers.Provider
	dad      providers.Provider
	count    int
	policy   deadline.Policy
	logger   *logrus.Logger
	observer FallbackObserver
	pick     func(n int) int
}

// NewService wires a Service with the two providers it merges.
func NewService(chuck, dad providers.Provider, opts Options) (*Service, error) {
	if chuck == nil || dad == nil {
		return nil, eris.New("both joke providers are required")
	}

	count := opts.Count
	if count <= 0 {
		count = DefaultCount
	}

	return &Service{
		chuck:    chuck,
		dad:      dad,
		count:    count,
		policy:   opts.Policy.WithDefaults(),
		logger:   opts.Logger,
		observer: opts.Observer,
		pick:     rand.IntN,
	}, nil
}

// Combine fetches Count jokes from each provider concurrently, bounded by
// the aggregate deadline, and pairs them by issue order. A failed call never
// aborts its siblings. If neither provider produced a single joke the call
// fails with an Unavailable error.
func (s *Service) Combine(ctx context.Context) (Result, error) {
	fetched, err := deadline.Run(ctx, s.policy.Aggregate, s.fanOut)
	if err != nil {
		if apperror.Is(err, apperror.KindTimeout) {
			return Result{}, apperror.Timeout("Timeout de la operación", "La obtención de chistes combinados tardó demasiado").
				With("sugerencia", "Intente con menos chistes o más tarde").
				WithCause(err)
		}
		return Result{}, err
	}

	chuck, dad := fetched.chuck, fetched.dad
	stats := Stats{Total: len(chuck)}
	for i := range chuck {
		if chuck[i].OK() {
			stats.ChuckOK++
		} else {
			stats.ChuckFailed++
		}
		if dad[i].OK() {
			stats.DadOK++
		} else {
			stats.DadFailed++
		}
	}

	if s.observer != nil {
		s.observer.ObserveCombinedFallbacks(s.chuck.Name(), stats.ChuckFailed)
		s.observer.ObserveCombinedFallbacks(s.dad.Name(), stats.DadFailed)
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"component":    "combined",
			"chuck_ok":     stats.ChuckOK,
			"dad_ok":       stats.DadOK,
			"chuck_failed": stats.ChuckFailed,
			"dad_failed":   stats.DadFailed,
		}).Info("combined jokes fetched")
	}

	if stats.ChuckOK == 0 && stats.DadOK == 0 {
		return Result{}, apperror.Unavailable("Servicios no disponibles", "No se pudieron obtener chistes de ninguna API externa").
			With("sugerencia", "Intente nuevamente más tarde")
	}

	pairs := make([]Pair, len(chuck))
	for i := range chuck {
		pairs[i] = Pair{
			Chuck:    chuck[i],
			Dad:      dad[i],
			Combined: s.merge(chuck[i], dad[i]),
		}
	}

	return Result{Pairs: pairs, Stats: stats}, nil
}

type slots struct {
	chuck []Outcome
	dad   []Outcome
}

// fanOut starts every call before waiting on any of them. Results are stored
// by issue index so completion order does not matter.
func (s *Service) fanOut(ctx context.Context) (slots, error) {
	chuck := make([]Outcome, s.count)
	dad := make([]Outcome, s.count)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.count; i++ {
		group.Go(func() error {
			chuck[i] = s.call(groupCtx, s.chuck, "Chiste Chuck Norris", i+1)
			return nil
		})
		group.Go(func() error {
			dad[i] = s.call(groupCtx, s.dad, "Dad Joke", i+1)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return slots{}, eris.Wrap(err, "waiting for provider calls")
	}
	return slots{chuck: chuck, dad: dad}, nil
}

func (s *Service) call(ctx context.Context, provider providers.Provider, slotLabel string, ordinal int) Outcome {
	joke, err := deadline.Run(ctx, s.policy.Provider, provider.Fetch)
	if err != nil {
		reason := providers.Reason(err)
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{
				"component": "combined",
				"provider":  provider.Name(),
				"slot":      ordinal,
				"reason":    reason,
			}).Warn("provider call failed")
		}
		return Outcome{Text: fmt.Sprintf("%s %d no disponible - %s", slotLabel, ordinal, reason), Err: err}
	}
	return Outcome{Text: joke.Text}
}

type template func(chuck, dad string) string

var templates = []template{
	func(chuck, dad string) string {
		return fmt.Sprintf("Mientras %s, también %s", strings.Replace(strings.ToLower(chuck), "chuck norris", "él", 1), strings.ToLower(dad))
	},
	func(chuck, dad string) string {
		return fmt.Sprintf("%s. Por cierto, %s", chuck, strings.ToLower(dad))
	},
	func(chuck, dad string) string {
		return fmt.Sprintf("Sabías que %s? Además, %s", strings.Replace(strings.ToLower(chuck), "chuck norris", "Chuck Norris", 1), strings.ToLower(dad))
	},
	func(chuck, dad string) string {
		return fmt.Sprintf("%s. En un universo paralelo: %s", chuck, dad)
	},
	func(chuck, dad string) string {
		return fmt.Sprintf("Chuck Norris aprobaría esto: %s. Y añadiría: %s", chuck, dad)
	},
}

func (s *Service) merge(chuck, dad Outcome) string {
	switch {
	case chuck.OK() && dad.OK():
		return templates[s.pick(len(templates))](chuck.Text, dad.Text)
	case chuck.OK():
		return chuck.Text + " (Chuck Norris manda saludos)"
	case dad.OK():
		return dad.Text + " - ¡Un clásico de papá!"
	default:
		return unavailableNotice
	}
}
