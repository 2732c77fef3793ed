package jokes

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"chistes/app/internal/apperror"
	"chistes/app/internal/deadline"
	"chistes/app/internal/providers"
)

// Service defines the joke operations exposed over HTTP.
type Service interface {
	Random(ctx context.Context) (*Joke, error)
	FetchByType(ctx context.Context, token string) (FetchResult, error)
	Create(ctx context.Context, input NewJoke) (*Joke, error)
	UpdateText(ctx context.Context, id int64, text string) (UpdateResult, error)
	Delete(ctx context.Context, id int64) (int64, error)
	Search(ctx context.Context, filter Filter) ([]JokeView, error)
	SourceTokens() []string
}

// FetchResult is the outcome of FetchByType. When Fallback is set the joke
// came from the database and FailedSource names the provider that failed.
type FetchResult struct {
	Text         string
	Source       string
	ExternalID   string
	Fallback     bool
	Joke         *Joke
	FailedSource string
}

// UpdateResult describes an UpdateText call. Changed is false when the
// stored text already matched and nothing was written.
type UpdateResult struct {
	ID       int64
	Text     string
	Previous string
	Changed  bool
	Rows     int64
}

type service struct {
	repo      Repository
	sources   map[string]Source
	tokens    []string
	policy    deadline.Policy
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	pick      func(n int) int
}

var _ Service = (*service)(nil)

// NewService wires the joke service with its dependencies.
func NewService(repo Repository, sources []Source, policy deadline.Policy, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("jokes repository is required")
	}
	if len(sources) == 0 {
		return nil, eris.New("at least one joke source is required")
	}

	byToken := make(map[string]Source, len(sources))
	tokens := make([]string, 0, len(sources))
	for _, source := range sources {
		if source.Provider == nil {
			return nil, eris.Errorf("provider for source %s is required", source.Token)
		}
		if _, exists := byToken[source.Token]; exists {
			return nil, eris.Errorf("duplicate joke source %s", source.Token)
		}
		byToken[source.Token] = source
		tokens = append(tokens, source.Token)
	}

	return &service{
		repo:      repo,
		sources:   byToken,
		tokens:    tokens,
		policy:    policy.WithDefaults(),
		logger:    logger,
		sentryHub: hub,
		pick:      rand.IntN,
	}, nil
}

func (s *service) SourceTokens() []string {
	out := make([]string, len(s.tokens))
	copy(out, s.tokens)
	return out
}

func (s *service) Random(ctx context.Context) (*Joke, error) {
	jokes, err := deadline.Run(ctx, s.policy.Medium, s.repo.ListJokes)
	if err != nil {
		s.recordError(nil, err, "listing jokes for random pick")
		return nil, err
	}

	if len(jokes) == 0 {
		return nil, apperror.NotFound("No hay chistes disponibles", "No hay chistes disponibles en la base de datos").
			With("sugerencia", "Agrega algunos chistes primero")
	}

	joke := jokes[s.pick(len(jokes))]
	return &joke, nil
}

func (s *service) FetchByType(ctx context.Context, token string) (FetchResult, error) {
	source, ok := s.sources[token]
	if !ok {
		return FetchResult{}, apperror.Validation("Tipo de chiste no válido", fmt.Sprintf("El tipo '%s' no está soportado", token)).
			With("tipos_validos", s.SourceTokens())
	}

	provider := source.Provider
	joke, err := deadline.Run(ctx, s.policy.Medium, provider.Fetch)
	if err == nil {
		return FetchResult{Text: joke.Text, Source: provider.Label(), ExternalID: joke.ID}, nil
	}

	if apperror.Is(err, apperror.KindCanceled) {
		return FetchResult{}, err
	}

	fields := logrus.Fields{"provider": provider.Name(), "reason": providers.Reason(err)}
	if s.logger != nil {
		s.logger.WithFields(fields).WithField("component", "jokes.service").Warn("provider failed, trying database fallback")
	}

	candidates, lookupErr := deadline.Run(ctx, s.policy.Medium, func(ctx context.Context) ([]Joke, error) {
		return s.repo.ListJokesByTopicKeywords(ctx, source.FallbackKeywords)
	})
	if lookupErr != nil {
		s.recordError(fields, lookupErr, "looking up fallback jokes")
		return FetchResult{}, lookupErr
	}

	if len(candidates) == 0 {
		return FetchResult{}, upstreamFailure(provider, err)
	}

	picked := candidates[s.pick(len(candidates))]
	return FetchResult{
		Text:         picked.Text,
		Source:       FallbackSourceLabel,
		Fallback:     true,
		Joke:         &picked,
		FailedSource: provider.Label(),
	}, nil
}

func (s *service) Create(ctx context.Context, input NewJoke) (*Joke, error) {
	text, err := validateText(input.Text)
	if err != nil {
		return nil, err
	}
	if input.AuthorID <= 0 {
		return nil, apperror.Validation("ID de usuario inválido", "El usuario_id debe ser un número entero positivo").
			With("valor_recibido", input.AuthorID)
	}
	if input.TopicID <= 0 {
		return nil, apperror.Validation("ID de temática inválido", "La tematica_id debe ser un número entero positivo").
			With("valor_recibido", input.TopicID)
	}

	author, err := deadline.Run(ctx, s.policy.Medium, func(ctx context.Context) (*Author, error) {
		return s.repo.GetAuthor(ctx, input.AuthorID)
	})
	if err != nil {
		s.recordError(logrus.Fields{"usuario_id": input.AuthorID}, err, "checking author")
		return nil, err
	}
	if author == nil {
		return nil, apperror.NotFound("Usuario no encontrado", fmt.Sprintf("No existe un usuario con ID: %d", input.AuthorID)).
			With("sugerencia", "Verifique el ID del usuario")
	}

	topic, err := deadline.Run(ctx, s.policy.Medium, func(ctx context.Context) (*Topic, error) {
		return s.repo.GetTopic(ctx, input.TopicID)
	})
	if err != nil {
		s.recordError(logrus.Fields{"tematica_id": input.TopicID}, err, "checking topic")
		return nil, err
	}
	if topic == nil {
		return nil, apperror.NotFound("Temática no encontrada", fmt.Sprintf("No existe una temática con ID: %d", input.TopicID)).
			With("sugerencia", "Verifique el ID de la temática")
	}

	joke := &Joke{Text: text, AuthorID: author.ID, TopicID: topic.ID}
	err = deadline.Do(ctx, s.policy.Medium, func(ctx context.Context) error {
		return s.repo.CreateJoke(ctx, joke)
	})
	if err != nil {
		s.recordError(logrus.Fields{"usuario_id": input.AuthorID, "tematica_id": input.TopicID}, err, "creating joke")
		return nil, err
	}

	return joke, nil
}

func (s *service) UpdateText(ctx context.Context, id int64, text string) (UpdateResult, error) {
	trimmed, err := validateText(text)
	if err != nil {
		return UpdateResult{}, err
	}

	existing, err := deadline.Run(ctx, s.policy.Medium, func(ctx context.Context) (*Joke, error) {
		return s.repo.GetJoke(ctx, id)
	})
	if err != nil {
		s.recordError(logrus.Fields{"chiste_id": id}, err, "loading joke for update")
		return UpdateResult{}, err
	}
	if existing == nil {
		return UpdateResult{}, jokeNotFound(id)
	}

	if existing.Text == trimmed {
		return UpdateResult{ID: id, Text: trimmed, Previous: existing.Text}, nil
	}

	rows, err := deadline.Run(ctx, s.policy.Medium, func(ctx context.Context) (int64, error) {
		return s.repo.UpdateJokeText(ctx, id, trimmed)
	})
	if err != nil {
		s.recordError(logrus.Fields{"chiste_id": id}, err, "updating joke text")
		return UpdateResult{}, err
	}
	if rows == 0 {
		return UpdateResult{}, apperror.NotFound("Chiste no encontrado", fmt.Sprintf("El chiste con ID: %d no pudo ser actualizado", id)).
			With("sugerencia", "Verifique que el chiste aún existe")
	}

	return UpdateResult{ID: id, Text: trimmed, Previous: existing.Text, Changed: true, Rows: rows}, nil
}

func (s *service) Delete(ctx context.Context, id int64) (int64, error) {
	rows, err := deadline.Run(ctx, s.policy.Medium, func(ctx context.Context) (int64, error) {
		return s.repo.DeleteJoke(ctx, id)
	})
	if err != nil {
		s.recordError(logrus.Fields{"chiste_id": id}, err, "deleting joke")
		return 0, err
	}
	if rows == 0 {
		return 0, jokeNotFound(id)
	}
	return rows, nil
}

func (s *service) Search(ctx context.Context, filter Filter) ([]JokeView, error) {
	filter.AuthorName = strings.TrimSpace(filter.AuthorName)
	filter.TopicName = strings.TrimSpace(filter.TopicName)

	views, err := deadline.Run(ctx, s.policy.Medium, func(ctx context.Context) ([]JokeView, error) {
		return s.repo.SearchJokes(ctx, filter)
	})
	if err != nil {
		s.recordError(logrus.Fields{"autor": filter.AuthorName, "tematica": filter.TopicName}, err, "searching jokes")
		return nil, err
	}
	return views, nil
}

// recordError logs err and reports it to Sentry unless it is a client
// error that says nothing about the health of the service.
func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	kind := apperror.KindOf(err)
	if kind == apperror.KindValidation || kind == apperror.KindNotFound || kind == apperror.KindCanceled {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithFields(logrus.Fields{"component": "jokes.service", "error": err.Error(), "kind": kind.String()})
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}

func jokeNotFound(id int64) error {
	return apperror.NotFound("Chiste no encontrado", fmt.Sprintf("No existe un chiste con ID: %d", id)).
		With("sugerencia", "Verifique el ID del chiste")
}

// upstreamFailure converts any provider failure, including a deadline
// expiry, into the 502 reported when no fallback joke exists.
func upstreamFailure(provider providers.Provider, err error) error {
	if apperror.Is(err, apperror.KindUpstream) {
		if appErr, ok := apperror.As(err); ok {
			return appErr.With("sugerencia", "Intente con un chiste de la base de datos local")
		}
	}

	reason := providers.Reason(err)
	return apperror.Upstream(providers.CodeUnavailable, fmt.Sprintf("%s no disponible: %s", provider.Label(), reason)).
		With("proveedor", provider.Label()).
		With("motivo", reason).
		With("sugerencia", "Intente con un chiste de la base de datos local").
		WithCause(err)
}
