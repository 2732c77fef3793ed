package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"chistes/app/internal/apperror"
	"chistes/app/internal/combined"
	"chistes/app/internal/db"
	"chistes/app/internal/deadline"
	"chistes/app/internal/jokes"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"

	maxRequestBodyBytes = 1 << 20

	jokeCreatedMessage   = "Chiste creado exitosamente"
	jokeUnchangedMessage = "El chiste ya tiene el mismo texto"
	jokeUpdatedMessage   = "Chiste actualizado exitosamente"
	jokeDeletedMessage   = "Chiste eliminado correctamente"
)

type jsonResponse struct {
	Status int
	Body   any
}

type jokeTypeInput struct {
	Type string `path:"type"`
}

type jokeIDInput struct {
	ID string `path:"id"`
}

type createJokeInput struct {
	RawBody []byte
}

type updateJokeInput struct {
	ID      string `path:"id"`
	RawBody []byte
}

type reportInput struct {
	Author string `query:"autor"`
	Topic  string `query:"tematica"`
}

type jokeBody struct {
	ID       int64  `json:"id"`
	Text     string `json:"texto"`
	AuthorID int64  `json:"usuario_id"`
	TopicID  int64  `json:"tematica_id"`
}

type providerJokeBody struct {
	Text   string  `json:"texto"`
	Source string  `json:"fuente"`
	ID     *string `json:"id"`
}

type fallbackJokeBody struct {
	jokeBody
	Source       string `json:"fuente"`
	FailedSource string `json:"original_fallido"`
}

type createdJokeBody struct {
	jokeBody
	Message   string `json:"mensaje"`
	Timestamp string `json:"timestamp"`
}

type unchangedJokeBody struct {
	Message string `json:"mensaje"`
	ID      int64  `json:"id"`
	Text    string `json:"texto"`
	Updated bool   `json:"actualizado"`
}

type updatedJokeBody struct {
	ID        int64  `json:"id"`
	Text      string `json:"texto"`
	Message   string `json:"mensaje"`
	Changes   int64  `json:"cambios"`
	Previous  string `json:"anterior"`
	Updated   bool   `json:"actualizado"`
	Timestamp string `json:"timestamp"`
}

type deletedJokeBody struct {
	Message string `json:"mensaje"`
	ID      int64  `json:"id"`
	Changes int64  `json:"cambios"`
}

type combinedStatusBody struct {
	Chuck string `json:"chuck"`
	Dad   string `json:"dad"`
}

type combinedJokeBody struct {
	Chuck    string             `json:"chuck"`
	Dad      string             `json:"dad"`
	Combined string             `json:"combinado"`
	Status   combinedStatusBody `json:"estado"`
}

type combinedStatsBody struct {
	Total       int `json:"total_chistes"`
	ChuckOK     int `json:"chuck_exitosos"`
	DadOK       int `json:"dad_exitosos"`
	ChuckFailed int `json:"chuck_fallidos"`
	DadFailed   int `json:"dad_fallidos"`
}

type combinedBody struct {
	Jokes     []combinedJokeBody `json:"chistes"`
	Stats     combinedStatsBody  `json:"estadisticas"`
	Timestamp string             `json:"timestamp"`
}

type reportJokeBody struct {
	Text   string `json:"texto"`
	Author string `json:"autor"`
	Topic  string `json:"tematica"`
}

type reportBody struct {
	Total int              `json:"total"`
	Jokes []reportJokeBody `json:"chistes"`
}

type healthBody struct {
	Status    string   `json:"status"`
	Database  string   `json:"database"`
	Providers []string `json:"providers"`
}

func (s *Server) registerJokeRoutes() {
	huma.Get(s.api, "/chistes", s.randomJokeHandler, jsonOperation(
		"Random stored joke",
		stdhttp.StatusOK,
		stdhttp.StatusNotFound,
		stdhttp.StatusRequestTimeout,
		stdhttp.StatusServiceUnavailable,
	))

	huma.Get(s.api, "/chistes/{type}", s.fetchJokeHandler, jsonOperation(
		"Joke from an external provider",
		stdhttp.StatusOK,
		stdhttp.StatusBadRequest,
		stdhttp.StatusRequestTimeout,
		stdhttp.StatusBadGateway,
		stdhttp.StatusServiceUnavailable,
	))

	huma.Post(s.api, "/chistes", s.createJokeHandler, jsonOperation(
		"Create a joke",
		stdhttp.StatusCreated,
		stdhttp.StatusBadRequest,
		stdhttp.StatusNotFound,
		stdhttp.StatusRequestTimeout,
		stdhttp.StatusServiceUnavailable,
	), optionalBody)

	huma.Put(s.api, "/chistes/{id}", s.updateJokeHandler, jsonOperation(
		"Update the text of a joke",
		stdhttp.StatusOK,
		stdhttp.StatusBadRequest,
		stdhttp.StatusNotFound,
		stdhttp.StatusRequestTimeout,
		stdhttp.StatusServiceUnavailable,
	), optionalBody)

	huma.Delete(s.api, "/chistes/{id}", s.deleteJokeHandler, jsonOperation(
		"Delete a joke",
		stdhttp.StatusOK,
		stdhttp.StatusBadRequest,
		stdhttp.StatusNotFound,
		stdhttp.StatusRequestTimeout,
		stdhttp.StatusServiceUnavailable,
	))
}

func (s *Server) registerCombinedRoute() {
	huma.Get(s.api, "/combinados", s.combinedHandler, jsonOperation(
		"Combined Chuck Norris and dad jokes",
		stdhttp.StatusOK,
		stdhttp.StatusRequestTimeout,
		stdhttp.StatusBadGateway,
		stdhttp.StatusServiceUnavailable,
	))
}

func (s *Server) registerReportRoute() {
	huma.Get(s.api, "/consultas", s.reportHandler, jsonOperation(
		"Jokes with author and topic names",
		stdhttp.StatusOK,
		stdhttp.StatusRequestTimeout,
		stdhttp.StatusServiceUnavailable,
	))
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) randomJokeHandler(ctx context.Context, _ *struct{}) (*jsonResponse, error) {
	joke, err := s.jokes.Random(ctx)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "selecting random joke", nil)
	}

	return newJSONResponse(stdhttp.StatusOK, toJokeBody(joke)), nil
}

func (s *Server) fetchJokeHandler(ctx context.Context, input *jokeTypeInput) (*jsonResponse, error) {
	result, err := s.jokes.FetchByType(ctx, input.Type)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "fetching provider joke", logrus.Fields{"type": input.Type})
	}

	if result.Fallback && result.Joke != nil {
		return newJSONResponse(stdhttp.StatusOK, fallbackJokeBody{
			jokeBody:     toJokeBody(result.Joke),
			Source:       result.Source,
			FailedSource: result.FailedSource,
		}), nil
	}

	body := providerJokeBody{Text: result.Text, Source: result.Source}
	if result.ExternalID != "" {
		id := result.ExternalID
		body.ID = &id
	}

	return newJSONResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) createJokeHandler(ctx context.Context, input *createJokeInput) (*jsonResponse, error) {
	body, err := decodeBody(input.RawBody)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "decoding create body", nil)
	}

	newJoke, err := jokes.ParseNewJoke(body)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "validating new joke", nil)
	}

	joke, err := s.jokes.Create(ctx, newJoke)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "creating joke", logrus.Fields{
			"usuario_id":  newJoke.AuthorID,
			"tematica_id": newJoke.TopicID,
		})
	}

	return newJSONResponse(stdhttp.StatusCreated, createdJokeBody{
		jokeBody:  toJokeBody(joke),
		Message:   jokeCreatedMessage,
		Timestamp: s.timestamp(),
	}), nil
}

func (s *Server) updateJokeHandler(ctx context.Context, input *updateJokeInput) (*jsonResponse, error) {
	id, err := jokes.ParseJokeID(input.ID)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "parsing joke id", nil)
	}

	body, err := decodeBody(input.RawBody)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "decoding update body", nil)
	}

	text, err := jokes.ParseTextUpdate(body)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "validating joke text", nil)
	}

	result, err := s.jokes.UpdateText(ctx, id, text)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "updating joke", logrus.Fields{"chiste_id": id})
	}

	if !result.Changed {
		return newJSONResponse(stdhttp.StatusOK, unchangedJokeBody{
			Message: jokeUnchangedMessage,
			ID:      result.ID,
			Text:    result.Text,
			Updated: false,
		}), nil
	}

	return newJSONResponse(stdhttp.StatusOK, updatedJokeBody{
		ID:        result.ID,
		Text:      result.Text,
		Message:   jokeUpdatedMessage,
		Changes:   result.Rows,
		Previous:  result.Previous,
		Updated:   true,
		Timestamp: s.timestamp(),
	}), nil
}

func (s *Server) deleteJokeHandler(ctx context.Context, input *jokeIDInput) (*jsonResponse, error) {
	id, err := jokes.ParseDeleteID(input.ID)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "parsing joke id", nil)
	}

	rows, err := s.jokes.Delete(ctx, id)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "deleting joke", logrus.Fields{"chiste_id": id})
	}

	return newJSONResponse(stdhttp.StatusOK, deletedJokeBody{
		Message: jokeDeletedMessage,
		ID:      id,
		Changes: rows,
	}), nil
}

func (s *Server) combinedHandler(ctx context.Context, _ *struct{}) (*jsonResponse, error) {
	result, err := s.combined.Combine(ctx)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "combining jokes", nil)
	}

	body := combinedBody{
		Jokes: make([]combinedJokeBody, 0, len(result.Pairs)),
		Stats: combinedStatsBody{
			Total:       result.Stats.Total,
			ChuckOK:     result.Stats.ChuckOK,
			DadOK:       result.Stats.DadOK,
			ChuckFailed: result.Stats.ChuckFailed,
			DadFailed:   result.Stats.DadFailed,
		},
		Timestamp: s.timestamp(),
	}
	for _, pair := range result.Pairs {
		body.Jokes = append(body.Jokes, toCombinedJokeBody(pair))
	}

	return newJSONResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) reportHandler(ctx context.Context, input *reportInput) (*jsonResponse, error) {
	filter := jokes.Filter{AuthorName: input.Author, TopicName: input.Topic}
	views, err := s.jokes.Search(ctx, filter)
	if err != nil {
		return nil, s.errorResponse(ctx, err, "searching jokes", logrus.Fields{
			"autor":    input.Author,
			"tematica": input.Topic,
		})
	}

	body := reportBody{Total: len(views), Jokes: make([]reportJokeBody, 0, len(views))}
	for _, view := range views {
		body.Jokes = append(body.Jokes, reportJokeBody{Text: view.Text, Author: view.Author, Topic: view.Topic})
	}

	return newJSONResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*jsonResponse, error) {
	body := healthBody{
		Status:    "ok",
		Database:  "ok",
		Providers: make([]string, 0, len(s.providers)),
	}
	for _, provider := range s.providers {
		body.Providers = append(body.Providers, provider.Label())
	}

	status := stdhttp.StatusOK
	err := deadline.Do(ctx, s.policy.Short, func(ctx context.Context) error {
		return db.Ping(ctx, s.db)
	})
	if err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		body.Status = "degraded"
		body.Database = "error"
		status = stdhttp.StatusServiceUnavailable
	}

	return newJSONResponse(status, body), nil
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func newJSONResponse(status int, body any) *jsonResponse {
	return &jsonResponse{Status: status, Body: body}
}

func toJokeBody(joke *jokes.Joke) jokeBody {
	return jokeBody{
		ID:       joke.ID,
		Text:     joke.Text,
		AuthorID: joke.AuthorID,
		TopicID:  joke.TopicID,
	}
}

func toCombinedJokeBody(pair combined.Pair) combinedJokeBody {
	return combinedJokeBody{
		Chuck:    pair.Chuck.Text,
		Dad:      pair.Dad.Text,
		Combined: pair.Combined,
		Status: combinedStatusBody{
			Chuck: pair.Chuck.Status(),
			Dad:   pair.Dad.Status(),
		},
	}
}

// decodeBody parses a JSON object body. An empty body decodes to an empty
// object so field validation reports what is missing.
func decodeBody(raw []byte) (jokes.Body, error) {
	body := jokes.Body{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return body, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		return nil, apperror.Validation("JSON inválido", "El cuerpo de la solicitud debe ser un objeto JSON válido").WithCause(err)
	}
	if body == nil {
		body = jokes.Body{}
	}

	return body, nil
}

// optionalBody leaves the body to decodeBody and the jokes parsers: huma
// neither validates it nor rejects an empty one.
func optionalBody(op *huma.Operation) {
	op.SkipValidateBody = true
	op.RequestBody = &huma.RequestBody{
		Required: false,
		Content: map[string]*huma.MediaType{
			"application/json": {Schema: &huma.Schema{Type: "object"}},
		},
	}
	op.Middlewares = append(op.Middlewares, emptyBodyAsObject)
}

// emptyBodyAsObject replaces a missing body with {} since huma always requires
// one for RawBody inputs.
func emptyBodyAsObject(ctx huma.Context, next func(huma.Context)) {
	reader := ctx.BodyReader()
	if reader == nil {
		reader = bytes.NewReader(nil)
	}

	raw, err := io.ReadAll(io.LimitReader(reader, maxRequestBodyBytes+1))
	if err != nil {
		writeBodyError(ctx, "JSON inválido", "No se pudo leer el cuerpo de la solicitud")
		return
	}
	if len(raw) > maxRequestBodyBytes {
		writeBodyError(ctx, "Cuerpo demasiado grande", "El cuerpo de la solicitud supera 1 MB")
		return
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	next(bodyContext{humaContext: ctx, body: bytes.NewReader(raw)})
}

func writeBodyError(ctx huma.Context, code, detail string) {
	body, _ := json.Marshal(&apiError{Message: code, Detail: detail})
	ctx.SetHeader("Content-Type", jsonContentType)
	ctx.SetStatus(stdhttp.StatusBadRequest)
	_, _ = ctx.BodyWriter().Write(body)
}

// humaContext lets bodyContext embed huma.Context without the field name
// shadowing its Context() method.
type humaContext = huma.Context

type bodyContext struct {
	humaContext
	body io.Reader
}

func (c bodyContext) BodyReader() io.Reader {
	return c.body
}

func (c bodyContext) Unwrap() huma.Context {
	return c.humaContext
}

func jsonOperation(summary string, success int, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		op.DefaultStatus = success
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{success}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Type: "object"},
					},
				},
			}
		}
	}
}
