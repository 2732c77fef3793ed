package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"chistes/app/internal/deadline"
	"chistes/app/internal/mathops"
)

const incrementMessage = "Operación completada exitosamente"

type lcmInput struct {
	Numbers string `query:"numbers"`
}

type incrementInput struct {
	Number string `query:"number"`
}

type lcmBody struct {
	Numbers   []int64 `json:"numeros"`
	LCM       int64   `json:"minimoComunMultiplo"`
	Operation string  `json:"calculo"`
	Timestamp string  `json:"timestamp"`
	Count     int     `json:"cantidad_numeros"`
}

type pairBody struct {
	Input  string `json:"entrada"`
	Output string `json:"salida"`
}

type incrementBody struct {
	Original  json.Number `json:"original"`
	Result    json.Number `json:"resultado"`
	Operation string      `json:"operacion"`
	Kinds     pairBody    `json:"tipos"`
	Precision pairBody    `json:"precision"`
	Timestamp string      `json:"timestamp"`
	Message   string      `json:"mensaje"`
}

func (s *Server) registerMathRoutes() {
	huma.Get(s.api, "/matematica/mcm", s.lcmHandler, jsonOperation(
		"Least common multiple",
		stdhttp.StatusOK,
		stdhttp.StatusBadRequest,
		stdhttp.StatusRequestTimeout,
	))

	huma.Get(s.api, "/matematica/masUno", s.incrementHandler, jsonOperation(
		"Add one to a number",
		stdhttp.StatusOK,
		stdhttp.StatusBadRequest,
		stdhttp.StatusRequestTimeout,
	))
}

func (s *Server) lcmHandler(ctx context.Context, input *lcmInput) (*jsonResponse, error) {
	result, err := deadline.Run(ctx, s.policy.Short, func(context.Context) (mathops.LCMResult, error) {
		return mathops.ComputeLCM(input.Numbers)
	})
	if err != nil {
		return nil, s.errorResponse(ctx, err, "computing lcm", logrus.Fields{"numbers": input.Numbers})
	}

	return newJSONResponse(stdhttp.StatusOK, lcmBody{
		Numbers:   result.Numbers,
		LCM:       result.LCM,
		Operation: result.Expression(),
		Timestamp: s.timestamp(),
		Count:     len(result.Numbers),
	}), nil
}

func (s *Server) incrementHandler(ctx context.Context, input *incrementInput) (*jsonResponse, error) {
	result, err := deadline.Run(ctx, s.policy.Short, func(context.Context) (mathops.IncrementResult, error) {
		return mathops.Increment(input.Number)
	})
	if err != nil {
		return nil, s.errorResponse(ctx, err, "incrementing number", logrus.Fields{"number": input.Number})
	}

	original := result.Original.String()
	incremented := result.Result.String()

	return newJSONResponse(stdhttp.StatusOK, incrementBody{
		Original:  json.Number(original),
		Result:    json.Number(incremented),
		Operation: result.Operation(),
		Kinds:     pairBody{Input: result.InputKind(), Output: result.OutputKind()},
		Precision: pairBody{Input: original, Output: incremented},
		Timestamp: s.timestamp(),
		Message:   incrementMessage,
	}), nil
}
