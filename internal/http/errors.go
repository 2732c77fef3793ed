package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"chistes/app/internal/apperror"
)

const (
	internalErrorCode   = "Error interno del servidor"
	internalErrorDetail = "Ocurrió un error inesperado"
)

// apiError is the JSON error body. Fields are flattened next to error and
// detalles.
type apiError struct {
	status  int
	Message string
	Detail  string
	Fields  map[string]any
}

var _ huma.StatusError = (*apiError)(nil)

func (e *apiError) Error() string {
	return e.Message
}

func (e *apiError) GetStatus() int {
	return e.status
}

func (e *apiError) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(e.Fields)+2)
	for key, value := range e.Fields {
		body[key] = value
	}
	body["error"] = e.Message
	body["detalles"] = e.Detail
	return json.Marshal(body)
}

var errorModelOnce sync.Once

// installErrorModel makes huma's own validation errors use the same body
// shape as the handlers.
func installErrorModel() {
	errorModelOnce.Do(func() {
		huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
			details := make([]string, 0, len(errs))
			for _, err := range errs {
				if err != nil {
					details = append(details, err.Error())
				}
			}

			detail := strings.Join(details, "; ")
			if detail == "" {
				detail = msg
			}

			return &apiError{status: status, Message: msg, Detail: detail}
		}
	})
}

// errorResponse converts err into the JSON error returned to the client and
// records it when it indicates a server-side problem.
func (s *Server) errorResponse(ctx context.Context, err error, message string, fields logrus.Fields) error {
	kind := apperror.KindOf(err)

	appErr, ok := apperror.As(err)
	if !ok {
		appErr = unclassified(kind)
	}

	resp := &apiError{
		status:  kind.Status(),
		Message: appErr.Code,
		Detail:  appErr.Detail,
		Fields:  make(map[string]any, len(appErr.Fields)+1),
	}
	for key, value := range appErr.Fields {
		resp.Fields[key] = value
	}

	if kind == apperror.KindInternal {
		resp.Message = internalErrorCode
		resp.Detail = internalErrorDetail
		resp.Fields = map[string]any{}
		if s.development {
			resp.Detail = err.Error()
		}
	}

	if resp.Detail == "" {
		resp.Detail = resp.Message
	}

	if resp.status >= stdhttp.StatusInternalServerError || kind == apperror.KindTimeout {
		resp.Fields["timestamp"] = s.timestamp()
	}

	switch {
	case kind == apperror.KindInternal:
		s.recordError(ctx, err, message, fields)
	case resp.status >= stdhttp.StatusInternalServerError || kind == apperror.KindTimeout:
		s.logFailure(ctx, err, message, fields, resp.status)
	}

	return resp
}

func unclassified(kind apperror.Kind) *apperror.Error {
	switch kind {
	case apperror.KindTimeout:
		return apperror.Timeout("Timeout de la operación", "La operación tardó demasiado en completarse")
	case apperror.KindCanceled:
		return apperror.New(apperror.KindCanceled, "Solicitud cancelada", "El cliente canceló la solicitud")
	default:
		return apperror.Internal(internalErrorCode, internalErrorDetail)
	}
}

// logFailure logs a classified dependency failure. Those are reported to
// Sentry by the service that classified them.
func (s *Server) logFailure(ctx context.Context, err error, message string, fields logrus.Fields, status int) {
	if s.logger == nil {
		return
	}

	entry := s.logger.WithFields(logrus.Fields{
		"error":  err.Error(),
		"status": status,
	})
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}
	entry.Warn(message)
}

func (s *Server) recordError(ctx context.Context, err error, message string, fields logrus.Fields) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if fields != nil {
			entry = entry.WithFields(fields)
		}
		if requestID := RequestIDFromContext(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
		entry.Error(message)
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	if s.sentry != nil {
		s.sentry.CaptureException(err)
	}
}
