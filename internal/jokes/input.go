package jokes

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"chistes/app/internal/apperror"
)

// MaxTextLength is the longest joke accepted, in characters after trimming.
const MaxTextLength = 500

// Body is a request body decoded with json.Decoder.UseNumber, so numbers
// arrive as json.Number.
type Body map[string]any

// NewJoke holds validated input for Create.
type NewJoke struct {
	Text     string
	AuthorID int64
	TopicID  int64
}

// ParseNewJoke validates a create request body. Fields count as missing
// when absent, null, empty, zero or false.
func ParseNewJoke(body Body) (NewJoke, error) {
	missing := make([]string, 0, 3)
	for _, field := range []string{"texto", "usuario_id", "tematica_id"} {
		if !present(body[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return NewJoke{}, apperror.Validation("Faltan parámetros obligatorios", "Todos los campos son requeridos para crear un chiste").
			With("campos_faltantes", missing)
	}

	rawText, ok := body["texto"].(string)
	if !ok || strings.TrimSpace(rawText) == "" {
		return NewJoke{}, apperror.Validation("Texto inválido", "El texto debe ser una cadena no vacía").
			With("longitud_actual", utf8.RuneCountInString(rawText))
	}

	text, err := validateText(rawText)
	if err != nil {
		return NewJoke{}, err
	}

	authorID, ok := positiveID(body["usuario_id"])
	if !ok {
		return NewJoke{}, apperror.Validation("ID de usuario inválido", "El usuario_id debe ser un número entero positivo").
			With("valor_recibido", body["usuario_id"])
	}

	topicID, ok := positiveID(body["tematica_id"])
	if !ok {
		return NewJoke{}, apperror.Validation("ID de temática inválido", "La tematica_id debe ser un número entero positivo").
			With("valor_recibido", body["tematica_id"])
	}

	return NewJoke{Text: text, AuthorID: authorID, TopicID: topicID}, nil
}

// ParseTextUpdate validates an update request body and returns the trimmed
// text.
func ParseTextUpdate(body Body) (string, error) {
	raw := body["texto"]
	if !present(raw) {
		return "", apperror.Validation("Falta el texto del chiste", "El campo 'texto' es obligatorio para actualizar el chiste")
	}

	text, ok := raw.(string)
	if !ok {
		return "", apperror.Validation("Formato de texto inválido", "El texto debe ser una cadena de caracteres").
			With("tipo_recibido", jsonTypeName(raw))
	}

	return validateText(text)
}

// ParseJokeID parses a path id for update. It must be a positive integer.
func ParseJokeID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("ID de chiste inválido", "El ID debe ser un número entero positivo").
			With("valor_recibido", raw)
	}
	return id, nil
}

// ParseDeleteID parses a path id for delete. Any integer is accepted; ids
// that match nothing are reported as not found later.
func ParseDeleteID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperror.Validation("ID de chiste inválido o no proporcionado", "El ID debe ser un número entero").
			With("valor_recibido", raw)
	}
	return id, nil
}

func validateText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", apperror.Validation("Texto vacío", "El texto no puede estar vacío o contener solo espacios").
			With("longitud_actual", 0)
	}

	if length := utf8.RuneCountInString(text); length > MaxTextLength {
		return "", apperror.Validation("Texto demasiado largo", "El chiste no puede exceder los 500 caracteres").
			With("longitud_actual", length).
			With("maximo_permitido", MaxTextLength)
	}

	return text, nil
}

func present(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

func positiveID(value any) (int64, bool) {
	var raw string
	switch v := value.(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = strings.TrimSpace(v)
	case float64:
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case string:
		return "string"
	default:
		return "object"
	}
}
