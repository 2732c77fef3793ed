package jokes

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"chistes/app/internal/apperror"
)

func decodeBody(t *testing.T, raw string) Body {
	t.Helper()

	dec := json.NewDecoder(bytes.NewBufferString(raw))
	dec.UseNumber()

	var body Body
	if err := dec.Decode(&body); err != nil {
		t.Fatalf("decoding %q failed: %v", raw, err)
	}
	return body
}

func expectCode(t *testing.T, err error, code string) *apperror.Error {
	t.Helper()

	appErr, ok := apperror.As(err)
	if !ok {
		t.Fatalf("expected classified error with code %q, got %v", code, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %q, got %q", code, appErr.Code)
	}
	return appErr
}

func TestParseNewJokeReportsMissingFieldsInOrder(t *testing.T) {
	t.Parallel()

	_, err := ParseNewJoke(decodeBody(t, `{"usuario_id": 0, "texto": ""}`))
	appErr := expectCode(t, err, "Faltan parámetros obligatorios")

	missing := appErr.Fields["campos_faltantes"]
	expected := []string{"texto", "usuario_id", "tematica_id"}
	if !reflect.DeepEqual(missing, expected) {
		t.Fatalf("expected %v, got %v", expected, missing)
	}
}

func TestParseNewJokeValidatesFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		code string
	}{
		{name: "non string text", body: `{"texto": 12, "usuario_id": 1, "tematica_id": 1}`, code: "Texto inválido"},
		{name: "blank text", body: `{"texto": "   ", "usuario_id": 1, "tematica_id": 1}`, code: "Texto inválido"},
		{name: "long text", body: `{"texto": "` + strings.Repeat("a", 501) + `", "usuario_id": 1, "tematica_id": 1}`, code: "Texto demasiado largo"},
		{name: "negative author", body: `{"texto": "x", "usuario_id": -3, "tematica_id": 1}`, code: "ID de usuario inválido"},
		{name: "word author", body: `{"texto": "x", "usuario_id": "abc", "tematica_id": 1}`, code: "ID de usuario inválido"},
		{name: "fractional topic", body: `{"texto": "x", "usuario_id": 1, "tematica_id": 1.5}`, code: "ID de temática inválido"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseNewJoke(decodeBody(t, tc.body))
			expectCode(t, err, tc.code)
		})
	}
}

func TestParseNewJokeAcceptsNumericStrings(t *testing.T) {
	t.Parallel()

	input, err := ParseNewJoke(decodeBody(t, `{"texto": "  hola  ", "usuario_id": "2", "tematica_id": 3}`))
	if err != nil {
		t.Fatalf("ParseNewJoke returned error: %v", err)
	}
	if input != (NewJoke{Text: "hola", AuthorID: 2, TopicID: 3}) {
		t.Fatalf("unexpected input %+v", input)
	}
}

func TestParseNewJokeCountsCharactersNotBytes(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("ñ", MaxTextLength)
	input, err := ParseNewJoke(Body{"texto": text, "usuario_id": json.Number("1"), "tematica_id": json.Number("1")})
	if err != nil {
		t.Fatalf("expected %d multi-byte characters to be accepted, got %v", MaxTextLength, err)
	}
	if input.Text != text {
		t.Fatalf("text was altered")
	}
}

func TestParseTextUpdate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		code string
	}{
		{name: "missing", body: `{}`, code: "Falta el texto del chiste"},
		{name: "empty", body: `{"texto": ""}`, code: "Falta el texto del chiste"},
		{name: "number", body: `{"texto": 5}`, code: "Formato de texto inválido"},
		{name: "spaces", body: `{"texto": "   "}`, code: "Texto vacío"},
		{name: "long", body: `{"texto": "` + strings.Repeat("b", 501) + `"}`, code: "Texto demasiado largo"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTextUpdate(decodeBody(t, tc.body))
			expectCode(t, err, tc.code)
		})
	}

	text, err := ParseTextUpdate(decodeBody(t, `{"texto": " nuevo "}`))
	if err != nil || text != "nuevo" {
		t.Fatalf("expected trimmed text, got %q, %v", text, err)
	}
}

func TestParseIDs(t *testing.T) {
	t.Parallel()

	if _, err := ParseJokeID("0"); err == nil {
		t.Fatalf("expected zero id to be rejected for update")
	}
	if id, err := ParseJokeID("12"); err != nil || id != 12 {
		t.Fatalf("expected 12, got %d, %v", id, err)
	}

	_, err := ParseDeleteID("abc")
	expectCode(t, err, "ID de chiste inválido o no proporcionado")

	if id, err := ParseDeleteID("0"); err != nil || id != 0 {
		t.Fatalf("expected delete to accept any integer, got %d, %v", id, err)
	}
}
