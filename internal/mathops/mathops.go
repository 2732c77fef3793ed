// Package mathops implements the least-common-multiple and increment
// endpoints. Both stay within the range of integers a float64 can hold
// exactly so results survive a round trip through any JSON client.
package mathops

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"chistes/app/internal/apperror"
)

const (
	// MaxSafeInteger is 2^53 - 1.
	MaxSafeInteger = 1<<53 - 1
	// MaxLCMInputs caps the number of values accepted by LCM.
	MaxLCMInputs = 20

	LCMExample       = "/api/mcm?numbers=4,6,8"
	IncrementExample = "/api/masUno?number=5"

	KindInteger = "entero"
	KindDecimal = "decimal"
)

var (
	maxSafe = decimal.NewFromInt(MaxSafeInteger)
	minSafe = decimal.NewFromInt(-MaxSafeInteger)
)

// MissingParameter is returned when a required query parameter is absent.
func MissingParameter(name, example string) *apperror.Error {
	return apperror.Validation("Parámetro requerido faltante", fmt.Sprintf("El parámetro '%s' es requerido", name)).
		With("ejemplo", example)
}

// LCMResult is the outcome of a least-common-multiple calculation.
type LCMResult struct {
	Numbers []int64
	LCM     int64
}

// Expression renders the calculation, e.g. "MCM(4, 6, 8) = 24".
func (r LCMResult) Expression() string {
	parts := make([]string, len(r.Numbers))
	for i, n := range r.Numbers {
		parts[i] = strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("MCM(%s) = %d", strings.Join(parts, ", "), r.LCM)
}

// ComputeLCM parses a comma separated list of positive integers and returns
// their least common multiple.
func ComputeLCM(raw string) (LCMResult, error) {
	numbers, err := ParseNumbers(raw)
	if err != nil {
		return LCMResult{}, err
	}

	lcm, err := LCM(numbers)
	if err != nil {
		return LCMResult{}, err
	}

	return LCMResult{Numbers: numbers, LCM: lcm}, nil
}

// ParseNumbers splits raw on commas. Every element must be a positive
// integer no larger than MaxSafeInteger, and at most MaxLCMInputs elements
// are accepted.
func ParseNumbers(raw string) ([]int64, error) {
	if raw == "" {
		return nil, MissingParameter("numbers", LCMExample)
	}

	parts := strings.Split(raw, ",")

	numbers := make([]int64, 0, len(parts))
	for idx, part := range parts {
		position := idx + 1
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			return nil, invalidLCMInput(fmt.Sprintf("Elemento vacío en la posición %d", position))
		}

		value, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			if eris.Is(err, strconv.ErrRange) && !strings.HasPrefix(trimmed, "-") {
				return nil, tooLarge(trimmed, position)
			}
			return nil, invalidLCMInput(fmt.Sprintf("\"%s\" no es un número válido en la posición %d", trimmed, position))
		}

		if value <= 0 {
			return nil, invalidLCMInput(fmt.Sprintf("Número no positivo: \"%s\" en la posición %d. Todos los números deben ser enteros positivos", trimmed, position))
		}
		if value > MaxSafeInteger {
			return nil, tooLarge(trimmed, position)
		}

		numbers = append(numbers, value)
	}

	if len(numbers) > MaxLCMInputs {
		return nil, invalidLCMInput(fmt.Sprintf("Demasiados números. El máximo permitido es %d", MaxLCMInputs))
	}

	return numbers, nil
}

// LCM returns the least common multiple of numbers. The running value must
// stay within MaxSafeInteger.
func LCM(numbers []int64) (int64, error) {
	if len(numbers) == 0 {
		return 0, invalidLCMInput("Debe proporcionar al menos un número")
	}

	result := numbers[0]
	for _, n := range numbers[1:] {
		if result == 0 || n == 0 {
			return 0, nil
		}

		reduced := result / gcd(result, n)
		if reduced > MaxSafeInteger/n {
			return 0, invalidLCMInput("El mínimo común múltiplo calculado es demasiado grande para ser representado con precisión")
		}
		result = reduced * n
	}

	return result, nil
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func invalidLCMInput(detail string) *apperror.Error {
	return apperror.Validation("Datos de entrada inválidos", detail).
		With("sugerencia", "Verifique que todos los elementos sean números enteros positivos válidos")
}

func tooLarge(value string, position int) *apperror.Error {
	return invalidLCMInput(fmt.Sprintf("Número demasiado grande: \"%s\" en la posición %d. El máximo permitido es %d", value, position, MaxSafeInteger))
}

// IncrementResult is the outcome of adding one to a number.
type IncrementResult struct {
	Original decimal.Decimal
	Result   decimal.Decimal
}

// InputKind reports whether the original value is an integer.
func (r IncrementResult) InputKind() string {
	return kindOf(r.Original)
}

// OutputKind reports whether the result is an integer.
func (r IncrementResult) OutputKind() string {
	return kindOf(r.Result)
}

// Operation renders the calculation, e.g. "9 + 1 = 10".
func (r IncrementResult) Operation() string {
	return fmt.Sprintf("%s + 1 = %s", r.Original.String(), r.Result.String())
}

// Increment parses raw as a decimal number and adds one exactly. Values
// outside ±MaxSafeInteger are rejected.
func Increment(raw string) (IncrementResult, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return IncrementResult{}, MissingParameter("number", IncrementExample)
	}

	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return IncrementResult{}, invalidIncrementInput(fmt.Sprintf("'%s' no es un número válido", raw)).WithCause(err)
	}

	if value.GreaterThan(maxSafe) || value.LessThan(minSafe) {
		return IncrementResult{}, invalidIncrementInput(
			fmt.Sprintf("Número fuera del rango seguro. Debe estar entre %d y %d", -MaxSafeInteger, MaxSafeInteger))
	}

	return IncrementResult{Original: value, Result: value.Add(decimal.NewFromInt(1))}, nil
}

func invalidIncrementInput(detail string) *apperror.Error {
	return apperror.Validation("Valor de entrada inválido", detail).
		With("sugerencia", "Proporcione un número válido").
		With("rango_seguro", fmt.Sprintf("%d a %d", -MaxSafeInteger, MaxSafeInteger))
}

func kindOf(d decimal.Decimal) string {
	if d.IsInteger() {
		return KindInteger
	}
	return KindDecimal
}
