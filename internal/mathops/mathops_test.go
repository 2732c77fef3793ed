package mathops

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chistes/app/internal/apperror"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()

	appErr, ok := apperror.As(err)
	require.True(t, ok, "expected classified error, got %v", err)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Equal(t, code, appErr.Code)
}

func TestComputeLCM(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw        string
		want       int64
		expression string
	}{
		{raw: "4,6,8", want: 24, expression: "MCM(4, 6, 8) = 24"},
		{raw: "4", want: 4, expression: "MCM(4) = 4"},
		{raw: "4,5,8,10,2,3,17,1,13,9", want: 79560, expression: "MCM(4, 5, 8, 10, 2, 3, 17, 1, 13, 9) = 79560"},
		{raw: " 3 , 7 ", want: 21, expression: "MCM(3, 7) = 21"},
	}

	for _, tc := range cases {
		result, err := ComputeLCM(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, result.LCM, tc.raw)
		assert.Equal(t, tc.expression, result.Expression())
	}
}

func TestLCMIsOrderIndependent(t *testing.T) {
	t.Parallel()

	orders := [][]int64{
		{4, 6, 8},
		{8, 6, 4},
		{6, 4, 8},
	}
	for _, numbers := range orders {
		lcm, err := LCM(numbers)
		require.NoError(t, err)
		assert.Equal(t, int64(24), lcm)
	}
}

func TestParseNumbersRejectsBadInput(t *testing.T) {
	t.Parallel()

	tooMany := strings.TrimSuffix(strings.Repeat("2,", MaxLCMInputs+1), ",")
	cases := []string{
		"4,,8",
		"4,abc",
		"0,3",
		"-2,3",
		"1.5",
		strconv.FormatInt(MaxSafeInteger+1, 10),
		"99999999999999999999999",
		tooMany,
	}

	for _, raw := range cases {
		_, err := ParseNumbers(raw)
		requireCode(t, err, "Datos de entrada inválidos")
	}
}

func TestParseNumbersReportsBadElementBeforeCount(t *testing.T) {
	t.Parallel()

	raw := "a" + strings.Repeat(",2", MaxLCMInputs)
	_, err := ParseNumbers(raw)
	requireCode(t, err, "Datos de entrada inválidos")

	appErr, _ := apperror.As(err)
	assert.Equal(t, "\"a\" no es un número válido en la posición 1", appErr.Detail)

	_, err = ParseNumbers(strings.TrimSuffix(strings.Repeat("2,", MaxLCMInputs+1), ","))
	appErr, _ = apperror.As(err)
	assert.Equal(t, "Demasiados números. El máximo permitido es 20", appErr.Detail)
}

func TestParseNumbersMissing(t *testing.T) {
	t.Parallel()

	_, err := ParseNumbers("")
	requireCode(t, err, "Parámetro requerido faltante")

	appErr, _ := apperror.As(err)
	assert.Equal(t, "El parámetro 'numbers' es requerido", appErr.Detail)
	assert.Equal(t, LCMExample, appErr.Fields["ejemplo"])
}

func TestLCMOverflow(t *testing.T) {
	t.Parallel()

	primes := []int64{9007199254740881, 9007199254740847}
	_, err := LCM(primes)
	requireCode(t, err, "Datos de entrada inválidos")

	_, err = ComputeLCM(fmt.Sprintf("%d,%d", primes[0], primes[1]))
	requireCode(t, err, "Datos de entrada inválidos")
}

func TestIncrement(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw       string
		original  string
		result    string
		inKind    string
		outKind   string
		operation string
	}{
		{raw: "9", original: "9", result: "10", inKind: KindInteger, outKind: KindInteger, operation: "9 + 1 = 10"},
		{raw: "1.5", original: "1.5", result: "2.5", inKind: KindDecimal, outKind: KindDecimal, operation: "1.5 + 1 = 2.5"},
		{raw: "0.1", original: "0.1", result: "1.1", inKind: KindDecimal, outKind: KindDecimal, operation: "0.1 + 1 = 1.1"},
		{raw: " -3 ", original: "-3", result: "-2", inKind: KindInteger, outKind: KindInteger, operation: "-3 + 1 = -2"},
		{raw: "2.50", original: "2.5", result: "3.5", inKind: KindDecimal, outKind: KindDecimal, operation: "2.5 + 1 = 3.5"},
	}

	for _, tc := range cases {
		result, err := Increment(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.original, result.Original.String())
		assert.Equal(t, tc.result, result.Result.String())
		assert.Equal(t, tc.inKind, result.InputKind())
		assert.Equal(t, tc.outKind, result.OutputKind())
		assert.Equal(t, tc.operation, result.Operation())
	}
}

func TestIncrementRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"abc", "5abc", "Infinity", "NaN", "9007199254740992", "-9007199254740992"} {
		_, err := Increment(raw)
		requireCode(t, err, "Valor de entrada inválido")
	}

	_, err := Increment("")
	requireCode(t, err, "Parámetro requerido faltante")
}
