package dialogue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Compute folds numbers left to right with op. Sum and product are seeded
// with 0 and 1; subtraction and division start from the first element.
// Division stops at the first zero divisor and returns ErrDivisionByZero.
// Callers never pass an empty list for subtraction or division.
func Compute(numbers []float64, op Operator) (float64, error) {
	switch op {
	case OpAdd:
		acc := 0.0
		for _, n := range numbers {
			acc += n
		}
		return acc, nil
	case OpMul:
		acc := 1.0
		for _, n := range numbers {
			acc *= n
		}
		return acc, nil
	case OpSub:
		if len(numbers) == 0 {
			return 0, fmt.Errorf("dialogue: subtraction of an empty list")
		}
		acc := numbers[0]
		for _, n := range numbers[1:] {
			acc -= n
		}
		return acc, nil
	case OpDiv:
		if len(numbers) == 0 {
			return 0, fmt.Errorf("dialogue: division of an empty list")
		}
		acc := numbers[0]
		for _, n := range numbers[1:] {
			if n == 0 {
				return 0, ErrDivisionByZero
			}
			acc /= n
		}
		return acc, nil
	}
	return 0, fmt.Errorf("dialogue: unsupported operator %q", op.String())
}

// FormatNumber prints v with the shortest round-trip digits, switching to
// exponent form outside [1e-6, 1e21). Infinities print as "Infinity".
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		return trimExponent(strconv.FormatFloat(v, 'e', -1, 64))
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// trimExponent drops the zero padding strconv puts in front of a one-digit
// exponent: "1.5e-07" becomes "1.5e-7".
func trimExponent(s string) string {
	mantissa, exp, ok := strings.Cut(s, "e")
	if !ok || len(exp) < 2 {
		return s
	}
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}
