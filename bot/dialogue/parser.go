package dialogue

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a raw input line.
type Kind int

const (
	KindUnknown Kind = iota
	KindStart
	KindName
	KindNumbers
	KindOperator
	KindStop
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindName:
		return "name"
	case KindNumbers:
		return "numbers"
	case KindOperator:
		return "operator"
	case KindStop:
		return "stop"
	}
	return "unknown"
}

// Operator is one of the four arithmetic symbols.
type Operator byte

const (
	OpAdd Operator = '+'
	OpSub Operator = '-'
	OpMul Operator = '*'
	OpDiv Operator = '/'
)

func (o Operator) String() string {
	if o == 0 {
		return ""
	}
	return string(rune(o))
}

// Operators lists the accepted symbols in the order the bot advertises them.
var Operators = []Operator{OpSub, OpAdd, OpMul, OpDiv}

// Input is a classified line together with its extracted payload.
type Input struct {
	Kind Kind
	// Payload is the trimmed text after the colon for name and number commands.
	Payload  string
	Numbers  []float64
	Operator Operator
	// Err is set for number lists that are empty or contain a bad segment.
	Err error
}

const (
	startCommand  = "/start"
	stopCommand   = "stop"
	namePrefix    = "name:"
	numbersPrefix = "number:"
)

// Parse classifies one line of user input.
func Parse(raw string) Input {
	text := strings.TrimSpace(raw)
	if text == startCommand {
		return Input{Kind: KindStart}
	}

	bare := strings.TrimSpace(strings.TrimPrefix(text, "/"))
	if rest, ok := cutPrefixFold(bare, namePrefix); ok {
		return Input{Kind: KindName, Payload: strings.TrimSpace(rest)}
	}
	if rest, ok := cutPrefixFold(bare, numbersPrefix); ok {
		return parseNumbers(strings.TrimSpace(rest))
	}
	// A lone "/" is division, so the operator check looks at both spellings.
	for _, candidate := range []string{text, bare} {
		if len(candidate) == 1 {
			if op, ok := operatorOf(candidate[0]); ok {
				return Input{Kind: KindOperator, Operator: op}
			}
		}
	}
	if bare == stopCommand {
		return Input{Kind: KindStop}
	}
	return Input{Kind: KindUnknown}
}

func parseNumbers(payload string) Input {
	in := Input{Kind: KindNumbers, Payload: payload}
	if payload == "" {
		in.Err = ErrEmptyPayload
		return in
	}
	numbers, err := ParseNumbers(payload)
	if err != nil {
		in.Err = err
		return in
	}
	in.Numbers = numbers
	return in
}

// ParseNumbers splits a comma separated list, skipping blank segments.
// The whole list is rejected with *InvalidNumberError on the first bad segment.
func ParseNumbers(list string) ([]float64, error) {
	parts := strings.Split(list, ",")
	numbers := make([]float64, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		v, ok := parseNumber(segment)
		if !ok {
			return nil, &InvalidNumberError{Segment: segment}
		}
		numbers = append(numbers, v)
	}
	return numbers, nil
}

var decimalRe = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

// parseNumber accepts signed decimal literals with an optional exponent,
// unsigned 0x/0b/0o integers and the spelling Infinity with an optional sign.
// Decimals too large for float64 become infinities.
func parseNumber(s string) (float64, bool) {
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	if len(s) > 2 && s[0] == '0' {
		if base, ok := radixPrefixes[s[1]]; ok {
			return parseRadix(s[2:], base)
		}
	}
	if !decimalRe.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !isRangeErr(err) {
		return 0, false
	}
	return v, true
}

var radixPrefixes = map[byte]int{'x': 16, 'X': 16, 'b': 2, 'B': 2, 'o': 8, 'O': 8}

// parseRadix reads digits in base into a float64 so long literals round
// instead of overflowing.
func parseRadix(digits string, base int) (float64, bool) {
	var v float64
	for _, r := range digits {
		d, err := strconv.ParseUint(string(r), base, 8)
		if err != nil {
			return 0, false
		}
		v = v*float64(base) + float64(d)
	}
	return v, true
}

// isRangeErr reports overflow, where ParseFloat still yields ±Inf.
func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

func operatorOf(c byte) (Operator, bool) {
	switch op := Operator(c); op {
	case OpAdd, OpSub, OpMul, OpDiv:
		return op, true
	}
	return 0, false
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
