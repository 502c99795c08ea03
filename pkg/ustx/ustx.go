// Package ustx converts between display units (STX) and the micro-unit
// integers carried on chain and in the event log. Conversions are exact
// for representable integers; sub-micro remainders always floor.
package ustx

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MicroPerUnit is the fixed-point scale: 1 STX = 1_000_000 micro-STX.
const MicroPerUnit = 1_000_000

const fracDigits = 6

var ErrInvalidAmount = errors.New("invalid amount")

// ToMicro parses a non-negative decimal display amount ("1.5") into
// micro-units. Digits beyond the sixth decimal place are floored away.
func ToMicro(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return 0, ErrInvalidAmount
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}

	whole, err := strconv.ParseUint(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	if len(fracPart) > fracDigits {
		fracPart = fracPart[:fracDigits] // floor, never round up
	}
	var frac uint64
	if fracPart != "" {
		frac, err = strconv.ParseUint(fracPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		for i := len(fracPart); i < fracDigits; i++ {
			frac *= 10
		}
	}

	if whole > (math.MaxUint64-frac)/MicroPerUnit {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}
	return whole*MicroPerUnit + frac, nil
}

// FromFloat converts a float display amount, flooring the product the
// same way the exact string path does. Accumulated float noise (e.g.
// 0.1+0.2) must land on the same integer as the exact computation, so
// the value is first rendered with the shortest decimal representation.
func FromFloat(f float64) (uint64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, ErrInvalidAmount
	}
	return ToMicro(strconv.FormatFloat(f, 'f', -1, 64))
}

// Format renders micro-units as a decimal string with the requested
// number of decimal places (rounded half-up past the sixth).
func Format(micro uint64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}

	whole := micro / MicroPerUnit
	frac := micro % MicroPerUnit

	if decimals >= fracDigits {
		s := fmt.Sprintf("%d.%06d", whole, frac)
		return s + strings.Repeat("0", decimals-fracDigits)
	}

	// Round the remainder half-up to the requested precision.
	scale := uint64(1)
	for i := 0; i < fracDigits-decimals; i++ {
		scale *= 10
	}
	rounded := (frac + scale/2) / scale

	limit := uint64(1)
	for i := 0; i < decimals; i++ {
		limit *= 10
	}
	if rounded >= limit {
		whole++
		rounded = 0
	}

	if decimals == 0 {
		return strconv.FormatUint(whole, 10)
	}
	return fmt.Sprintf("%d.%0*d", whole, decimals, rounded)
}
