package codec

import (
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/roach88/queryvals/internal/kind"
)

const (
	// Seven fractional digits is the finest precision the target date
	// types hold. Markup trims trailing zeros, tokens keep all seven.
	markupDateTime       = "2006-01-02T15:04:05.9999999"
	markupDateTimeOffset = "2006-01-02T15:04:05.9999999Z07:00"
	tokenDateTime        = "2006-01-02T15:04:05.0000000"
	tokenDateTimeOffset  = "2006-01-02T15:04:05.0000000Z07:00"
)

func appendInt(dst []byte, v any) []byte {
	switch n := v.(type) {
	case uint8:
		return strconv.AppendUint(dst, uint64(n), 10)
	case int16:
		return strconv.AppendInt(dst, int64(n), 10)
	case int32:
		return strconv.AppendInt(dst, int64(n), 10)
	case int64:
		return strconv.AppendInt(dst, n, 10)
	}
	return dst
}

// appendDecimal truncates toward zero to scale digits, never rounding, so
// the engine's cast to decimal(38, scale) cannot round either.
func appendDecimal(dst []byte, d decimal.Decimal, scale int) []byte {
	return append(dst, d.Truncate(int32(scale)).String()...)
}

// appendFloat renders the shortest string that parses back to the same
// value. Infinities and NaN use the XML Schema literals.
func appendFloat(dst []byte, f float64, bits int) []byte {
	switch {
	case math.IsInf(f, 1):
		return append(dst, "INF"...)
	case math.IsInf(f, -1):
		return append(dst, "-INF"...)
	case math.IsNaN(f):
		return append(dst, "NaN"...)
	}
	return strconv.AppendFloat(dst, f, 'g', -1, bits)
}

// civilTime places an offset-free date/time on the UTC clock so it can be
// rendered with a time layout; no zone marker is ever printed for it. The
// zero value is written as kind.MinDateTime. Other invalid values have no
// text form the engine accepts.
func civilTime(dt civil.DateTime) (time.Time, error) {
	if dt == (civil.DateTime{}) {
		dt = kind.MinDateTime
	}
	if !dt.IsValid() {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDateTime, dt)
	}
	return checkYear(dt.In(time.UTC))
}

// checkYear bounds t to the years the engine's date types hold.
func checkYear(t time.Time) (time.Time, error) {
	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}, fmt.Errorf("%w: year %d out of range 1..9999", ErrInvalidDateTime, y)
	}
	return t, nil
}

// charText renders a Char value. Surrogate halves and values beyond
// U+10FFFF have no UTF-8 form and become '?'.
func charText(c kind.Rune) string {
	if !utf8.ValidRune(rune(c)) {
		return "?"
	}
	return string(rune(c))
}

func appendGuid(dst []byte, id uuid.UUID) []byte {
	return append(dst, id.String()...)
}

func floatBits(k kind.Kind) int {
	if k == kind.Single {
		return 32
	}
	return 64
}

func asFloat(v any) float64 {
	if f, ok := v.(float32); ok {
		return float64(f)
	}
	return v.(float64)
}
