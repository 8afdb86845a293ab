// Package ui contains the formatting helpers and the terminal abstraction
// used for operator output.
package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/fdl66/chongshan/internal/errors"

	"golang.org/x/text/width"
)

var byteUnits = []struct {
	shift uint
	name  string
}{
	{40, "TiB"},
	{30, "GiB"},
	{20, "MiB"},
	{10, "KiB"},
}

// FormatBytes formats c with a binary unit.
func FormatBytes(c uint64) string {
	for _, u := range byteUnits {
		if c >= 1<<u.shift {
			return fmt.Sprintf("%.3f %s", float64(c)/float64(uint64(1)<<u.shift), u.name)
		}
	}
	return fmt.Sprintf("%d B", c)
}

// FormatPercent formats numerator/denominator as a percentage, capped at 100.
// A zero denominator yields the empty string.
func FormatPercent(numerator, denominator uint64) string {
	if denominator == 0 {
		return ""
	}
	return fmt.Sprintf("%3.2f%%", min(100*float64(numerator)/float64(denominator), 100))
}

// FormatDuration formats d as M:SS, or H:MM:SS from one hour on.
func FormatDuration(d time.Duration) string {
	return FormatSeconds(uint64(d / time.Second))
}

// FormatSeconds formats sec like FormatDuration.
func FormatSeconds(sec uint64) string {
	h, m, s := sec/3600, sec/60%60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ParseBytes parses a size in bytes from s. It understands the suffixes
// B, K, M, G and T for powers of 1024.
func ParseBytes(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("expected size, got empty string")
	}

	num, shift := s, 0
	if i := strings.IndexRune("bkmgt", unicode.ToLower(rune(s[len(s)-1]))); i >= 0 {
		num, shift = s[:len(s)-1], 10*i
	}

	value, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, errors.Errorf("negative size %q", s)
	}
	if bits.Len64(uint64(value))+shift > 63 {
		return 0, errors.Errorf("size %q: %v", s, strconv.ErrRange)
	}
	return value << shift, nil
}

// ToJSONString encodes status as a single JSON line.
func ToJSONString(status interface{}) string {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(status); err != nil {
		panic(err)
	}
	return buf.String()
}

// DisplayWidth returns the number of terminal cells needed to display s.
func DisplayWidth(s string) int {
	w := 0
	for _, r := range s {
		w += displayRuneWidth(r)
	}
	return w
}

func displayRuneWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	case width.EastAsianNarrow, width.EastAsianHalfwidth, width.EastAsianAmbiguous, width.Neutral:
		return 1
	default:
		return 0
	}
}

// Quote quotes line if it contains control characters or invalid UTF-8, so
// it cannot mess up the terminal. File names in recipes are arbitrary bytes.
func Quote(line string) string {
	for _, r := range line {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return strconv.Quote(line)
		}
	}
	return line
}

// Truncate shortens s to at most w terminal cells. Wide and ambiguous runes
// count as two cells, so the result never overflows on East Asian terminals.
func Truncate(s string, w int) string {
	if len(s) < w {
		// no rune takes more cells than bytes
		return s
	}

	for i, r := range s {
		w -= truncateRuneWidth(r)
		if w < 0 {
			return s[:i]
		}
	}
	return s
}

func truncateRuneWidth(r rune) int {
	if r <= unicode.MaxASCII {
		return 1
	}
	switch width.LookupRune(r).Kind() {
	case width.Neutral, width.EastAsianNarrow:
		return 1
	default:
		return 2
	}
}
