package receipt

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Field identifies a transaction field for error reporting.
type Field string

const (
	FieldDescription       Field = "description"
	FieldAmount            Field = "amount"
	FieldDateTime          Field = "date_time"
	FieldCard              Field = "card"
	FieldTransactionNumber Field = "transaction_number"
)

// findDescription returns the merchant name. Below a "Purchase" header it
// skips recognition artifacts, bare numbers and the signed amount line;
// without the header it takes the first capitalized line that is not chrome.
func findDescription(lines []string) (string, bool) {
	if i := indexOf(lines, func(l string) bool { return containsFold(l, "purchase") }); i >= 0 {
		for _, l := range lines[i+1:] {
			if len(l) <= 3 || lowerLetterRE.MatchString(l) || artifactLeadRE.MatchString(l) ||
				bareIntRE.MatchString(l) || signedAmountRE.MatchString(l) {
				continue
			}
			if upperRE.MatchString(l) {
				return l, true
			}
		}
	}
	for _, l := range lines {
		if len(l) <= 3 || !upperRE.MatchString(l) || timePrefixRE.MatchString(l) {
			continue
		}
		if containsFold(l, "purchase") || containsFold(l, "card") || containsFold(l, "processing") {
			continue
		}
		return l, true
	}
	return "", false
}

// findAmount prefers a negative amount followed by a currency symbol and
// falls back to an unsigned one. Each pass only looks at the first match
// on every line; a zero magnitude does not count.
func findAmount(lines []string) (amount, symbol string, ok bool) {
	for _, re := range []*regexp.Regexp{negativeAmountRE, positiveAmountRE} {
		for _, l := range lines {
			if isChromeLine(l) {
				continue
			}
			m := re.FindStringSubmatch(l)
			if m == nil {
				continue
			}
			amt := normalizeAmount(m[1])
			sym := m[2]
			if amt == "" || !validSymbol(sym) {
				continue
			}
			if d, err := decimal.NewFromString(amt); err != nil || !d.IsPositive() {
				continue
			}
			return amt, sym, true
		}
	}
	return "", "", false
}

// normalizeAmount drops grouping spaces and the sign, and uses '.' as decimal point.
func normalizeAmount(s string) string {
	s = strings.Join(strings.Fields(s), "")
	s = strings.TrimLeft(s, "-")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "." {
		return ""
	}
	return s
}

func validSymbol(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 1 || n > 3 {
		return false
	}
	return !strings.ContainsAny(s[:1], ".,")
}

// findDateLine returns the raw date text: the line after "Date and time"
// or, failing that, the first line shaped like "09 november 2025 15:37:39".
func findDateLine(lines []string) (string, bool) {
	i := indexOf(lines, func(l string) bool { return containsFold(l, "date and time") })
	if l, ok := next(lines, i); ok {
		return l, true
	}
	for _, l := range lines {
		if m := dateLineRE.FindString(l); m != "" {
			return m, true
		}
	}
	return "", false
}

const dateLayout = "2 January 2006 15:04:05"

var (
	possessiveRE   = regexp.MustCompile(`['’]s\b`)
	leadingOhRE    = regexp.MustCompile(`^O`)
	leadingZerosRE = regexp.MustCompile(`^0+(\d{2})`)
)

// cleanDate repairs the usual recognition damage on the date line.
func cleanDate(s string) string {
	s = possessiveRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = leadingOhRE.ReplaceAllString(s, "0")
	s = leadingZerosRE.ReplaceAllString(s, "$1")
	return strings.Join(strings.Fields(s), " ")
}

// parseDate interprets the cleaned text as wall-clock time in loc.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	cleaned := cleanDate(raw)
	t, err := time.ParseInLocation(dateLayout, cleaned, loc)
	if err != nil {
		return time.Time{}, &DateParseError{Raw: cleaned, Err: err}
	}
	return t, nil
}

func findCard(lines []string) (string, bool) {
	i := indexOf(lines, func(l string) bool { return strings.EqualFold(l, "from") })
	if l, ok := next(lines, i); ok {
		return l, true
	}
	if i := indexOf(lines, func(l string) bool { return containsFold(l, "card") }); i >= 0 {
		return lines[i], true
	}
	return "", false
}

func findTransactionNumber(lines []string) (string, bool) {
	i := indexOf(lines, func(l string) bool {
		return containsFold(l, "transaction n") || strings.Contains(l, "Transaction №")
	})
	if l, ok := next(lines, i); ok {
		if d := strings.ReplaceAll(l, " ", ""); bareIntRE.MatchString(d) {
			return d, true
		}
	}
	for _, l := range lines {
		if m := digitRunRE.FindString(l); m != "" {
			return m, true
		}
	}
	return "", false
}

// findForeignAmount looks up to three lines below "Transaction amount".
func findForeignAmount(lines []string) (string, bool) {
	i := indexOf(lines, func(l string) bool { return containsFold(l, "transaction amount") })
	if i < 0 {
		return "", false
	}
	for j := i + 1; j <= i+3 && j < len(lines); j++ {
		if m := numberRE.FindString(lines[j]); m != "" {
			return strings.ReplaceAll(m, ",", "."), true
		}
	}
	return "", false
}

func findMCC(lines []string) (string, bool) {
	for i, l := range lines {
		if !mccLabelRE.MatchString(l) {
			continue
		}
		if m := mccInlineRE.FindStringSubmatch(l); m != nil {
			return m[1], true
		}
		if n, ok := next(lines, i); ok && mccValueRE.MatchString(n) {
			return n, true
		}
	}
	return "", false
}
