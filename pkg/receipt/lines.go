package receipt

import (
	"regexp"
	"strings"
)

// SplitLines splits OCR output into trimmed, non-empty lines.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

var (
	timePrefixRE     = regexp.MustCompile(`^\d{2}:\d{2}`)
	bareIntRE        = regexp.MustCompile(`^\d+$`)
	lowerLetterRE    = regexp.MustCompile(`^[a-z]$`)
	artifactLeadRE   = regexp.MustCompile(`^[©<>()8]`)
	signedAmountRE   = regexp.MustCompile(`^-.*[₸$€£¥₽]`)
	upperRE          = regexp.MustCompile(`[A-Z]`)
	negativeAmountRE = regexp.MustCompile(`(-[\d\s]+[,.]?\d*)\s*([^\d\s:]+)`)
	positiveAmountRE = regexp.MustCompile(`(\d+[,.]?\d*)\s*([^\d\s:]+)`)
	dateLineRE       = regexp.MustCompile(`[O\d]{2}\s+\w+.*\d{4}\s+\d{2}:\d{2}:\d{2}`)
	digitRunRE       = regexp.MustCompile(`\d{10,}`)
	numberRE         = regexp.MustCompile(`\d+[.,]?\d*`)
	mccInlineRE      = regexp.MustCompile(`(?i)\bMCC\b\D{0,5}(\d{3,4})\b`)
	mccLabelRE       = regexp.MustCompile(`(?i)\bMCC\b`)
	mccValueRE       = regexp.MustCompile(`^\d{3,4}$`)
)

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// indexOf returns the first line index satisfying pred, or -1.
func indexOf(lines []string, pred func(string) bool) int {
	for i, l := range lines {
		if pred(l) {
			return i
		}
	}
	return -1
}

// next returns the line after i if any.
func next(lines []string, i int) (string, bool) {
	if i < 0 || i+1 >= len(lines) {
		return "", false
	}
	return lines[i+1], true
}

// isChromeLine reports lines that never carry the amount: the status-bar
// clock, the "Purchase" header and bare counters.
func isChromeLine(l string) bool {
	return timePrefixRE.MatchString(l) || containsFold(l, "purchase") || bareIntRE.MatchString(l)
}
