package evaluation

import (
	"regexp"
	"strconv"
	"strings"
)

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// shortLineLimit bounds the fallback pass to lines like "4", "4/5" or "**3**".
const shortLineLimit = 10

// ExtractScore finds the judge's score in free text. Lines starting with a
// "Score:" marker are tried first; failing that, short lines containing
// digits. The first number in [0, maxScore] wins. ok is false when nothing in
// range was found.
func ExtractScore(text string, maxScore float64) (score float64, ok bool) {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	for _, raw := range lines {
		line := trimMarkup(raw)
		if len(line) < len("score:") || !strings.EqualFold(line[:len("score:")], "score:") {
			continue
		}
		if v, found := firstNumber(line[len("score:"):]); found && inRange(v, maxScore) {
			return v, true
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if len(line) >= shortLineLimit || !strings.ContainsAny(line, "0123456789") {
			continue
		}
		if v, found := firstNumber(line); found && inRange(v, maxScore) {
			return v, true
		}
	}
	return 0, false
}

func trimMarkup(line string) string {
	return strings.TrimLeft(strings.TrimSpace(line), "*#_->` ")
}

func firstNumber(s string) (float64, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func inRange(v, maxScore float64) bool {
	return v >= 0 && v <= maxScore
}
