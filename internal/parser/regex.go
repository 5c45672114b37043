package parser

import (
	"regexp"
	"time"
)

// DateLayout is the normalized article date format.
const DateLayout = "2006-01-02"

var longDateRe = regexp.MustCompile(`(?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, \d{4}`)

// FindDate returns the first "Month D, YYYY" date mentioned in text,
// normalized to DateLayout.
func FindDate(text string) (string, bool) {
	m := longDateRe.FindString(text)
	if m == "" {
		return "", false
	}
	t, err := time.Parse("January 2, 2006", m)
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}
