// Package scanner turns the text nodes of a sign up page into slot identifiers.
//
// A slot identifier is "<date>-<time>", where the date is the most recent text node that
// contained a DD/MM/YYYY date and the time is the text node that contained an H:MM time.
package scanner

import (
	"regexp"
	"slices"
	"strings"
)

var (
	// `.` does not cross newlines and `$` is the end of the text, so a date followed by a
	// newline is not a date label.
	dateRegex = regexp.MustCompile(`\d{2}/\d{2}/\d{4}.*$`)
	timeRegex = regexp.MustCompile(`\d+:\d{2}.*$`)
)

var nbspReplacer = strings.NewReplacer("&nbsp;", "", "\u00a0", "")

// state is carried from one text node to the next.
type state struct {
	lastDate string
	hasDate  bool
	slots    []string
}

func (s state) step(text string) state {
	if date := dateRegex.FindString(text); date != "" {
		s.lastDate = strings.TrimSpace(date)
		s.hasDate = true
	}

	match := timeRegex.FindString(text)
	if match == "" || !s.hasDate {
		return s
	}

	candidate := s.lastDate + "-" + strings.TrimSpace(nbspReplacer.Replace(match))
	// only consecutive repeats are dropped, a repeat with another slot in between survives.
	if len(s.slots) > 0 && s.slots[len(s.slots)-1] == candidate {
		return s
	}
	s.slots = append(s.slots, candidate)
	return s
}

// Scan extracts the sorted slot identifiers from the given text nodes, which must be in
// document order.
//
// A time seen before any date is dropped. Only adjacent duplicates are suppressed, so the
// result may contain the same identifier twice if the page lists it twice with another slot
// in between.
func Scan(texts []string) []string {
	s := state{slots: []string{}}
	for _, text := range texts {
		s = s.step(text)
	}
	slices.Sort(s.slots)
	return s.slots
}
