// Package matcher detects prioritized keywords in finalized transcript text.
package matcher

import (
	"strings"
	"time"
)

// Status describes how a keyword stands within the current session.
type Status int

const (
	// StatusPending means the keyword has not been spoken and is not next.
	StatusPending Status = iota
	// StatusNext marks the keyword the speaker is expected to say next.
	StatusNext
	// StatusInOrder means the keyword was spoken at the expected position.
	StatusInOrder
	// StatusOutOfOrder means the keyword was spoken ahead of its turn.
	StatusOutOfOrder
)

func (s Status) String() string {
	switch s {
	case StatusNext:
		return "next"
	case StatusInOrder:
		return "in-order"
	case StatusOutOfOrder:
		return "out-of-order"
	default:
		return "pending"
	}
}

// Hit records the first time a keyword was detected.
type Hit struct {
	Index   int
	Keyword string
	At      time.Time
	InOrder bool
}

// Matcher tracks keyword hits for one practice session. It is not safe for
// concurrent use; fragments must be fed in delivery order.
type Matcher struct {
	active  []string
	lowered []string
	spoken  []Hit
	hitAt   map[int]int
	cursor  int
}

// New returns a Matcher over the active keyword list.
func New(active []string) *Matcher {
	m := &Matcher{
		active:  append([]string(nil), active...),
		lowered: make([]string, len(active)),
		hitAt:   make(map[int]int, len(active)),
	}
	for i, k := range active {
		m.lowered[i] = strings.ToLower(strings.TrimSpace(k))
	}
	return m
}

// OnFragment matches a finalized fragment and returns the new hits in
// keyword-list order.
func (m *Matcher) OnFragment(text string, at time.Time) []Hit {
	fragment := strings.ToLower(text)
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	var hits []Hit
	for i, k := range m.lowered {
		if k == "" || m.IsSpoken(i) {
			continue
		}
		if !strings.Contains(fragment, k) {
			continue
		}
		hit := Hit{Index: i, Keyword: m.active[i], At: at, InOrder: i == m.cursor}
		m.hitAt[i] = len(m.spoken)
		m.spoken = append(m.spoken, hit)
		if hit.InOrder {
			m.advance()
		}
		hits = append(hits, hit)
	}
	return hits
}

// advance moves the cursor past the in-order hit and any keywords that were
// already spoken out of order.
func (m *Matcher) advance() {
	m.cursor++
	for m.cursor < len(m.active) && m.IsSpoken(m.cursor) {
		m.cursor++
	}
}

// Active returns the keyword list being matched.
func (m *Matcher) Active() []string {
	return append([]string(nil), m.active...)
}

// Spoken returns the hits in the order they were first detected.
func (m *Matcher) Spoken() []Hit {
	return append([]Hit(nil), m.spoken...)
}

// Cursor returns the index of the next expected keyword.
func (m *Matcher) Cursor() int {
	return m.cursor
}

// IsSpoken reports whether the keyword at index i has been hit.
func (m *Matcher) IsSpoken(i int) bool {
	_, ok := m.hitAt[i]
	return ok
}

// HitCount returns the number of distinct keywords spoken.
func (m *Matcher) HitCount() int {
	return len(m.spoken)
}

// InOrderCount returns the number of keywords spoken at their expected turn.
func (m *Matcher) InOrderCount() int {
	n := 0
	for _, h := range m.spoken {
		if h.InOrder {
			n++
		}
	}
	return n
}

// Status returns the state of the keyword at index i.
func (m *Matcher) Status(i int) Status {
	if pos, ok := m.hitAt[i]; ok {
		if m.spoken[pos].InOrder {
			return StatusInOrder
		}
		return StatusOutOfOrder
	}
	if i == m.cursor {
		return StatusNext
	}
	return StatusPending
}

// HitFor returns the hit recorded for index i.
func (m *Matcher) HitFor(i int) (Hit, bool) {
	pos, ok := m.hitAt[i]
	if !ok {
		return Hit{}, false
	}
	return m.spoken[pos], true
}
