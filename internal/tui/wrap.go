package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/pitchcoach/internal/matcher"
	"github.com/verte-zerg/pitchcoach/internal/session"
)

type chip struct {
	s     string
	width int
}

func buildChips(keywords []session.KeywordView) []chip {
	out := make([]chip, 0, len(keywords))
	for _, k := range keywords {
		label := k.Keyword
		if k.Flagged {
			label = "*" + label
		}
		style := pendingStyle
		switch k.Status {
		case matcher.StatusNext:
			style = nextStyle
		case matcher.StatusInOrder:
			style = inOrderStyle
		case matcher.StatusOutOfOrder:
			style = outOfOrderStyle
		}
		text := "[" + label + "]"
		out = append(out, chip{
			s:     style.Render(text),
			width: runewidth.StringWidth(text),
		})
	}
	return out
}

// wrapChips lays chips out left to right, one space apart, breaking lines
// before a chip that would overflow width. A chip wider than width gets a
// line of its own.
func wrapChips(chips []chip, width int) string {
	if len(chips) == 0 {
		return ""
	}
	var out strings.Builder
	lineWidth := 0
	for i, c := range chips {
		if i > 0 {
			if width > 0 && lineWidth+1+c.width > width {
				out.WriteRune('\n')
				lineWidth = 0
			} else {
				out.WriteRune(' ')
				lineWidth++
			}
		}
		out.WriteString(c.s)
		lineWidth += c.width
	}
	return out.String()
}

// truncateLine cuts s to at most width cells, marking the cut with "…".
func truncateLine(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
