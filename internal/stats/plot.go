package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series is a named curve. When Ceil is above Floor the curve is drawn on
// that fixed range; otherwise it is scaled to its own min and max.
type Series struct {
	Name   string
	Unit   string
	Values []float64
	Floor  float64
	Ceil   float64
}

func (s Series) fixed() bool { return s.Ceil > s.Floor }

type valueRange struct {
	lo, hi float64
}

type dashPattern struct {
	name   string
	period int
	on     int
}

const (
	defaultPlotHeight = 8
	minPlotWidth      = 10
	axisTop           = "top"
	axisMid           = "mid"
	axisBottom        = "low"
	axisSeparator     = " │ "
	rangeNote         = "Each curve uses its own range, listed below."
	ansiReset         = "\x1b[0m"
	fallbackTermWidth = 80
)

var dashPatterns = []dashPattern{
	{name: "solid", period: 1, on: 1},
	{name: "dashed", period: 6, on: 3},
	{name: "dotted", period: 4, on: 1},
	{name: "dashdot", period: 8, on: 3},
}

var curveColors = []string{
	"\x1b[36m",
	"\x1b[35m",
	"\x1b[33m",
	"\x1b[32m",
	"\x1b[34m",
}

// PlotSeries renders curves as a braille chart. Color is used only when w is
// a terminal.
func PlotSeries(w io.Writer, title string, series []Series, width, height int) error {
	return plotSeries(w, title, series, width, height, false)
}

// PlotSeriesWithColor is PlotSeries with color forced on, unless NO_COLOR is set.
func PlotSeriesWithColor(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	return plotSeries(w, title, series, width, height, forceColor)
}

func plotSeries(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	series = nonEmpty(series)
	if len(series) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	layers := make([]*brailleCanvas, len(series))
	ranges := make([]valueRange, len(series))
	for i, s := range series {
		values := resample(s.Values, width)
		ranges[i] = rangeOf(s, values)
		layers[i] = newBrailleCanvas(width, height)
		layers[i].trace(values, ranges[i], dashPatterns[i%len(dashPatterns)])
	}

	useColor := shouldUseColor(w, forceColor)
	var out strings.Builder
	if title != "" {
		out.WriteString(title + "\n")
	}
	out.WriteString(rangeNote + "\n")
	for i, s := range series {
		fmt.Fprintf(&out, "%s: %s..%s\n", s.Name, formatValue(ranges[i].lo, s.Unit), formatValue(ranges[i].hi, s.Unit))
	}
	labels := axisLabels(height)
	labelWidth := runewidth.StringWidth(axisBottom)
	for y := 0; y < height; y++ {
		out.WriteString(runewidth.FillLeft(labels[y], labelWidth))
		out.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			mask, owner := mergeLayers(layers, x, y)
			ch := rune(0x2800 + int(mask))
			if useColor && owner >= 0 {
				out.WriteString(curveColors[owner%len(curveColors)])
				out.WriteRune(ch)
				out.WriteString(ansiReset)
				continue
			}
			out.WriteRune(ch)
		}
		out.WriteString("\n")
	}
	out.WriteString(legend(series, useColor) + "\n\n")
	_, err := io.WriteString(w, out.String())
	return err
}

// PlotWidthFor returns the chart width that fits a terminal of totalWidth
// columns next to the axis labels.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	width := totalWidth - runewidth.StringWidth(axisBottom) - runewidth.StringWidth(axisSeparator)
	if width < minPlotWidth {
		return minPlotWidth
	}
	return width
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackTermWidth
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func nonEmpty(series []Series) []Series {
	out := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func rangeOf(s Series, values []float64) valueRange {
	if s.fixed() {
		return valueRange{lo: s.Floor, hi: s.Ceil}
	}
	r := valueRange{lo: math.Inf(1), hi: math.Inf(-1)}
	for _, v := range values {
		r.lo = math.Min(r.lo, v)
		r.hi = math.Max(r.hi, v)
	}
	if math.Abs(r.hi-r.lo) < 1e-9 {
		r.lo--
		r.hi++
	}
	return r
}

func formatValue(v float64, unit string) string {
	if unit == "%" {
		return fmt.Sprintf("%.0f%%", v)
	}
	if unit == "" {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}

func axisLabels(height int) []string {
	labels := make([]string, height)
	if height == 0 {
		return labels
	}
	labels[0] = axisTop
	if height > 2 {
		labels[height/2] = axisMid
	}
	if height > 1 {
		labels[height-1] = axisBottom
	}
	return labels
}

func legend(series []Series, useColor bool) string {
	parts := make([]string, 0, len(series))
	for i, s := range series {
		label := fmt.Sprintf("⠁ %s (%s)", s.Name, dashPatterns[i%len(dashPatterns)].name)
		if useColor {
			label = curveColors[i%len(curveColors)] + label + ansiReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

func (p dashPattern) draws(x int) bool {
	if p.period <= 1 {
		return true
	}
	if x < 0 {
		x = -x
	}
	return x%p.period < p.on
}

// resample stretches or averages values so there is one sample per column.
func resample(values []float64, width int) []float64 {
	out := make([]float64, width)
	n := len(values)
	switch {
	case n == width:
		copy(out, values)
	case n > width:
		for i := range out {
			start := i * n / width
			end := (i + 1) * n / width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	case n == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		for i := range out {
			pos := float64(i) * float64(n-1) / float64(width-1)
			idx := int(pos)
			if idx >= n-1 {
				out[i] = values[n-1]
				continue
			}
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

// brailleCanvas holds one curve at 2x4 dots per cell.
type brailleCanvas struct {
	cells [][]uint8
}

func newBrailleCanvas(width, height int) *brailleCanvas {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	return &brailleCanvas{cells: cells}
}

func (c *brailleCanvas) dotRows() int { return len(c.cells) * 4 }

func (c *brailleCanvas) trace(values []float64, r valueRange, dash dashPattern) {
	rows := c.dotRows()
	prevX, prevY := -1, -1
	for i, v := range values {
		pos := (v - r.lo) / (r.hi - r.lo)
		y := int(math.Round((1 - pos) * float64(rows-1)))
		y = max(0, min(rows-1, y))
		x := i * 2
		if prevX < 0 {
			if dash.draws(x) {
				c.set(x, y)
			}
		} else {
			c.line(prevX, prevY, x, y, dash)
		}
		prevX, prevY = x, y
	}
}

// line draws a Bresenham segment between two dots.
func (c *brailleCanvas) line(x0, y0, x1, y1 int, dash dashPattern) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if dash.draws(x0) {
			c.set(x0, y0)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Dot bits within a braille cell, indexed by [row][column].
var brailleBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

func (c *brailleCanvas) set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	row, col := y/4, x/2
	if row >= len(c.cells) || col >= len(c.cells[row]) {
		return
	}
	c.cells[row][col] |= brailleBits[y%4][x%2]
}

// mergeLayers ORs the dots of every curve and reports the first curve that
// owns the cell, for coloring.
func mergeLayers(layers []*brailleCanvas, x, y int) (uint8, int) {
	var mask uint8
	owner := -1
	for i, layer := range layers {
		bits := layer.cells[y][x]
		if bits == 0 {
			continue
		}
		if owner < 0 {
			owner = i
		}
		mask |= bits
	}
	return mask, owner
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
