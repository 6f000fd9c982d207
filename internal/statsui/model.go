// Package statsui provides the Bubble Tea practice history interface.
package statsui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/stats"
)

const (
	tabOverview = iota
	tabKeywords
	tabKeywordCurves
)

const (
	plotHeight     = 8
	defaultWidth   = 80
	missedTop      = 5
	curvesSelected = 5
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle  = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// Source is the part of the store the history view reads.
type Source interface {
	stats.HistorySource
	KeywordHistory(ctx context.Context, sessionIDs, keywords []string) (map[string]map[string]model.KeywordOutcome, error)
}

// Model implements the Bubble Tea history UI.
type Model struct {
	ctx context.Context
	src Source
	cfg model.HistoryConfig

	report   stats.Report
	loadErr  string
	curveErr string

	tabs      []string
	activeTab int
	viewports []viewport.Model
	keywords  table.Model

	width  int
	height int

	filter filterForm
	picker keywordPicker

	selected       []string
	selectedCustom bool
	outcomes       map[string]map[string]model.KeywordOutcome
}

// filterForm edits the history filters in place of the body.
type filterForm struct {
	active bool
	inputs []textinput.Model
	focus  int
	err    string
}

// keywordPicker is the modal that chooses which keywords get curves.
type keywordPicker struct {
	active bool
	input  textinput.Model
}

// NewModel loads the report for cfg and builds the history UI.
func NewModel(ctx context.Context, src Source, cfg model.HistoryConfig) *Model {
	m := &Model{
		ctx:  ctx,
		src:  src,
		cfg:  cfg,
		tabs: []string{"Overview", "Keywords", "Keyword Curves"},
	}
	m.filter.inputs = []textinput.Model{
		newInput("Pitch: "),
		newInput("Since (YYYY-MM-DD): "),
		newInput("Last: "),
		newInput("Curve window: "),
	}
	m.picker.input = newInput("Keywords: ")
	m.picker.input.Placeholder = "market size, team, ask"
	m.keywords = newKeywordTable()
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderTabs()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filter.active {
			return m.updateFilter(msg)
		}
		if m.picker.active {
			return m.updatePicker(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m *Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h":
		m.switchTab(-1)
		return m, tea.ClearScreen
	case "right", "l":
		m.switchTab(1)
		return m, tea.ClearScreen
	case "=":
		m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
		m.reload()
		return m, nil
	case "-":
		m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
		m.reload()
		return m, nil
	case "/":
		return m, m.openFilter()
	case "enter":
		if m.activeTab == tabKeywordCurves {
			return m, m.openPicker()
		}
		return m, nil
	case "g", "home":
		if m.activeTab == tabKeywords {
			m.keywords.GotoTop()
		} else {
			m.viewports[m.activeTab].GotoTop()
		}
		return m, nil
	case "G", "end":
		if m.activeTab == tabKeywords {
			m.keywords.GotoBottom()
		} else {
			m.viewports[m.activeTab].GotoBottom()
		}
		return m, nil
	}
	var cmd tea.Cmd
	if m.activeTab == tabKeywords {
		m.keywords, cmd = m.keywords.Update(msg)
		return m, cmd
	}
	m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.picker.active {
		return fitLines(m.renderPicker(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	return strings.Join([]string{
		fitLines(m.renderHeader(), m.width, headerHeight),
		fitLines(m.renderBody(bodyHeight), m.width, bodyHeight),
		fitLines(m.renderFooter(), m.width, footerHeight),
	}, "\n")
}

// Config returns the filters currently applied.
func (m *Model) Config() model.HistoryConfig {
	return m.cfg
}

// Selected returns the keywords shown on the curves tab.
func (m *Model) Selected() []string {
	return append([]string(nil), m.selected...)
}

func newInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) layoutHeights() (header, body, footer int) {
	header = max(1, lipgloss.Height(activeNavStyle.Render("X"))) + 1
	footer = 1
	if !m.filter.active && m.loadErr != "" {
		footer++
	}
	body = max(1, m.height-header-footer)
	return header, body, footer
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.keywords.SetWidth(m.width)
	m.fitTableHeight(bodyHeight)
	for i := range m.filter.inputs {
		m.filter.inputs[i].Width = max(10, m.width-lipgloss.Width(m.filter.inputs[i].Prompt)-2)
	}
	m.picker.input.Width = max(10, modalInnerWidth(m.width)-lipgloss.Width(m.picker.input.Prompt))
}

// fitTableHeight sizes the table so its rendered view fills the body.
func (m *Model) fitTableHeight(bodyHeight int) {
	target := max(1, bodyHeight)
	m.keywords.SetHeight(max(1, target-1))
	for range 2 {
		diff := target - lipgloss.Height(m.keywords.View())
		if diff == 0 {
			return
		}
		m.keywords.SetHeight(max(1, m.keywords.Height()+diff))
	}
}

func (m *Model) switchTab(delta int) {
	m.activeTab = (m.activeTab + delta + len(m.tabs)) % len(m.tabs)
	if m.activeTab == tabKeywords {
		m.keywords.Focus()
	} else {
		m.keywords.Blur()
	}
}

func (m *Model) renderHeader() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		style := inactiveNavStyle
		if i == m.activeTab {
			style = activeNavStyle
		}
		parts = append(parts, style.Render(tab))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...) + "\n" + mutedStyle.Render(truncateLine(m.filterSummary(), m.width))
}

func (m *Model) filterSummary() string {
	pitch := m.cfg.PitchID
	if pitch == "" {
		pitch = "any"
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	return fmt.Sprintf("Filters: pitch=%s  since=%s  last=%s  window=%d", pitch, since, last, m.cfg.CurveWindow)
}

func (m *Model) renderFooter() string {
	if m.filter.active {
		return mutedStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	help := "Nav: left/right  Scroll: up/down  Window: -/=  Filters: /  Quit: q"
	if m.activeTab == tabKeywordCurves {
		help = "Nav: left/right  Pick keywords: enter  Window: -/=  Filters: /  Quit: q"
	}
	help = mutedStyle.Render(help)
	if m.loadErr != "" {
		return help + "\n" + errorStyle.Render(m.loadErr)
	}
	return help
}

func (m *Model) renderBody(height int) string {
	if m.filter.active {
		lines := []string{"Filters (enter to apply, esc to cancel)"}
		for _, input := range m.filter.inputs {
			lines = append(lines, input.View())
		}
		if m.filter.err != "" {
			lines = append(lines, errorStyle.Render(m.filter.err))
		}
		return strings.Join(lines, "\n")
	}
	if m.activeTab == tabKeywords {
		switch {
		case len(m.report.Sessions) == 0:
			return "No sessions found."
		case len(m.report.KeywordsAll) == 0:
			return "No keyword stats found."
		}
		return tableStyle.Render(m.keywords.View())
	}
	return m.viewports[m.activeTab].View()
}

func (m *Model) reload() {
	report, err := stats.BuildReport(m.ctx, m.src, m.cfg)
	if err != nil {
		m.loadErr = fmt.Sprintf("failed to load history: %v", err)
		m.report = stats.Report{}
	} else {
		m.loadErr = ""
		m.report = report
	}
	if !m.selectedCustom {
		m.selected = defaultSelection(m.report)
	}
	m.loadOutcomes()
	m.keywords.SetRows(keywordRows(m.report.KeywordsAll))
	m.keywords.GotoTop()
	m.resize()
	m.renderTabs()
}

func (m *Model) loadOutcomes() {
	m.curveErr = ""
	m.outcomes = nil
	if len(m.report.Sessions) == 0 || len(m.selected) == 0 {
		return
	}
	ids := make([]string, len(m.report.Sessions))
	for i, s := range m.report.Sessions {
		ids[i] = s.SessionID
	}
	outcomes, err := m.src.KeywordHistory(m.ctx, ids, m.selected)
	if err != nil {
		m.curveErr = err.Error()
		return
	}
	m.outcomes = outcomes
}

func (m *Model) renderTabs() {
	if m.loadErr != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load history.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report, m.cfg.CurveWindow, width))
	m.viewports[tabKeywordCurves].SetContent(m.renderKeywordCurves(width))
}

func renderOverview(report stats.Report, window, width int) string {
	sessions := report.Sessions
	if len(sessions) == 0 {
		return "No sessions found."
	}
	sections := []string{renderCards(sessions, width)}
	if missed := stats.MissedKeywords(report.KeywordsWindow, missedTop); len(missed) > 0 {
		line := fmt.Sprintf("Most missed in the last %d sessions: %s", report.WindowSessions, strings.Join(missed, ", "))
		sections = append(sections, truncateLine(line, width))
	}
	var buf bytes.Buffer
	if err := stats.RenderCurvesWithSize(&buf, sessions, window, width, plotHeight, true); err != nil {
		sections = append(sections, fmt.Sprintf("Failed to render curves: %v", err))
	} else {
		sections = append(sections, strings.TrimRight(buf.String(), "\n"))
	}
	return strings.Join(sections, "\n\n")
}

func renderCards(sessions []model.SessionAggregate, width int) string {
	var totalPct, totalWPM, best float64
	seconds, perfect := 0, 0
	for _, s := range sessions {
		totalPct += s.Percentage
		totalWPM += s.PeakWPM
		seconds += s.PracticeSeconds
		best = max(best, s.Percentage)
		if stats.TierFor(s.Percentage) == stats.TierPerfect {
			perfect++
		}
	}
	count := float64(len(sessions))
	cards := []string{
		card("Sessions", strconv.Itoa(len(sessions))),
		card("Avg hit rate", fmt.Sprintf("%.1f%%", totalPct/count)),
		card("Best hit rate", fmt.Sprintf("%.1f%%", best)),
		card("Perfect runs", strconv.Itoa(perfect)),
		card("Avg peak WPM", fmt.Sprintf("%.1f", totalWPM/count)),
		card("Practice time", stats.FormatClock(seconds)),
	}
	if width < defaultWidth {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, cards[:3]...),
		lipgloss.JoinHorizontal(lipgloss.Top, cards[3:]...),
	)
}

func card(label, value string) string {
	return cardStyle.Render(cardTitleStyle.Render(label) + "\n" + cardValueStyle.Render(value))
}

func newKeywordTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Keyword", Width: 24},
			{Title: "Hit rate", Width: 9},
			{Title: "In order", Width: 9},
			{Title: "Spoken", Width: 7},
			{Title: "Sessions", Width: 9},
		}),
		table.WithHeight(1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		PaddingLeft(0)
	styles.Cell = styles.Cell.PaddingLeft(0)
	styles.Selected = styles.Cell.Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	t.SetStyles(styles)
	return t
}

// keywordRows lists aggregates most missed first.
func keywordRows(aggs []model.KeywordAggregate) []table.Row {
	sorted := stats.SortByHitRate(aggs)
	rows := make([]table.Row, 0, len(sorted))
	for _, agg := range sorted {
		rows = append(rows, table.Row{
			runewidth.Truncate(agg.Keyword, 24, "…"),
			fmt.Sprintf("%.1f%%", stats.HitRate(agg)*100),
			strconv.Itoa(agg.InOrder),
			strconv.Itoa(agg.Spoken),
			strconv.Itoa(agg.Sessions),
		})
	}
	return rows
}

func (m *Model) renderKeywordCurves(width int) string {
	switch {
	case len(m.report.Sessions) == 0:
		return "No sessions found."
	case m.curveErr != "":
		return "Failed to load keyword curves: " + m.curveErr
	case len(m.selected) == 0:
		return "No keywords selected. Press Enter to pick keywords."
	}
	var buf bytes.Buffer
	if err := stats.RenderKeywordCurvesWithSize(&buf, m.report.Sessions, m.outcomes, m.selected, m.cfg.CurveWindow, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render keyword curves: %v", err)
	}
	header := mutedStyle.Render("Keywords: " + strings.Join(m.selected, ", "))
	return strings.TrimRight(header+"\n"+buf.String(), "\n")
}

// defaultSelection prefers recently missed keywords, then the weakest overall.
func defaultSelection(report stats.Report) []string {
	if missed := stats.MissedKeywords(report.KeywordsWindow, curvesSelected); len(missed) > 0 {
		return missed
	}
	sorted := stats.SortByHitRate(report.KeywordsAll)
	out := make([]string, 0, curvesSelected)
	for i := 0; i < len(sorted) && i < curvesSelected; i++ {
		out = append(out, sorted[i].Keyword)
	}
	return out
}

func (m *Model) openFilter() tea.Cmd {
	m.filter.active = true
	m.filter.err = ""
	values := []string{m.cfg.PitchID, "", "", strconv.Itoa(m.cfg.CurveWindow)}
	if m.cfg.Since != nil {
		values[1] = m.cfg.Since.Format("2006-01-02")
	}
	if m.cfg.Last > 0 {
		values[2] = strconv.Itoa(m.cfg.Last)
	}
	for i, v := range values {
		m.filter.inputs[i].SetValue(v)
	}
	return m.focusFilter(0)
}

func (m *Model) focusFilter(idx int) tea.Cmd {
	count := len(m.filter.inputs)
	m.filter.focus = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.filter.inputs {
		if i == m.filter.focus {
			cmd = m.filter.inputs[i].Focus()
			continue
		}
		m.filter.inputs[i].Blur()
	}
	return cmd
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filter.active = false
		m.filter.err = ""
		return m, nil
	case tea.KeyEnter:
		cfg, err := m.parseFilter()
		if err != nil {
			m.filter.err = err.Error()
			return m, nil
		}
		m.cfg = cfg
		m.filter.active = false
		m.filter.err = ""
		m.reload()
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		return m, m.focusFilter(m.filter.focus + 1)
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.focusFilter(m.filter.focus - 1)
	}
	var cmd tea.Cmd
	m.filter.inputs[m.filter.focus], cmd = m.filter.inputs[m.filter.focus].Update(msg)
	return m, cmd
}

// parseFilter validates the form; the user id is never editable here.
func (m *Model) parseFilter() (model.HistoryConfig, error) {
	cfg := model.HistoryConfig{
		UserID:  m.cfg.UserID,
		PitchID: strings.TrimSpace(m.filter.inputs[0].Value()),
	}
	if raw := strings.TrimSpace(m.filter.inputs[1].Value()); raw != "" {
		since, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return cfg, errors.New("invalid since date (expected YYYY-MM-DD)")
		}
		cfg.Since = &since
	}
	if raw := strings.TrimSpace(m.filter.inputs[2].Value()); raw != "" {
		last, err := strconv.Atoi(raw)
		if err != nil || last < 0 {
			return cfg, errors.New("invalid last value (use 0 or a positive integer)")
		}
		cfg.Last = last
	}
	cfg.CurveWindow = m.cfg.CurveWindow
	if raw := strings.TrimSpace(m.filter.inputs[3].Value()); raw != "" {
		window, err := strconv.Atoi(raw)
		if err != nil || window < 1 {
			return cfg, errors.New("invalid curve window (use an integer >= 1)")
		}
		cfg.CurveWindow = window
	}
	return cfg, nil
}

func (m *Model) openPicker() tea.Cmd {
	m.picker.active = true
	m.picker.input.SetValue(strings.Join(m.selected, ", "))
	m.picker.input.CursorEnd()
	return m.picker.input.Focus()
}

func (m *Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.picker.active = false
		m.picker.input.Blur()
		return m, nil
	case tea.KeyEnter:
		m.picker.active = false
		m.picker.input.Blur()
		m.selected = parseKeywordList(m.picker.input.Value())
		m.selectedCustom = len(m.selected) > 0
		if !m.selectedCustom {
			m.selected = defaultSelection(m.report)
		}
		m.loadOutcomes()
		m.renderTabs()
		return m, nil
	}
	var cmd tea.Cmd
	m.picker.input, cmd = m.picker.input.Update(msg)
	return m, cmd
}

func (m *Model) renderPicker() string {
	body := strings.Join([]string{
		cardValueStyle.Render("Keyword Curves"),
		m.picker.input.View(),
		mutedStyle.Render("Separate keywords with commas. Empty restores the most missed."),
		mutedStyle.Render("Enter to apply / Esc to cancel"),
	}, "\n")
	box := modalStyle.Width(modalWidth(m.width)).Render(body)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// parseKeywordList splits on commas, dropping blanks and repeats.
func parseKeywordList(input string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(input, ",") {
		kw := strings.Join(strings.Fields(part), " ")
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}

// nextCurveWindow steps the window up to the next multiple of five.
func nextCurveWindow(n int) int {
	if n < 5 {
		return 5
	}
	return (n/5 + 1) * 5
}

// prevCurveWindow steps the window down to the previous multiple of five,
// bottoming out at one.
func prevCurveWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return n / 5 * 5
}

func modalWidth(width int) int {
	return max(40, min(width-4, 80))
}

func modalInnerWidth(width int) int {
	// Border and padding take six columns.
	return max(10, modalWidth(width)-6)
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		if pad := width - lipgloss.Width(line); pad > 0 {
			lines[i] = line + strings.Repeat(" ", pad)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
