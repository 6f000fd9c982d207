// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/pitchcoach/internal/i18n"
	"github.com/verte-zerg/pitchcoach/internal/keywords"
	"github.com/verte-zerg/pitchcoach/internal/model"
	"github.com/verte-zerg/pitchcoach/internal/session"
	"github.com/verte-zerg/pitchcoach/internal/stats"
)

const minTranscriptLines = 3

// Model implements the Bubble Tea practice UI over a session.
type Model struct {
	ctx     context.Context
	session *session.Session
	typed   *TypedTranscript
	catalog *i18n.Catalog
	changes <-chan struct{}

	input    textinput.Model
	viewport viewport.Model

	view     session.View
	pitch    model.PitchConfig
	loc      *i18n.Localizer
	selected int
	errMsg   string

	width  int
	height int

	closeErr error
}

var (
	pendingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	nextStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Underline(true)
	inOrderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	outOfOrderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	bannerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	alertStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	selectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

type changedMsg struct{}

// Notifier returns a change channel and a session OnChange hook feeding it.
// Notifications coalesce and the hook never blocks, so it is safe to call
// from inside Update.
func Notifier() (<-chan struct{}, func(session.View)) {
	ch := make(chan struct{}, 1)
	return ch, func(session.View) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

// NewModel constructs a practice TUI model. changes may be nil; the model then
// only refreshes after its own actions.
func NewModel(ctx context.Context, s *session.Session, typed *TypedTranscript, catalog *i18n.Catalog, changes <-chan struct{}) *Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 0
	m := &Model{
		ctx:      ctx,
		session:  s,
		typed:    typed,
		catalog:  catalog,
		changes:  changes,
		input:    input,
		viewport: viewport.New(0, minTranscriptLines),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	return waitForChange(m.changes)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.refresh()
		return m, nil
	case changedMsg:
		m.refresh()
		return m, waitForChange(m.changes)
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEsc:
		if m.view.EditMode {
			m.toggleEditMode()
			return m, nil
		}
		return m.quit()
	case tea.KeyCtrlR:
		return m, m.toggleRecording()
	case tea.KeyCtrlE:
		m.toggleEditMode()
		return m, nil
	}
	if m.view.EditMode {
		m.handleEditKey(msg)
		return m, nil
	}
	if m.view.State != session.StateRecording {
		return m, nil
	}
	if msg.Type == tea.KeyEnter {
		m.typed.Submit(m.input.Value())
		m.input.Reset()
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// quit closes the session, saving pending keyword edits, and exits.
func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.closeErr = m.session.Close(m.ctx)
	return m, tea.Quit
}

// Err returns the error from closing the session on quit, if any.
func (m *Model) Err() error {
	return m.closeErr
}

func (m *Model) toggleRecording() tea.Cmd {
	m.errMsg = ""
	defer m.refresh()
	if m.view.State == session.StateRecording {
		m.session.Stop(m.ctx)
		m.input.Blur()
		return nil
	}
	if err := m.session.Start(m.ctx); err != nil {
		m.errMsg = m.describeStartError(err)
		return nil
	}
	m.input.Reset()
	return m.input.Focus()
}

func (m *Model) describeStartError(err error) string {
	switch {
	case errors.Is(err, session.ErrUnsupported):
		return m.loc.T("banner_unsupported", nil)
	case errors.Is(err, session.ErrEditMode):
		return m.loc.T("banner_edit", nil)
	default:
		return err.Error()
	}
}

func (m *Model) toggleEditMode() {
	m.errMsg = ""
	if err := m.session.SetEditMode(m.ctx, !m.view.EditMode); err != nil {
		m.errMsg = err.Error()
	}
	m.refresh()
}

func (m *Model) handleEditKey(msg tea.KeyMsg) {
	n := len(m.view.AllKeywords)
	if n == 0 {
		return
	}
	m.errMsg = ""
	var err error
	switch msg.String() {
	case "up":
		if m.selected > 0 {
			m.selected--
		}
	case "down":
		if m.selected < n-1 {
			m.selected++
		}
	case " ":
		kw := m.view.AllKeywords[m.selected]
		err = m.session.Edit(func(p model.PitchConfig) (model.PitchConfig, error) {
			return keywords.ToggleFlag(p, kw)
		})
	case "J":
		if m.selected < n-1 {
			if err = m.moveSelected(m.selected + 1); err == nil {
				m.selected++
			}
		}
	case "K":
		if m.selected > 0 {
			if err = m.moveSelected(m.selected - 1); err == nil {
				m.selected--
			}
		}
	case "tab":
		err = m.session.Edit(func(p model.PitchConfig) (model.PitchConfig, error) {
			p.TargetMinutes = keywords.NextDuration(p.TargetMinutes)
			return p, nil
		})
	}
	if err != nil {
		m.errMsg = err.Error()
	}
	m.refresh()
}

func (m *Model) moveSelected(to int) error {
	from := m.selected
	return m.session.Edit(func(p model.PitchConfig) (model.PitchConfig, error) {
		return keywords.Move(p, from, to)
	})
}

func (m *Model) refresh() {
	m.view = m.session.View()
	m.pitch = m.session.Pitch()
	m.loc = m.catalog.For(m.view.Language)
	if m.selected >= len(m.view.AllKeywords) {
		m.selected = len(m.view.AllKeywords) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.viewport.SetContent(m.transcriptContent())
	m.viewport.GotoBottom()
}

func (m *Model) updateLayout() {
	width := m.contentWidth()
	m.viewport.Width = width
	m.viewport.Height = minTranscriptLines
	if m.height > 0 && m.height/3 > minTranscriptLines {
		m.viewport.Height = m.height / 3
	}
	promptWidth := lipgloss.Width(m.input.Prompt)
	if width-promptWidth-1 > 10 {
		m.input.Width = width - promptWidth - 1
	}
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 0
	}
	width := int(float64(m.width) * 0.70)
	if width < 1 {
		width = 1
	}
	return width
}

func (m *Model) transcriptContent() string {
	text := m.view.Transcript
	if m.view.Interim != "" {
		if text != "" {
			text += " "
		}
		text += mutedStyle.Render(m.view.Interim)
	}
	if width := m.contentWidth(); width > 0 {
		return lipgloss.NewStyle().Width(width).Render(text)
	}
	return text
}

// View implements tea.Model.
func (m *Model) View() string {
	sections := []string{m.renderHeader()}
	if banners := m.renderBanners(); banners != "" {
		sections = append(sections, banners)
	}
	if m.view.EditMode {
		sections = append(sections, m.renderEditList())
	} else {
		sections = append(sections, wrapChips(buildChips(m.view.Keywords), m.contentWidth()))
		if next := m.nextKeyword(); next != "" {
			sections = append(sections, mutedStyle.Render(m.loc.T("next_keyword", map[string]any{"Keyword": next})))
		}
	}
	if alerts := m.renderAlerts(); alerts != "" {
		sections = append(sections, alerts)
	}
	if result := m.renderResult(); result != "" {
		sections = append(sections, result)
	}
	if m.view.State == session.StateRecording {
		sections = append(sections, m.viewport.View(), m.input.View())
	}
	if m.errMsg != "" {
		sections = append(sections, errorStyle.Render(m.errMsg))
	}
	content := strings.Join(sections, "\n\n")
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + footer
	}
	content = lipgloss.NewStyle().Width(m.contentWidth()).Render(content)
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderHeader() string {
	clock := stats.FormatClock(m.view.Elapsed)
	if m.view.TargetMinutes > 0 {
		clock += " / " + stats.FormatClock(m.view.TargetMinutes*60)
	}
	return titleStyle.Render(m.view.Title) + "  " + mutedStyle.Render(m.loc.State(m.view.State.String())+" · "+clock)
}

func (m *Model) renderBanners() string {
	var lines []string
	if !m.view.Supported {
		lines = append(lines, m.loc.T("banner_unsupported", nil))
	}
	if m.view.Degraded {
		lines = append(lines, m.loc.T("banner_degraded", nil))
	}
	if m.view.State == session.StateRecording && !m.view.AudioAvailable {
		lines = append(lines, m.loc.T("banner_no_mic", nil))
	}
	if m.view.EditMode {
		lines = append(lines, m.loc.T("banner_edit", nil))
	}
	if len(lines) == 0 {
		return ""
	}
	return bannerStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderEditList() string {
	lines := make([]string, 0, len(m.view.AllKeywords)+1)
	lines = append(lines, mutedStyle.Render(fmt.Sprintf("%d min", m.view.TargetMinutes)))
	for i, kw := range m.view.AllKeywords {
		flag := " "
		if m.pitch.IsFlagged(kw) {
			flag = "*"
		}
		line := fmt.Sprintf("%s %s", flag, kw)
		if i == m.selected {
			lines = append(lines, selectedStyle.Render("> "+line))
			continue
		}
		lines = append(lines, pendingStyle.Render("  "+line))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) nextKeyword() string {
	if m.view.State != session.StateRecording {
		return ""
	}
	if m.view.Cursor < 0 || m.view.Cursor >= len(m.view.Keywords) {
		return ""
	}
	return m.view.Keywords[m.view.Cursor].Keyword
}

func (m *Model) renderAlerts() string {
	if m.view.State != session.StateRecording {
		return ""
	}
	alerts := m.view.Metrics.Alerts
	var labels []string
	if alerts.TooFast {
		labels = append(labels, m.loc.Alert("too_fast"))
	}
	if alerts.NoPauses {
		labels = append(labels, m.loc.Alert("no_pauses"))
	}
	if alerts.StressedVoice {
		labels = append(labels, m.loc.Alert("stressed_voice"))
	}
	if len(labels) == 0 {
		return ""
	}
	return alertStyle.Render(strings.Join(labels, " · "))
}

func (m *Model) renderResult() string {
	r := m.view.Result
	if r == nil {
		return ""
	}
	summary := m.loc.T("result_summary", map[string]any{
		"Hits":       r.Hits,
		"Total":      r.Total,
		"Percentage": fmt.Sprintf("%.0f", r.Percentage),
		"Clock":      stats.FormatClock(r.PracticeSeconds),
	})
	return titleStyle.Render(r.StarString()+"  "+summary) + "\n" + m.loc.Tier(string(r.Tier))
}

func (m *Model) renderFooter() string {
	var segments []string
	if m.view.State == session.StateRecording {
		segments = append(segments, fmt.Sprintf("%.0f WPM", m.view.Metrics.WordsPerMinute))
		if m.view.AudioAvailable {
			segments = append(segments, fmt.Sprintf("Vol %.0f", m.view.Metrics.VolumeLevel))
		}
	}
	switch {
	case m.view.EditMode:
		segments = append(segments, m.loc.T("hint_edit", nil))
	case m.view.State == session.StateRecording:
		segments = append(segments, m.loc.T("hint_recording", nil))
	default:
		segments = append(segments, m.loc.T("hint_idle", nil))
	}
	return footerStyle.Render(truncateLine(strings.Join(segments, "  "), m.width))
}
