package ui

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shuntaka9576/ddbload/cli/timer"
)

var (
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Render
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00F2"))
)

const refreshInterval = 100 * time.Millisecond

// Progress is shared between the workers and the model. Workers add to it
// from any goroutine; the model reads it on every tick.
type Progress struct {
	total     int64
	processed int64
	retried   int64
	done      int32
}

func NewProgress(total int) *Progress {
	return &Progress{total: int64(total)}
}

// Add records requests applied and requests handed back for a retry.
func (p *Progress) Add(processed, retried int) {
	atomic.AddInt64(&p.processed, int64(processed))
	atomic.AddInt64(&p.retried, int64(retried))
}

// Finish makes the model quit on its next tick.
func (p *Progress) Finish() {
	atomic.StoreInt32(&p.done, 1)
}

func (p *Progress) Processed() int {
	return int(atomic.LoadInt64(&p.processed))
}

func (p *Progress) Retried() int {
	return int(atomic.LoadInt64(&p.retried))
}

func (p *Progress) Total() int {
	return int(p.total)
}

func (p *Progress) Finished() bool {
	return atomic.LoadInt32(&p.done) == 1
}

type Model struct {
	Title    string
	progress *Progress
	timer    *timer.Timer
	spinner  spinner.Model
	quitting bool
}

type Option struct {
	Title    string
	Progress *Progress
}

type tickMsg time.Time

func InitModel(opt *Option) Model {
	m := Model{
		Title:    opt.Title,
		progress: opt.Progress,
		timer:    &timer.Timer{},
	}
	m.timer.Start()
	m.resetSpinner()

	return m
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		if m.progress.Finished() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) resetSpinner() {
	m.spinner = spinner.New()
	m.spinner.Style = spinnerStyle
	m.spinner.Spinner = spinner.Dot
}

func (m Model) percent() int {
	total := m.progress.Total()
	if total == 0 {
		return 100
	}
	return m.progress.Processed() * 100 / total
}

func (m Model) View() string {
	processed := m.progress.Processed()
	total := m.progress.Total()

	if m.quitting && processed >= total {
		return textStyle(fmt.Sprintf("%s: %d/%d All done!", m.Title, processed, total)) + "\n"
	}

	s := fmt.Sprintf("%s%s: %d/%d(%d%%)", m.spinner.View(), m.Title, processed, total, m.percent())
	if retried := m.progress.Retried(); retried > 0 {
		s += fmt.Sprintf(" Retried: %d", retried)
	}
	if eta := m.timer.Estimated(total, processed); eta != "" {
		s += fmt.Sprintf(" ETA: %s", eta)
	}
	if m.quitting {
		s += "\n"
	}

	return textStyle(s)
}
