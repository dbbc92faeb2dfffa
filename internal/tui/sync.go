// Package tui renders the startup screens with Bubble Tea.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/stork/internal/convergence"
	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/tui/styles"
)

const (
	maxBarWidth = 48
	finishDelay = 800 * time.Millisecond
)

func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(styles.SpinnerStyle),
	)
}

func newBar() progress.Model {
	return progress.New(
		progress.WithGradient(styles.ProgressStart, styles.ProgressEnd),
		progress.WithWidth(maxBarWidth),
		progress.WithoutPercentage(),
	)
}

// SyncModel shows a bounded wait for cloud data: a spinner, the status
// line and a bar filling with elapsed time against the budget.
type SyncModel struct {
	title string
	run   ConvergeFunc

	ctx     context.Context
	cancel  context.CancelFunc
	updates chan domain.ConvergenceProgress

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    KeyMap

	progress domain.ConvergenceProgress
	result   domain.ConvergenceResult
	err      error
	done     bool
	quitting bool
}

// NewSyncModel creates a screen that runs fn once started
func NewSyncModel(ctx context.Context, title string, fn ConvergeFunc) *SyncModel {
	ctx, cancel := context.WithCancel(ctx)
	return &SyncModel{
		title:   title,
		run:     fn,
		ctx:     ctx,
		cancel:  cancel,
		updates: make(chan domain.ConvergenceProgress, 16),
		spinner: newSpinner(),
		bar:     newBar(),
		help:    help.New(),
		keys:    DefaultKeyMap(),
	}
}

// Init starts the loop and the progress pump
func (m *SyncModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		RunConvergenceCmd(m.ctx, m.run, m.updates),
		WaitForProgressCmd(m.ctx, m.updates),
	)
}

// Update handles messages
func (m *SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-8, maxBarWidth)
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ProgressMsg:
		m.progress = msg.Progress
		return m, WaitForProgressCmd(m.ctx, m.updates)

	case ConvergedMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		m.cancel()
		return m, QuitAfterCmd(finishDelay)

	case quitMsg:
		return m, tea.Quit
	}
	return m, nil
}

// View renders the screen
func (m *SyncModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.ErrorStyle.Render(styles.FailedChar + " " + m.err.Error()))
	case m.done && m.result.Found:
		found := convergence.MessageFor(0, 0, m.result)
		b.WriteString(styles.SuccessStyle.Render(styles.DoneChar + " " + found))
	case m.done:
		b.WriteString(styles.SubtitleStyle.Render("No data yet. It will appear when it arrives."))
	default:
		b.WriteString(m.spinner.View() + " " + styles.SubtitleStyle.Render(m.message()))
	}
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.fraction()))
	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Quit}))

	return styles.ScreenStyle.Render(b.String())
}

func (m *SyncModel) message() string {
	if m.progress.Message == "" {
		return convergence.MessageChecking
	}
	return m.progress.Message
}

func (m *SyncModel) fraction() float64 {
	if m.done {
		return 1
	}
	return m.progress.Fraction()
}

// Result returns what the loop found once the program has exited
func (m *SyncModel) Result() (domain.ConvergenceResult, error) {
	return m.result, m.err
}
