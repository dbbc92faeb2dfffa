package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/stork/internal/domain"
	"github.com/mmcdole/stork/internal/tui/styles"
)

// Migrator drives a migration and reports its status
type Migrator interface {
	PerformMigration(ctx context.Context) error
	RetryMigration(ctx context.Context) error
	MigrationStatus() domain.MigrationStatus
}

// MigrationModel shows migration progress. A failed run stays on screen
// until the user retries or quits.
type MigrationModel struct {
	migrator Migrator
	statuses <-chan domain.MigrationStatus

	ctx    context.Context
	cancel context.CancelFunc

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    KeyMap

	status   domain.MigrationStatus
	running  bool
	err      error
	quitting bool
}

// NewMigrationModel creates the screen. statuses should receive every
// status change of the orchestrator behind migrator.
func NewMigrationModel(ctx context.Context, migrator Migrator, statuses <-chan domain.MigrationStatus) *MigrationModel {
	ctx, cancel := context.WithCancel(ctx)
	return &MigrationModel{
		migrator: migrator,
		statuses: statuses,
		ctx:      ctx,
		cancel:   cancel,
		spinner:  newSpinner(),
		bar:      newBar(),
		help:     help.New(),
		keys:     DefaultKeyMap(),
		status:   migrator.MigrationStatus(),
	}
}

// Init starts the migration and the status pump
func (m *MigrationModel) Init() tea.Cmd {
	m.running = true
	return tea.Batch(
		m.spinner.Tick,
		RunMigrationCmd(m.ctx, m.migrator.PerformMigration),
		WaitForStatusCmd(m.ctx, m.statuses),
	)
}

// Update handles messages
func (m *MigrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Retry):
			if m.running || m.status.Phase != domain.MigrationFailed {
				return m, nil
			}
			m.running = true
			m.err = nil
			return m, RunMigrationCmd(m.ctx, m.migrator.RetryMigration)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-8, maxBarWidth)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StatusMsg:
		m.status = msg.Status
		return m, WaitForStatusCmd(m.ctx, m.statuses)

	case MigrationDoneMsg:
		m.running = false
		m.err = msg.Err
		m.status = m.migrator.MigrationStatus()
		if m.status.Phase == domain.MigrationCompleted {
			m.cancel()
			return m, QuitAfterCmd(finishDelay)
		}
		return m, nil

	case quitMsg:
		return m, tea.Quit
	}
	return m, nil
}

// View renders the screen
func (m *MigrationModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Moving your data to this device"))
	b.WriteString("\n")

	switch m.status.Phase {
	case domain.MigrationFailed:
		b.WriteString(styles.ErrorStyle.Render(styles.FailedChar + " " + m.status.Reason))
	case domain.MigrationCompleted:
		b.WriteString(styles.SuccessStyle.Render(styles.DoneChar + " All your data is here."))
	default:
		line := m.status.Message
		if line == "" {
			line = "Getting ready…"
		}
		b.WriteString(m.spinner.View() + " " + styles.SubtitleStyle.Render(line))
	}
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(m.status.Progress))
	b.WriteString("\n\n")

	if m.status.Phase == domain.MigrationFailed && !m.running {
		b.WriteString(m.help.View(m.keys))
	} else {
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.Quit}))
	}

	return styles.ScreenStyle.Render(b.String())
}

// Status returns the last status seen
func (m *MigrationModel) Status() domain.MigrationStatus {
	return m.status
}

// Err returns the error of the last migration attempt
func (m *MigrationModel) Err() error {
	return m.err
}
