package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/v2/spinner"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/margin/internal/core/prompts"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/core/styles"
)

// UIState represents the current top-level state of the TUI.
type UIState int

const (
	stateLoading UIState = iota
	statePicking
	stateAnnotating
)

// Options configures the TUI.
type Options struct {
	Deps Deps

	// Prompt file discovery.
	PromptsDir string
	Include    []string

	// Open this session directly, skipping the picker.
	SessionID string
}

// Model is the main Bubble Tea model.
type Model struct {
	opts Options

	state    UIState
	picker   PickerView
	annotate *AnnotateView

	sessions []*session.Session
	files    []prompts.File

	spinner        spinner.Model
	loadingMessage string

	width  int
	height int

	pickerStatus string

	err      error
	quitting bool
}

// New creates the TUI model.
func New(opts Options) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.TextPrimaryStyle

	return &Model{
		opts:           opts,
		state:          stateLoading,
		spinner:        sp,
		loadingMessage: "Loading sessions...",
		width:          80,
		height:         24,
	}
}

// Init starts the initial data loads.
func (m *Model) Init() tea.Cmd {
	if m.opts.SessionID != "" {
		m.loadingMessage = "Opening session..."
		return tea.Batch(m.spinner.Tick, openSessionCmd(m.opts.Deps, m.opts.SessionID))
	}
	return tea.Batch(
		m.spinner.Tick,
		loadSessionsCmd(m.opts.Deps),
		discoverPromptsCmd(m.opts.PromptsDir, m.opts.Include),
	)
}

type promptsDiscoveredMsg struct {
	files []prompts.File
	err   error
}

func discoverPromptsCmd(root string, include []string) tea.Cmd {
	return func() tea.Msg {
		files, err := prompts.Discover(root, include)
		return promptsDiscoveredMsg{files: files, err: err}
	}
}

// createSessionCmd starts a new session from a prompt file. With a backend
// available the text goes through an optimization pass first; offline the
// raw prompt is annotated directly.
func createSessionCmd(deps Deps, file prompts.File) tea.Cmd {
	return func() tea.Msg {
		text, err := prompts.Load(file.Path)
		if err != nil {
			return sessionOpenedMsg{err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		now := time.Now()
		id := uuid.NewString()
		var sess *session.Session

		if deps.Online() {
			result, err := deps.Optimizer.Optimize(ctx, text)
			if err != nil {
				return sessionOpenedMsg{err: err}
			}
			if result.SessionID != "" {
				id = result.SessionID
			}
			sess = session.New(id, file.Name(), text, now)
			sess.SetOptimizedPrompt(result.Result, now)
			sess.Metrics = result.Metrics
		} else {
			sess = session.New(id, file.Name(), text, now)
		}

		if err := deps.Sessions.Save(ctx, sess); err != nil {
			return sessionOpenedMsg{err: err}
		}
		return sessionOpenedMsg{sess: sess}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.picker.SetSize(msg.Width, msg.Height)
		if m.annotate != nil {
			m.annotate.SetSize(msg.Width, msg.Height)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.state != stateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.quitting = true
			return m, tea.Quit
		}
		m.sessions = msg.sessions
		m.enterPicker()
		return m, nil

	case promptsDiscoveredMsg:
		if msg.err != nil {
			log.Warn().Err(msg.err).Msg("prompt discovery failed")
		}
		m.files = msg.files
		if m.state == statePicking {
			m.enterPicker()
		}
		return m, nil

	case sessionPickedMsg:
		m.state = stateLoading
		m.pickerStatus = ""
		m.loadingMessage = "Opening session..."
		return m, tea.Batch(m.spinner.Tick, openSessionCmd(m.opts.Deps, msg.id))

	case promptPickedMsg:
		m.state = stateLoading
		m.pickerStatus = ""
		m.loadingMessage = "Preparing prompt..."
		if m.opts.Deps.Online() {
			m.loadingMessage = "Optimizing prompt..."
		}
		return m, tea.Batch(m.spinner.Tick, createSessionCmd(m.opts.Deps, msg.file))

	case sessionOpenedMsg:
		if msg.err != nil {
			if m.opts.SessionID != "" {
				m.err = msg.err
				m.quitting = true
				return m, tea.Quit
			}
			m.enterPicker()
			m.pickerStatus = msg.err.Error()
			return m, nil
		}
		m.annotate = NewAnnotateView(m.opts.Deps, msg.sess, msg.recs, m.width, m.height)
		m.state = stateAnnotating
		return m, nil

	case backToPickerMsg:
		if m.opts.SessionID != "" {
			m.quitting = true
			return m, tea.Quit
		}
		m.annotate = nil
		m.state = stateLoading
		m.loadingMessage = "Loading sessions..."
		return m, tea.Batch(m.spinner.Tick, loadSessionsCmd(m.opts.Deps))
	}

	switch m.state {
	case statePicking:
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "q", "esc":
				m.quitting = true
				return m, tea.Quit
			}
		}
		return m, cmd
	case stateAnnotating:
		if m.annotate == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.annotate, cmd = m.annotate.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) enterPicker() {
	m.picker = NewPickerView(m.sessions, m.files, m.width, m.height)
	m.state = statePicking
}

// View renders the model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.state {
	case stateLoading:
		return "\n  " + m.spinner.View() + " " + styles.TextMutedStyle.Render(m.loadingMessage) + "\n"
	case statePicking:
		out := m.picker.View()
		if m.pickerStatus != "" {
			out += "\n" + styles.TextErrorStyle.Render(m.pickerStatus)
		}
		return out
	case stateAnnotating:
		if m.annotate != nil {
			return m.annotate.View()
		}
	}
	return ""
}

// Err returns the fatal error the TUI exited with, if any.
func (m *Model) Err() error {
	return m.err
}
