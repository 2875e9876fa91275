// Package console implements the interactive terminal UI: a multi-line input,
// a spinner while a query runs, and a single result line.
//
// Keys:
//
//	Enter      check the input (ignored while a query runs)
//	Alt+Enter  insert a newline
//	Esc        cancel the running query, or quit when idle
//	Ctrl+C     quit, cancelling any running query
package console

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"primecheck/cmd/primecheck/ui"
	"primecheck/internal/logging"
	"primecheck/internal/pipeline"
)

const (
	resultIdle = "Result: -"
	computing  = "Computing..."
)

// Config wires the UI to an engine.
type Config struct {
	Engine     *pipeline.Engine
	Styles     ui.Styles
	SpinnerFPS int
	Logger     *zap.Logger
	// Context bounds every query started from the UI. Defaults to Background.
	Context context.Context
}

// resultMsg carries what a job delivered. ok is false when the job was
// cancelled and delivered nothing.
type resultMsg struct {
	seq int
	out pipeline.Outcome
	ok  bool
}

// Model is the bubbletea model for the interactive UI.
type Model struct {
	textarea textarea.Model
	spinner  spinner.Model
	styles   ui.Styles

	ctx    context.Context
	engine *pipeline.Engine
	log    *zap.Logger

	// job is the running query, nil when idle. seq tags results so that a
	// late message from an abandoned job is never shown.
	job    *pipeline.Job
	seq    int
	result string

	width  int
	height int
}

// New builds the initial model.
func New(cfg Config) Model {
	styles := cfg.Styles

	ta := textarea.New()
	ta.Placeholder = "Enter an expression, e.g. (2+3)*7!+1"
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.FocusedStyle.Prompt = styles.Prompt
	ta.FocusedStyle.Text = styles.UserInput
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner
	if cfg.SpinnerFPS > 0 {
		sp.Spinner.FPS = time.Second / time.Duration(cfg.SpinnerFPS)
	}

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return Model{
		textarea: ta,
		spinner:  sp,
		styles:   styles,
		ctx:      ctx,
		engine:   cfg.Engine,
		log:      logging.For(cfg.Logger, logging.CategoryTUI),
		result:   resultIdle,
		width:    80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Running reports whether a query is in flight.
func (m Model) Running() bool {
	return m.job != nil
}

// Result is the current result line text.
func (m Model) Result() string {
	return m.result
}

// Close cancels any running query and waits for its goroutine.
func (m Model) Close() {
	if m.job != nil {
		m.job.Cancel()
		m.job.Wait()
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case resultMsg:
		if msg.seq != m.seq || m.job == nil {
			return m, nil
		}
		m.job = nil
		if !msg.ok {
			m.result = resultIdle
			return m, nil
		}
		m.result = msg.out.Message()
		m.log.Debug("Result shown", zap.String("query_id", msg.out.QueryID.String()), zap.String("result", m.result))
		return m, nil

	case spinner.TickMsg:
		if m.job == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if w := msg.Width - 6; w > 10 {
			m.textarea.SetWidth(w)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m = m.cancel()
		return m, tea.Quit

	case tea.KeyEsc:
		if m.job == nil {
			return m, tea.Quit
		}
		m = m.cancel()
		return m, nil

	case tea.KeyEnter:
		if msg.Alt {
			m.textarea.InsertString("\n")
			return m, nil
		}
		if m.job != nil {
			return m, nil
		}
		return m.start()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m Model) start() (Model, tea.Cmd) {
	input := m.textarea.Value()
	m.seq++
	m.job = pipeline.Start(m.ctx, m.engine, input)
	m.result = computing
	m.log.Debug("Query started", zap.Int("seq", m.seq), zap.Int("input_length", len(input)))
	return m, tea.Batch(m.spinner.Tick, waitForResult(m.job, m.seq))
}

func (m Model) cancel() Model {
	if m.job == nil {
		return m
	}
	m.job.Cancel()
	m.job = nil
	m.result = resultIdle
	m.log.Debug("Query cancelled", zap.Int("seq", m.seq))
	return m
}

// waitForResult blocks on the job's channel; a cancelled job closes it without
// a value, which still unblocks the command.
func waitForResult(job *pipeline.Job, seq int) tea.Cmd {
	return func() tea.Msg {
		out, ok := <-job.Done()
		return resultMsg{seq: seq, out: out, ok: ok}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Header.Render("primecheck"))
	b.WriteString("\n\n")
	b.WriteString(m.styles.InputBox.Render(m.textarea.View()))
	b.WriteString("\n\n")
	b.WriteString(m.resultLine())
	b.WriteString("\n\n")
	b.WriteString(m.styles.RenderDivider(max(m.width-4, 1)))
	b.WriteString("\n")
	b.WriteString(m.styles.Footer.Render("Enter: check • Alt+Enter: newline • Esc: cancel/quit • Ctrl+C: quit"))

	return m.styles.Content.Render(b.String())
}

func (m Model) resultLine() string {
	if m.job != nil {
		return m.spinner.View() + " " + m.styles.Pending.Render(computing)
	}
	return m.resultStyle().Render(m.result)
}

func (m Model) resultStyle() lipgloss.Style {
	switch {
	case m.result == "Result: Prime":
		return m.styles.Prime
	case m.result == "Result: Not prime":
		return m.styles.Composite
	case strings.HasPrefix(m.result, "Parse error"):
		return m.styles.ParseError
	default:
		return m.styles.Muted
	}
}

// Run starts the full-screen UI and blocks until the user quits.
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen(), tea.WithContext(contextOr(cfg.Context)))
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.Close()
	}
	return err
}

func contextOr(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
