// Package tui is the interactive chat front end: ask a question, read the
// answer with its sources, repeat.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/tanya/internal/models"
)

// Asker answers questions. *answer.Engine satisfies it.
type Asker interface {
	Ask(ctx context.Context, req *models.AskRequest) (*models.Answer, error)
}

type exchange struct {
	question string
	answer   *models.Answer
	err      error
	at       time.Time
}

type answerMsg struct {
	answer *models.Answer
	err    error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []exchange
	mode     string
	summary  string
	thinking bool
	ready    bool
	now      func() time.Time
}

// New creates a chat model. summary is shown under the header; mode is the
// initial answer mode and can be toggled with Tab.
func New(ctx context.Context, asker Asker, summary, mode string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about company policies and press Enter"
	ti.Focus()
	ti.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = thinkingStyle

	if mode == "" {
		mode = models.ModeTemplate
	}
	return Model{
		ctx:      ctx,
		asker:    asker,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		mode:     mode,
		summary:  summary,
		now:      time.Now,
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, spinner and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := historyBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, input box
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.thinking = false
		last := &m.history[len(m.history)-1]
		last.answer, last.err = msg.answer, msg.err
		last.at = m.now()
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.thinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			if m.mode == models.ModeTemplate {
				m.mode = models.ModeGenerative
			} else {
				m.mode = models.ModeTemplate
			}
			return m, nil
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.thinking {
				return m, nil
			}
			m.input.Reset()
			m.history = append(m.history, exchange{question: q, at: m.now()})
			m.thinking = true
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	ctx, asker, mode := m.ctx, m.asker, m.mode
	return func() tea.Msg {
		ans, err := asker.Ask(ctx, &models.AskRequest{Question: question, Mode: mode})
		return answerMsg{answer: ans, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("tanya · document Q&A")
	summary := mutedStyle.Render(m.summary)
	history := historyBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := mutedStyle.Render(fmt.Sprintf("mode: %s (tab to switch) · pgup/pgdn scroll · esc quit", m.mode))
	if m.thinking {
		status = m.spinner.View() + thinkingStyle.Render(" thinking...")
	}
	return header + "\n" + summary + "\n" + history + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return mutedStyle.Render("No questions yet. Try \"How many vacation days do I get?\"")
	}
	wrap := answerStyle.Width(max(20, m.viewport.Width-2))
	var b strings.Builder
	for i, ex := range m.history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(questionStyle.Render("You: "+ex.question) + " " + mutedStyle.Render(ex.at.Format("15:04")))
		b.WriteString("\n")
		switch {
		case ex.err != nil:
			b.WriteString(errorStyle.Render("Error: " + ex.err.Error()))
		case ex.answer == nil:
			b.WriteString(mutedStyle.Render("..."))
		default:
			b.WriteString(wrap.Render(ex.answer.Text))
			if ex.answer.LowScore {
				b.WriteString("\n" + mutedStyle.Render("(weak match)"))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	answerStyle     = lipgloss.NewStyle()
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	thinkingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
