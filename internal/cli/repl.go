package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/agon-mcp/internal/agent"
)

// turn is one rendered exchange in the transcript pane.
type turn struct {
	who  string
	text string
}

// replModel is the Bubble Tea model for the interactive chat REPL: a
// textarea for input, a viewport for history, and a spinner while the
// agent is thinking (teacher's cli/cli.go model shape, generalized to one
// view since there is no host/model selection step in this runtime).
type replModel struct {
	agent   *agent.Agent
	ctx     context.Context
	history []turn
	err     error
	waiting bool

	textArea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	width, height int
}

type agentReplyMsg struct {
	text string
	err  error
}

func newReplModel(ctx context.Context, a *agent.Agent) *replModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Ask the agent..."
	ta.Focus()
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(100, 20)

	return &replModel{
		agent:    a,
		ctx:      ctx,
		textArea: ta,
		viewport: vp,
		spinner:  s,
	}
}

func (m *replModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *replModel) sendCmd(userText string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.agent.SendMessage(m.ctx, userText, nil)
		if err != nil {
			return agentReplyMsg{err: err}
		}
		return agentReplyMsg{text: reply.Text()}
	}
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				break
			}
			userText := strings.TrimSpace(m.textArea.Value())
			if userText == "" {
				break
			}
			m.textArea.Reset()
			m.history = append(m.history, turn{who: "you", text: userText})
			m.waiting = true
			m.err = nil
			m.refreshViewport()
			cmds = append(cmds, m.spinner.Tick, m.sendCmd(userText))
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight, footerHeight := 1, 3
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - headerHeight - footerHeight
		m.refreshViewport()

	case agentReplyMsg:
		m.waiting = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.history = append(m.history, turn{who: "agent", text: msg.text})
		}
		m.refreshViewport()
		m.viewport.GotoBottom()
	}

	m.textArea, cmd = m.textArea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *replModel) refreshViewport() {
	var b strings.Builder
	for _, t := range m.history {
		style := lipgloss.NewStyle().Bold(true)
		b.WriteString(style.Render(t.who+":") + " " + t.text + "\n\n")
	}
	m.viewport.SetContent(b.String())
}

func (m *replModel) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.waiting {
		b.WriteString(m.spinner.View() + " thinking...\n")
	} else if m.err != nil {
		b.WriteString(fmt.Sprintf("error: %v\n", m.err))
	}
	b.WriteString(m.textArea.View())
	return b.String()
}

// runREPL launches the interactive Bubble Tea chat session.
func runREPL(ctx context.Context, a *agent.Agent) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := tea.NewProgram(newReplModel(ctx, a), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
