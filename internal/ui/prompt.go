package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/shared"
)

// PromptModel asks for a single channel id and validates it with [models.ParseChannelID].
type PromptModel struct {
	title     string
	input     textinput.Model
	help      help.Model
	keys      keyMap
	value     string
	err       error
	cancelled bool
}

func NewPromptModel(title string) *PromptModel {
	input := textinput.New()
	input.Placeholder = "UC... or https://www.youtube.com/channel/UC..."
	input.CharLimit = 200
	input.Width = 60
	input.Focus()

	return &PromptModel{title: title, input: input, help: help.New(), keys: newKeyMap()}
}

func (m *PromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.enter):
			id, err := models.ParseChannelID(m.input.Value())
			if err != nil {
				m.err = err
				return m, nil
			}
			m.value = id
			return m, tea.Quit
		case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.cancel):
			m.cancelled = true
			return m, tea.Quit
		}
		m.err = nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *PromptModel) View() string {
	if m.value != "" || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(Heading(m.title))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(Failure(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back}))
	return b.String()
}

// Value returns the accepted channel id, empty until enter is pressed on a valid value.
func (m *PromptModel) Value() string { return m.value }

// Cancelled reports whether the prompt was dismissed.
func (m *PromptModel) Cancelled() bool { return m.cancelled }

// Prompt runs a [PromptModel] on in/out and returns the channel id entered.
func Prompt(ctx context.Context, in io.Reader, out io.Writer, title string) (string, error) {
	m := NewPromptModel(title)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))

	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	pm, ok := final.(*PromptModel)
	if !ok || pm.Cancelled() || pm.Value() == "" {
		return "", fmt.Errorf("%w: source channel id", shared.ErrMissingArgument)
	}
	return pm.Value(), nil
}

// ReadLine prints title and reads one line from in as a channel id.
func ReadLine(in io.Reader, out io.Writer, title string) (string, error) {
	if _, err := fmt.Fprintf(out, "%s: ", title); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read source channel id: %w", err)
	}
	if strings.TrimSpace(line) == "" {
		return "", fmt.Errorf("%w: source channel id", shared.ErrMissingArgument)
	}

	id, err := models.ParseChannelID(line)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return id, nil
}
