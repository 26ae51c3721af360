package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SourceView ViewState = iota
	PreviewView
	ConfirmView
	TransferView
	ResultView
)

// Transferer runs the pipeline; implemented by [tasks.Engine].
type Transferer interface {
	Run(ctx context.Context, opts tasks.RunOpts, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	engine       Transferer
	snapshotPath string
	view         ViewState
	width        int
	height       int
	input        textinput.Model
	inputErr     error
	spinner      spinner.Model
	loading      bool
	sourceID     string
	preview      *tasks.RunResult
	previewList  list.Model
	resultList   list.Model
	hasPreview   bool
	hasResults   bool
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	stop         context.CancelFunc
	stopping     bool
	result       *tasks.RunResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. snapshotPath is passed to each real run; empty uses the engine default.
func NewModel(ctx context.Context, engine Transferer, snapshotPath string) *Model {
	input := textinput.New()
	input.Placeholder = "UC... or https://www.youtube.com/channel/UC..."
	input.CharLimit = 200
	input.Width = 60
	input.Focus()

	return &Model{
		ctx:          ctx,
		engine:       engine,
		snapshotPath: snapshotPath,
		view:         SourceView,
		input:        input,
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init starts the cursor blink of the source input.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.hasPreview {
			m.previewList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.hasResults {
			m.resultList.SetSize(msg.Width-4, msg.Height-12)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SourceView:
			return m.handleSourceKeys(msg)
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case TransferView:
			return m.handleTransferKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressUpdateMsg:
		if m.progressChan == nil {
			return m, nil
		}
		m.progress = tasks.ProgressUpdate(msg)
		return m, waitForProgress(m.progressChan)

	case runCompleteMsg:
		return m.handleRunComplete(msg)
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SourceView:
		return m.renderSource()
	case PreviewView:
		return m.renderPreview()
	case ConfirmView:
		return m.renderConfirm()
	case TransferView:
		return m.renderTransfer()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleSourceKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.back):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		id, err := models.ParseChannelID(m.input.Value())
		if err != nil {
			m.inputErr = err
			return m, nil
		}
		m.inputErr = nil
		m.sourceID = id
		m.view = PreviewView
		return m, m.startRun(true)
	}

	m.inputErr = nil
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loading {
		if key.Matches(msg, m.keys.cancel) {
			m.cancelRun()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.reset()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.enter):
		m.view = ConfirmView
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = PreviewView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = TransferView
		return m, m.startRun(false)
	}
	return m, nil
}

func (m *Model) handleTransferKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) {
		m.cancelRun()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.reset()
		return m, textinput.Blink
	}
	return m.updateLists(msg)
}

func (m *Model) handleRunComplete(msg runCompleteMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	m.stopping = false
	m.progressChan = nil
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}

	if msg.err != nil {
		m.err = msg.err
		m.view = ResultView
		return m, nil
	}

	if msg.dryRun {
		m.preview = msg.result
		if len(msg.result.Candidates) == 0 {
			m.result = msg.result
			m.view = ResultView
			return m, nil
		}
		title := fmt.Sprintf("%d channels to subscribe", len(msg.result.Candidates))
		m.previewList = newList(channelItems(msg.result.Candidates), title, m.width-4, m.height-8)
		m.hasPreview = true
		return m, nil
	}

	m.result = msg.result
	m.resultList = newList(outcomeItems(msg.result.Outcomes), "Outcomes", m.width-4, m.height-12)
	m.hasResults = true
	m.view = ResultView
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SourceView:
		m.input, cmd = m.input.Update(msg)
	case PreviewView:
		if m.hasPreview && !m.loading {
			m.previewList, cmd = m.previewList.Update(msg)
		}
	case ResultView:
		if m.hasResults {
			m.resultList, cmd = m.resultList.Update(msg)
		}
	}
	return m, cmd
}

// startRun launches the engine in a command and returns it batched with the progress reader.
func (m *Model) startRun(dryRun bool) tea.Cmd {
	ctx, stop := context.WithCancel(m.ctx)
	ch := make(chan tasks.ProgressUpdate, 50)
	m.stop = stop
	m.progressChan = ch
	m.progress = tasks.ProgressUpdate{}
	m.loading = true

	opts := tasks.RunOpts{SourceChannelID: m.sourceID, DryRun: dryRun, SnapshotPath: m.snapshotPath}
	if dryRun {
		opts.SnapshotPath = "-"
	}
	engine := m.engine

	run := func() tea.Msg {
		result, err := engine.Run(ctx, opts, ch)
		close(ch)
		return runCompleteMsg{result: result, err: err, dryRun: dryRun}
	}

	return tea.Batch(run, waitForProgress(ch), m.spinner.Tick)
}

func (m *Model) cancelRun() {
	if m.stop != nil {
		m.stop()
		m.stopping = true
	}
}

func (m *Model) reset() {
	m.view = SourceView
	m.sourceID = ""
	m.preview = nil
	m.result = nil
	m.hasPreview = false
	m.hasResults = false
	m.err = nil
	m.inputErr = nil
	m.progress = tasks.ProgressUpdate{}
	m.input.Reset()
	m.input.Focus()
}

func (m *Model) renderSource() string {
	var b strings.Builder
	b.WriteString(Heading("Transfer YouTube subscriptions"))
	b.WriteString("\nSource channel\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.inputErr != nil {
		b.WriteString(Failure(m.inputErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back}))
	return b.String()
}

func (m *Model) renderPreview() string {
	if m.loading {
		return fmt.Sprintf("%s\n\n%s %s\n%s", Heading("Comparing subscriptions"), m.spinner.View(), m.phaseLabel(), m.progress.Message)
	}

	next := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "subscribe"))
	helpView := m.help.ShortHelpView([]key.Binding{next, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.previewList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := Heading(fmt.Sprintf("Subscribe to %d channels?", len(m.preview.Candidates)))
	info := fmt.Sprintf(
		"\nSource: %s (%d channels)\nDestination: %d channels already subscribed\n",
		m.sourceID, len(m.preview.Source), len(m.preview.Dest),
	)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderTransfer() string {
	title := Heading("Transferring subscriptions")
	status := fmt.Sprintf("%s %s", m.spinner.View(), m.phaseLabel())
	if m.stopping {
		status = Warning("Stopping after the current request...")
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, status, m.progress.Message, helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", Failure(fmt.Sprintf("Transfer failed: %v", m.err)), helpView)
	}
	if m.result == nil {
		return fmt.Sprintf("%s\n\n%s", Failure("No result available"), helpView)
	}
	if len(m.result.Candidates) == 0 {
		msg := fmt.Sprintf("Nothing to do: all %d source channels are already subscribed", len(m.result.Source))
		return fmt.Sprintf("%s\n\n%s", Success(msg), helpView)
	}

	title := Success("✓ Transfer complete")
	if m.result.Failed > 0 {
		title = Warning(fmt.Sprintf("Transfer finished with %d failures", m.result.Failed))
	}
	info := fmt.Sprintf(
		"Source: %s (%d channels)\nSubscribed: %d/%d",
		m.result.SourceChannelID, len(m.result.Source), m.result.Succeeded, len(m.result.Candidates),
	)
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, info, m.resultList.View(), helpView)
}

func (m *Model) phaseLabel() string {
	switch m.progress.Phase {
	case tasks.FetchSource:
		return "Fetching source subscriptions..."
	case tasks.WriteSnapshot:
		return "Writing snapshot..."
	case tasks.FetchDest:
		return "Fetching destination subscriptions..."
	case tasks.Compare:
		return "Comparing..."
	case tasks.Subscribe:
		return fmt.Sprintf("Subscribing (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		return "Processing..."
	}
}
