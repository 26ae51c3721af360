package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/shared"
	"github.com/desertthunder/subx/internal/tasks"
	tu "github.com/desertthunder/subx/internal/testing"
)

const sourceID = "UCabcdefghijklmnopqrstuv"

type fakeEngine struct {
	calls   []tasks.RunOpts
	ctxErrs []error
	preview *tasks.RunResult
	result  *tasks.RunResult
	err     error
}

func (f *fakeEngine) Run(ctx context.Context, opts tasks.RunOpts, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
	f.calls = append(f.calls, opts)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	progress <- tasks.ProgressUpdate{Phase: tasks.Compare, Message: "compared"}
	if f.err != nil {
		return nil, f.err
	}
	if opts.DryRun {
		return f.preview, nil
	}
	return f.result, nil
}

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
	ctrlC    = tea.KeyMsg{Type: tea.KeyCtrlC}
)

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// complete executes the engine command of a batch and feeds its result back into m.
func complete(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatal("expected a batch command")
	}
	for _, c := range batch {
		if c == nil {
			continue
		}
		if done, ok := c().(runCompleteMsg); ok {
			m.Update(done)
			return
		}
	}
	t.Fatal("batch did not contain the engine command")
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func fixture() *fakeEngine {
	source := tu.MakeSubscriptions("src", 3)
	dest := models.SubscriptionSet{source[1]}
	candidates := models.SubscriptionSet{source[0], source[2]}

	failed := &shared.SubscribeError{ChannelID: source[2].ChannelID(), Title: source[2].Channel.Title, Reason: "subscriptionForbidden", Err: errors.New("forbidden")}
	return &fakeEngine{
		preview: &tasks.RunResult{SourceChannelID: sourceID, Source: source, Dest: dest, Candidates: candidates, DryRun: true},
		result: &tasks.RunResult{
			SourceChannelID: sourceID,
			Source:          source,
			Dest:            dest,
			Candidates:      candidates,
			Outcomes: []tasks.Outcome{
				{Channel: source[0].Channel, ConfirmedTitle: source[0].Channel.Title},
				{Channel: source[2].Channel, Err: failed},
			},
			Succeeded: 1,
			Failed:    1,
		},
	}
}

func TestModel(t *testing.T) {
	t.Run("invalid source keeps the source view", func(t *testing.T) {
		m := NewModel(context.Background(), fixture(), "")
		m.input.SetValue("not a channel")

		_, cmd := m.Update(enterKey)
		if cmd != nil {
			t.Error("expected no command for invalid input")
		}
		if m.view != SourceView {
			t.Errorf("expected SourceView, got %v", m.view)
		}
		if m.inputErr == nil {
			t.Fatal("expected an input error")
		}
		if !strings.Contains(m.View(), "not a channel id") {
			t.Errorf("expected error in view, got %q", m.View())
		}
	})

	t.Run("preview, confirm and transfer", func(t *testing.T) {
		engine := fixture()
		m := NewModel(context.Background(), engine, "subs.json")
		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
		m.input.SetValue("https://www.youtube.com/channel/" + sourceID)

		_, cmd := m.Update(enterKey)
		if m.view != PreviewView || !m.loading {
			t.Fatalf("expected loading preview, got view %v loading %v", m.view, m.loading)
		}
		if !strings.Contains(m.View(), "Comparing subscriptions") {
			t.Errorf("expected loading view, got %q", m.View())
		}
		complete(t, m, cmd)

		if len(engine.calls) != 1 {
			t.Fatalf("expected 1 engine call, got %d", len(engine.calls))
		}
		first := engine.calls[0]
		if !first.DryRun || first.SnapshotPath != "-" || first.SourceChannelID != sourceID {
			t.Errorf("unexpected preview options %+v", first)
		}
		if m.loading || !m.hasPreview {
			t.Fatal("expected preview list after dry run")
		}
		if !strings.Contains(m.View(), "2 channels to subscribe") {
			t.Errorf("expected candidate count in view, got %q", m.View())
		}

		m.Update(enterKey)
		if m.view != ConfirmView {
			t.Fatalf("expected ConfirmView, got %v", m.view)
		}
		if !strings.Contains(m.View(), "Subscribe to 2 channels?") {
			t.Errorf("unexpected confirm view %q", m.View())
		}

		_, cmd = m.Update(runeKey("y"))
		if m.view != TransferView {
			t.Fatalf("expected TransferView, got %v", m.view)
		}
		complete(t, m, cmd)

		second := engine.calls[1]
		if second.DryRun || second.SnapshotPath != "subs.json" || second.SourceChannelID != sourceID {
			t.Errorf("unexpected transfer options %+v", second)
		}
		if m.view != ResultView {
			t.Fatalf("expected ResultView, got %v", m.view)
		}
		view := m.View()
		for _, want := range []string{"1 failures", "Subscribed: 1/2"} {
			if !strings.Contains(view, want) {
				t.Errorf("expected %q in result view, got %q", want, view)
			}
		}

		m.Update(runeKey("r"))
		if m.view != SourceView || m.sourceID != "" || m.hasResults || m.input.Value() != "" {
			t.Error("expected restart to reset the model")
		}
	})

	t.Run("declining returns to the preview", func(t *testing.T) {
		m := NewModel(context.Background(), fixture(), "")
		m.input.SetValue(sourceID)
		_, cmd := m.Update(enterKey)
		complete(t, m, cmd)

		m.Update(enterKey)
		m.Update(runeKey("n"))
		if m.view != PreviewView {
			t.Errorf("expected PreviewView, got %v", m.view)
		}
	})

	t.Run("empty diff shows nothing to do", func(t *testing.T) {
		engine := fixture()
		engine.preview.Candidates = models.SubscriptionSet{}
		m := NewModel(context.Background(), engine, "")
		m.input.SetValue(sourceID)

		_, cmd := m.Update(enterKey)
		complete(t, m, cmd)

		if m.view != ResultView {
			t.Fatalf("expected ResultView, got %v", m.view)
		}
		if !strings.Contains(m.View(), "Nothing to do") {
			t.Errorf("unexpected view %q", m.View())
		}
		if len(engine.calls) != 1 {
			t.Errorf("expected no transfer call, got %d calls", len(engine.calls))
		}
	})

	t.Run("engine error is shown", func(t *testing.T) {
		engine := fixture()
		engine.err = shared.ErrAuthentication
		m := NewModel(context.Background(), engine, "")
		m.input.SetValue(sourceID)

		_, cmd := m.Update(enterKey)
		complete(t, m, cmd)

		if m.view != ResultView || !errors.Is(m.err, shared.ErrAuthentication) {
			t.Fatalf("expected authentication error in result view, got %v", m.err)
		}
		if !strings.Contains(m.View(), "Transfer failed") {
			t.Errorf("unexpected view %q", m.View())
		}
	})

	t.Run("ctrl+c stops a running transfer", func(t *testing.T) {
		engine := fixture()
		m := NewModel(context.Background(), engine, "")
		m.input.SetValue(sourceID)
		_, cmd := m.Update(enterKey)
		complete(t, m, cmd)
		m.Update(enterKey)

		_, cmd = m.Update(runeKey("y"))
		_, quit := m.Update(ctrlC)
		if isQuit(quit) {
			t.Error("ctrl+c during a transfer must not quit")
		}
		if !m.stopping || !strings.Contains(m.View(), "Stopping") {
			t.Error("expected stopping state")
		}
		complete(t, m, cmd)

		if !errors.Is(engine.ctxErrs[1], context.Canceled) {
			t.Errorf("expected cancelled context, got %v", engine.ctxErrs[1])
		}
		if m.stopping {
			t.Error("expected stopping cleared after completion")
		}
	})

	t.Run("progress updates are displayed", func(t *testing.T) {
		m := NewModel(context.Background(), fixture(), "")
		m.sourceID = sourceID
		m.view = TransferView
		m.progressChan = make(chan tasks.ProgressUpdate, 1)

		_, cmd := m.Update(progressUpdateMsg{Phase: tasks.Subscribe, Step: 2, Total: 5, Message: "[2/5] ✓ Channel"})
		if cmd == nil {
			t.Error("expected the next progress read")
		}
		view := m.View()
		if !strings.Contains(view, "Subscribing (2/5)") || !strings.Contains(view, "[2/5] ✓ Channel") {
			t.Errorf("unexpected transfer view %q", view)
		}
	})

	t.Run("late progress after completion is ignored", func(t *testing.T) {
		m := NewModel(context.Background(), fixture(), "")
		_, cmd := m.Update(progressUpdateMsg{Message: "late"})
		if cmd != nil {
			t.Error("expected no command")
		}
		if m.progress.Message != "" {
			t.Error("expected late update to be dropped")
		}
	})

	t.Run("quit keys", func(t *testing.T) {
		m := NewModel(context.Background(), fixture(), "")
		if _, cmd := m.Update(escKey); !isQuit(cmd) {
			t.Error("expected esc to quit from the source view")
		}

		m.view = ResultView
		if _, cmd := m.Update(runeKey("q")); !isQuit(cmd) {
			t.Error("expected q to quit from the result view")
		}
	})

	t.Run("q is typed into the source input", func(t *testing.T) {
		m := NewModel(context.Background(), fixture(), "")
		_, cmd := m.Update(runeKey("q"))
		if isQuit(cmd) {
			t.Error("q must not quit from the source view")
		}
		if m.input.Value() != "q" {
			t.Errorf("expected input value q, got %q", m.input.Value())
		}
	})
}

func TestPromptModel(t *testing.T) {
	t.Run("rejects invalid input", func(t *testing.T) {
		m := NewPromptModel("Source channel")
		m.input.SetValue("nope")

		_, cmd := m.Update(enterKey)
		if cmd != nil {
			t.Error("expected no command")
		}
		if m.Value() != "" || m.err == nil {
			t.Error("expected validation error")
		}
		if !strings.Contains(m.View(), "Source channel") {
			t.Errorf("expected title in view, got %q", m.View())
		}
	})

	t.Run("accepts a channel id", func(t *testing.T) {
		m := NewPromptModel("Source channel")
		m.input.SetValue("  " + sourceID + "  ")

		_, cmd := m.Update(enterKey)
		if !isQuit(cmd) {
			t.Error("expected quit after a valid id")
		}
		if m.Value() != sourceID {
			t.Errorf("expected %s, got %q", sourceID, m.Value())
		}
		if m.View() != "" {
			t.Error("expected empty view once answered")
		}
	})

	t.Run("esc cancels", func(t *testing.T) {
		m := NewPromptModel("Source channel")
		_, cmd := m.Update(escKey)
		if !isQuit(cmd) || !m.Cancelled() {
			t.Error("expected cancelled prompt")
		}
	})
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "bare id", input: sourceID + "\n", want: sourceID},
		{name: "channel url without newline", input: "https://www.youtube.com/channel/" + sourceID, want: sourceID},
		{name: "empty line", input: "\n", wantErr: shared.ErrMissingArgument},
		{name: "no input", input: "", wantErr: shared.ErrMissingArgument},
		{name: "invalid id", input: "@handle\n", wantErr: shared.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			got, err := ReadLine(strings.NewReader(tt.input), out, "Source channel")

			if !strings.HasPrefix(out.String(), "Source channel: ") {
				t.Errorf("expected prompt, got %q", out.String())
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	t.Run("write failure", func(t *testing.T) {
		_, err := ReadLine(strings.NewReader(sourceID), &tu.FWriter{}, "Source channel")
		if err == nil || !strings.Contains(err.Error(), "failed to write prompt") {
			t.Errorf("expected write error, got %v", err)
		}
	})
}

func TestItems(t *testing.T) {
	sub := tu.Subscription(sourceID, "Some Channel")

	ci := channelItem{sub: sub}
	if ci.Title() != "Some Channel" || !strings.Contains(ci.Description(), sourceID) {
		t.Errorf("unexpected channel item %q / %q", ci.Title(), ci.Description())
	}
	if untitled := (channelItem{sub: tu.Subscription(sourceID, "")}); untitled.Title() != sourceID {
		t.Errorf("expected id as title, got %q", untitled.Title())
	}

	failed := outcomeItem{outcome: tasks.Outcome{
		Channel: sub.Channel,
		Err:     &shared.SubscribeError{ChannelID: sourceID, Title: "Some Channel", Reason: "quotaExceeded", Err: errors.New("quota")},
	}}
	if !strings.Contains(failed.Description(), "quotaExceeded") {
		t.Errorf("expected reason in description, got %q", failed.Description())
	}

	ok := outcomeItem{outcome: tasks.Outcome{Channel: sub.Channel, ConfirmedTitle: "Some Channel"}}
	if ok.Description() != sourceID || !strings.Contains(ok.Title(), "Some Channel") {
		t.Errorf("unexpected outcome item %q / %q", ok.Title(), ok.Description())
	}
}
