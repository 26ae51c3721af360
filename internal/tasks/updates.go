package tasks

import (
	"fmt"

	"github.com/desertthunder/subx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	WriteSnapshot
	ReadSnapshot
	FetchDest
	Compare
	Subscribe
	Done
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case WriteSnapshot:
		return "write_snapshot"
	case ReadSnapshot:
		return "read_snapshot"
	case FetchDest:
		return "fetch_dest"
	case Compare:
		return "compare"
	case Subscribe:
		return "subscribe"
	case Done:
		return "done"
	default:
		return ""
	}
}

// sendProgress sends update without blocking. Updates are dropped when nobody is ready to receive.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchPageUpdate(phase Phase, query models.Query, page, items int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    page,
		Message: fmt.Sprintf("Fetched page %d of %s (%d channels so far)", page, query, items),
	}
}

func fetchedUpdate(phase Phase, query models.Query, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Retrieved %d channels from %s", count, query),
		Data:    count,
	}
}

func snapshotUpdate(phase Phase, path string, count int) ProgressUpdate {
	msg := fmt.Sprintf("Wrote %d channels to %s", count, path)
	if phase == ReadSnapshot {
		msg = fmt.Sprintf("Read %d channels from %s", count, path)
	}
	return ProgressUpdate{
		Phase:   phase,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    path,
	}
}

func compareUpdate(source, dest, candidates int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d of %d source channels are missing from the destination (%d already subscribed, destination follows %d)", candidates, source, source-candidates, dest),
		Data:    candidates,
	}
}

func subscribeUpdate(step, total int, outcome Outcome) ProgressUpdate {
	mark := "✓"
	title := outcome.Title()
	if !outcome.OK() {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   Subscribe,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, title),
		Data:    outcome,
	}
}

func doneUpdate(succeeded, failed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Subscribed to %d channels, %d failed", succeeded, failed),
	}
}
