package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/subx/internal/formatter"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/tasks"
)

var (
	_ list.Item = channelItem{}
	_ list.Item = outcomeItem{}
)

// channelItem wraps [models.Subscription] to implement [list.Item].
type channelItem struct {
	sub models.Subscription
}

func (i channelItem) FilterValue() string { return i.sub.Channel.Title }
func (i channelItem) Title() string {
	if i.sub.Channel.Title == "" {
		return i.sub.ChannelID()
	}
	return i.sub.Channel.Title
}
func (i channelItem) Description() string { return formatter.ChannelURL(i.sub.ChannelID()) }

// outcomeItem wraps [tasks.Outcome] to implement [list.Item].
type outcomeItem struct {
	outcome tasks.Outcome
}

func (i outcomeItem) FilterValue() string { return i.outcome.Title() }
func (i outcomeItem) Title() string {
	if i.outcome.OK() {
		return Success("✓ ") + i.outcome.Title()
	}
	return Failure("✗ ") + i.outcome.Title()
}
func (i outcomeItem) Description() string {
	if i.outcome.OK() {
		return i.outcome.Channel.ID
	}
	return fmt.Sprintf("%s • %s", i.outcome.Channel.ID, i.outcome.Reason())
}

func channelItems(set models.SubscriptionSet) []list.Item {
	items := make([]list.Item, len(set))
	for i, sub := range set {
		items[i] = channelItem{sub: sub}
	}
	return items
}

func outcomeItems(outcomes []tasks.Outcome) []list.Item {
	items := make([]list.Item, len(outcomes))
	for i, o := range outcomes {
		items[i] = outcomeItem{outcome: o}
	}
	return items
}

// newList builds a list without filtering. Sizes default to 80x20 until the first window size message.
func newList(items []list.Item, title string, width, height int) list.Model {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 20
	}
	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}
