// package formatter writes subscription sets as snapshot JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/shared"
)

// Format names accepted by [Render].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists every supported format.
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ChannelURL returns the public page of a channel.
func ChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID
}

// ExportToJSON encodes the set as a snapshot document.
func ExportToJSON(set models.SubscriptionSet) ([]byte, error) {
	if set == nil {
		set = models.SubscriptionSet{}
	}
	data, err := json.MarshalIndent(models.Snapshot{Subscriptions: set}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts a set to CSV with columns: Channel ID, Title, Subscription ID, Subscribed At, URL
func ExportToCSV(set models.SubscriptionSet) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Channel ID", "Title", "Subscription ID", "Subscribed At", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, sub := range set {
		record := []string{
			sub.ChannelID(),
			sub.Channel.Title,
			sub.ID,
			formatTime(sub.PublishedAt),
			ChannelURL(sub.ChannelID()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a heading followed by a numbered list of channel links.
func ExportToMarkdown(title string, set models.SubscriptionSet) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Channels**: %d\n\n", len(set))

	buf.WriteString("## Subscriptions\n\n")
	for i, sub := range set {
		fmt.Fprintf(&buf, "%d. [%s](%s)", i+1, escapeMarkdown(displayTitle(sub)), ChannelURL(sub.ChannelID()))
		if !sub.PublishedAt.IsZero() {
			fmt.Fprintf(&buf, " (since %s)", sub.PublishedAt.Format(time.DateOnly))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a set to plain text
func ExportToText(title string, set models.SubscriptionSet) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", title)
	fmt.Fprintf(&buf, "Channels: %d\n\n", len(set))

	for i, sub := range set {
		fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, displayTitle(sub), sub.ChannelID())
	}

	return buf.Bytes(), nil
}

// Render dispatches to the exporter for format.
func Render(format, title string, set models.SubscriptionSet) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return ExportToJSON(set)
	case FormatCSV:
		return ExportToCSV(set)
	case FormatMarkdown, "md":
		return ExportToMarkdown(title, set)
	case FormatText, "text":
		return ExportToText(title, set)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q (use %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteSnapshot writes the set as a snapshot document at path.
func WriteSnapshot(path string, set models.SubscriptionSet) error {
	data, err := ExportToJSON(set)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// ReadSnapshot reads a snapshot document written by [WriteSnapshot].
func ReadSnapshot(path string) (models.SubscriptionSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: snapshot %s does not exist", shared.ErrConfiguration, path)
	} else if err != nil {
		return nil, fmt.Errorf("%w: failed to read snapshot: %v", shared.ErrConfiguration, err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: failed to parse snapshot %s: %v", shared.ErrConfiguration, path, err)
	}

	for i, sub := range snapshot.Subscriptions {
		if sub.ChannelID() == "" {
			return nil, fmt.Errorf("%w: snapshot %s: entry %d has no channel id", shared.ErrConfiguration, path, i+1)
		}
		if sub.Channel.Resource.ChannelID == "" {
			snapshot.Subscriptions[i].Channel.Resource = models.NewChannel(sub.ChannelID(), sub.Channel.Title).Resource
		}
	}

	if snapshot.Subscriptions == nil {
		snapshot.Subscriptions = models.SubscriptionSet{}
	}
	return snapshot.Subscriptions, nil
}

func displayTitle(sub models.Subscription) string {
	if sub.Channel.Title == "" {
		return sub.ChannelID()
	}
	return sub.Channel.Title
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var markdownEscaper = strings.NewReplacer("[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
