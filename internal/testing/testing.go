// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/subx/internal/auth"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/services"
)

// MakeSubscriptions builds n subscriptions to channels UC{prefix}{i}, titled "{prefix} {i}".
func MakeSubscriptions(prefix string, n int) models.SubscriptionSet {
	set := make(models.SubscriptionSet, 0, n)
	for i := range n {
		set = append(set, Subscription(fmt.Sprintf("UC%s%d", prefix, i), fmt.Sprintf("%s %d", prefix, i)))
	}
	return set
}

// Subscription builds a single subscription record for channelID.
func Subscription(channelID, title string) models.Subscription {
	return models.Subscription{ID: "sub-" + channelID, Channel: models.NewChannel(channelID, title)}
}

// ListCall records one ListPage invocation.
type ListCall struct {
	Query     models.Query
	PageToken string
}

// ListFailure makes the listing of a query fail when Page is requested.
type ListFailure struct {
	Page int
	Err  error
}

// FakeService is an in-memory [services.SubscriptionService].
//
// Lists are keyed by [models.Query.String] and served in pages of PageSize. Successful subscribes
// are appended to the "mine" list so a second pass sees them.
type FakeService struct {
	PageSize      int
	Lists         map[string]models.SubscriptionSet
	ListFailures  map[string]ListFailure
	SubscribeErrs map[string]error
	// Titles overrides the confirmed title returned by Subscribe.
	Titles map[string]string

	mu         sync.Mutex
	listCalls  []ListCall
	subscribed []models.Channel
}

func NewFakeService() *FakeService {
	return &FakeService{
		PageSize:      50,
		Lists:         map[string]models.SubscriptionSet{},
		ListFailures:  map[string]ListFailure{},
		SubscribeErrs: map[string]error{},
		Titles:        map[string]string{},
	}
}

func (f *FakeService) Name() string { return "fake" }

func (f *FakeService) ListPage(ctx context.Context, query models.Query, pageToken string) (*models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls = append(f.listCalls, ListCall{Query: query, PageToken: pageToken})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index := 0
	if pageToken != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(pageToken, "page-"))
		if err != nil {
			return nil, fmt.Errorf("bad page token %q", pageToken)
		}
		index = n
	}

	key := query.String()
	if failure, ok := f.ListFailures[key]; ok && failure.Page == index {
		return nil, failure.Err
	}

	set := f.Lists[key]
	start := min(index*f.PageSize, len(set))
	end := min(start+f.PageSize, len(set))

	page := &models.Page{Items: append([]models.Subscription(nil), set[start:end]...)}
	if end < len(set) {
		page.NextPageToken = fmt.Sprintf("page-%d", index+1)
	}
	return page, nil
}

func (f *FakeService) Subscribe(ctx context.Context, channel models.Channel) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscribed = append(f.subscribed, channel)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := f.SubscribeErrs[channel.ID]; err != nil {
		return "", err
	}

	title := channel.Title
	if override, ok := f.Titles[channel.ID]; ok {
		title = override
	}

	mine := models.Query{Mine: true}.String()
	f.Lists[mine] = append(f.Lists[mine], models.Subscription{ID: "sub-" + channel.ID, Channel: channel})
	return title, nil
}

// ListCalls returns the recorded list invocations in order.
func (f *FakeService) ListCalls() []ListCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ListCall(nil), f.listCalls...)
}

// Subscribed returns the channels passed to Subscribe in call order, including failed ones.
func (f *FakeService) Subscribed() []models.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Channel(nil), f.subscribed...)
}

// FakeBroker hands out fixed credentials and records requested modes.
type FakeBroker struct {
	Errs map[auth.Mode]error

	mu    sync.Mutex
	modes []auth.Mode
}

func (b *FakeBroker) Obtain(ctx context.Context, mode auth.Mode) (*auth.Credential, error) {
	b.mu.Lock()
	b.modes = append(b.modes, mode)
	b.mu.Unlock()

	if err := b.Errs[mode]; err != nil {
		return nil, err
	}
	if mode == auth.Anonymous {
		return auth.AnonymousCredential("test-key"), nil
	}
	return auth.AuthenticatedCredential(nil, nil), nil
}

func (b *FakeBroker) Modes() []auth.Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]auth.Mode(nil), b.modes...)
}

// ServiceFactory returns a [services.Factory] that serves anonymous and authenticated credentials from
// separate services.
func ServiceFactory(anonymous, authenticated services.SubscriptionService) services.Factory {
	return func(ctx context.Context, cred *auth.Credential) (services.SubscriptionService, error) {
		if cred.Mode == auth.Authenticated {
			return authenticated, nil
		}
		return anonymous, nil
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
