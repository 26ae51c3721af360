// YouTube Data API v3 implementation of [SubscriptionService]
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/subx/internal/auth"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/shared"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// listFields limits list responses to what the pipeline reads.
const listFields googleapi.Field = "nextPageToken,items(id,snippet(title,description,publishedAt,resourceId(kind,channelId)))"

// YouTubeService implements [SubscriptionService] on top of the generated youtube/v3 client.
type YouTubeService struct {
	svc      *youtube.Service
	pageSize int64
}

// NewYouTubeService creates a client. pageSize is clamped to [shared.MaxPageSize].
func NewYouTubeService(ctx context.Context, pageSize int64, opts ...option.ClientOption) (*YouTubeService, error) {
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create youtube client: %v", shared.ErrConfiguration, err)
	}

	if pageSize <= 0 || pageSize > shared.MaxPageSize {
		pageSize = shared.MaxPageSize
	}

	return &YouTubeService{svc: svc, pageSize: pageSize}, nil
}

// YouTubeFactory returns a [Factory] that builds [YouTubeService] clients.
//
// A non-empty endpoint replaces the public API base URL.
func YouTubeFactory(endpoint string, pageSize int64) Factory {
	return func(ctx context.Context, cred *auth.Credential) (SubscriptionService, error) {
		if cred == nil {
			return nil, fmt.Errorf("%w: nil credential", shared.ErrConfiguration)
		}
		opts := cred.ClientOptions()
		if endpoint != "" {
			opts = append(opts, option.WithEndpoint(endpoint))
		}
		return NewYouTubeService(ctx, pageSize, opts...)
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

// ListPage calls subscriptions.list for a channel's public list or the account's own list.
func (y *YouTubeService) ListPage(ctx context.Context, query models.Query, pageToken string) (*models.Page, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	call := y.svc.Subscriptions.List([]string{"id", "snippet"}).
		MaxResults(y.pageSize).
		Fields(listFields).
		Context(ctx)

	if query.Mine {
		call = call.Mine(true)
	} else {
		call = call.ChannelId(query.ChannelID)
	}

	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("subscriptions.list %s: %w", query, err)
	}

	page := &models.Page{
		Items:         make([]models.Subscription, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
	}
	for _, item := range resp.Items {
		sub, err := toSubscription(item)
		if err != nil {
			return nil, fmt.Errorf("subscriptions.list %s: %w", query, err)
		}
		page.Items = append(page.Items, sub)
	}

	return page, nil
}

// Subscribe calls subscriptions.insert with the channel's resource id.
func (y *YouTubeService) Subscribe(ctx context.Context, channel models.Channel) (string, error) {
	resource := channel.Resource
	if resource.ChannelID == "" {
		resource = models.NewChannel(channel.ID, channel.Title).Resource
	}

	body := &youtube.Subscription{
		Snippet: &youtube.SubscriptionSnippet{
			ResourceId: &youtube.ResourceId{Kind: resource.Kind, ChannelId: resource.ChannelID},
		},
	}

	resp, err := y.svc.Subscriptions.Insert([]string{"snippet"}, body).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	if resp.Snippet == nil {
		return "", nil
	}
	return resp.Snippet.Title, nil
}

// toSubscription maps an API item to the domain model. Items without a channel resource are malformed.
func toSubscription(item *youtube.Subscription) (models.Subscription, error) {
	if item == nil || item.Snippet == nil || item.Snippet.ResourceId == nil || item.Snippet.ResourceId.ChannelId == "" {
		return models.Subscription{}, fmt.Errorf("malformed subscription item")
	}

	snippet := item.Snippet
	sub := models.Subscription{
		ID: item.Id,
		Channel: models.Channel{
			ID:    snippet.ResourceId.ChannelId,
			Title: snippet.Title,
			Resource: models.ResourceID{
				Kind:      snippet.ResourceId.Kind,
				ChannelID: snippet.ResourceId.ChannelId,
			},
		},
		Description: snippet.Description,
	}

	if sub.Channel.Resource.Kind == "" {
		sub.Channel.Resource.Kind = models.ChannelKind
	}

	if snippet.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339, snippet.PublishedAt); err == nil {
			sub.PublishedAt = ts
		}
	}

	return sub, nil
}

// FailureReason extracts the service-provided reason from an API error.
//
// It prefers the first structured error reason, then the message, then the error text.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		for _, item := range gerr.Errors {
			if item.Reason != "" {
				return item.Reason
			}
		}
		if gerr.Message != "" {
			return gerr.Message
		}
		return fmt.Sprintf("status %d", gerr.Code)
	}

	return err.Error()
}
