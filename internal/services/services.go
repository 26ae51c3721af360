// package services defines the subscription API interfaces and their YouTube Data API implementation
package services

import (
	"context"

	"github.com/desertthunder/subx/internal/auth"
	"github.com/desertthunder/subx/internal/models"
)

// SubscriptionLister retrieves one page of a subscription list.
type SubscriptionLister interface {
	// ListPage returns the page addressed by pageToken; an empty token requests the first page.
	ListPage(ctx context.Context, query models.Query, pageToken string) (*models.Page, error)
}

// Subscriber subscribes the authenticated account to a channel.
type Subscriber interface {
	// Subscribe returns the subscription title confirmed by the service.
	Subscribe(ctx context.Context, channel models.Channel) (string, error)
}

// SubscriptionService is the full remote surface used by the transfer pipeline.
type SubscriptionService interface {
	SubscriptionLister
	Subscriber

	// Name returns the name of the service (e.g., "YouTube")
	Name() string
}

// Factory builds a [SubscriptionService] bound to a credential.
type Factory func(ctx context.Context, cred *auth.Credential) (SubscriptionService, error)
