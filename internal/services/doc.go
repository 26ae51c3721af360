// Package services defines the [SubscriptionService] interface and implements it against the YouTube Data API.
//
// # Service Interface
//
// The transfer pipeline only needs two calls: [SubscriptionLister.ListPage] for one page of a subscription
// list and [Subscriber.Subscribe] for one write. Tests substitute in-memory fakes for both.
//
// # YouTube Implementation
//
// [YouTubeService] wraps google.golang.org/api/youtube/v3. A [Factory] binds it to a credential:
// anonymous credentials become an API key option, authenticated ones an [oauth2.TokenSource] so expired
// access tokens refresh transparently.
//
// List requests ask for the "snippet" part with a field mask and the configured page size. A query
// carries either a channel id or the "mine" filter, never both.
//
// # API Mappings
//
// Items map to [models.Subscription]; the channel id comes from snippet.resourceId.channelId. An item
// without a channel id is a malformed response and fails the page.
//
// # Error Handling
//
// [FailureReason] turns a *googleapi.Error into the service's own reason string (such as
// "subscriptionDuplicate" or "quotaExceeded"), which the pipeline records per channel.
package services
