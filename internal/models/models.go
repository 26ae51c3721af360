package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ChannelKind is the resource kind the subscribe endpoint expects.
const ChannelKind = "youtube#channel"

// ResourceID identifies the subscribed resource in write requests.
type ResourceID struct {
	Kind      string `json:"kind"`
	ChannelID string `json:"channelId"`
}

// Channel is a reference to a channel on the platform. ID is its identity.
type Channel struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Resource ResourceID `json:"resourceId"`
}

// NewChannel builds a channel reference whose resource points at id.
func NewChannel(id, title string) Channel {
	return Channel{ID: id, Title: title, Resource: ResourceID{Kind: ChannelKind, ChannelID: id}}
}

var channelIDPattern = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)

// ParseChannelID accepts a bare channel id or a channel URL (https://www.youtube.com/channel/UC...).
func ParseChannelID(input string) (string, error) {
	id := strings.TrimSpace(input)
	if strings.Contains(id, "/") {
		u, err := url.Parse(id)
		if err != nil {
			return "", fmt.Errorf("unreadable channel address %q", input)
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		id = ""
		for i, seg := range segments {
			if seg == "channel" && i+1 < len(segments) {
				id = segments[i+1]
				break
			}
		}
		if id == "" {
			return "", fmt.Errorf("%q is not a channel address", input)
		}
	}

	if !channelIDPattern.MatchString(id) {
		return "", fmt.Errorf("%q is not a channel id", input)
	}
	return id, nil
}

// Subscription is one record of a subscription list.
type Subscription struct {
	ID          string    `json:"id"`
	Channel     Channel   `json:"channel"`
	Description string    `json:"description,omitempty"`
	PublishedAt time.Time `json:"publishedAt,omitzero"`
}

// ChannelID returns the identity of the subscribed channel.
func (s Subscription) ChannelID() string {
	return s.Channel.ID
}

// SubscriptionSet is an ordered sequence of subscriptions.
//
// Order is the order the service returned; ids are not deduplicated.
type SubscriptionSet []Subscription

// ChannelIDs returns the distinct channel ids of the set.
func (s SubscriptionSet) ChannelIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s))
	for _, sub := range s {
		ids[sub.ChannelID()] = struct{}{}
	}
	return ids
}

// Query selects whose subscriptions are listed: a channel's public list or the authenticated account's.
type Query struct {
	ChannelID string
	Mine      bool
}

// Validate checks that exactly one of ChannelID and Mine is set.
func (q Query) Validate() error {
	hasChannel := strings.TrimSpace(q.ChannelID) != ""
	if hasChannel == q.Mine {
		return fmt.Errorf("query must set exactly one of channel id or mine")
	}
	return nil
}

func (q Query) String() string {
	if q.Mine {
		return "mine"
	}
	return "channel:" + q.ChannelID
}

// Page is one response of the list endpoint. An empty NextPageToken ends the list.
type Page struct {
	Items         []Subscription
	NextPageToken string
}

// Snapshot is the export file document: one field holding the ordered list.
type Snapshot struct {
	Subscriptions SubscriptionSet `json:"subscriptions"`
}
