package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/services"
	"github.com/desertthunder/subx/internal/shared"
	"golang.org/x/time/rate"
)

// Outcome is the result of one subscribe request. A nil Err means success.
type Outcome struct {
	Channel        models.Channel
	ConfirmedTitle string
	Err            error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Title prefers the title confirmed by the service.
func (o Outcome) Title() string {
	if o.ConfirmedTitle != "" {
		return o.ConfirmedTitle
	}
	if o.Channel.Title != "" {
		return o.Channel.Title
	}
	return o.Channel.ID
}

// Reason returns the failure reason, or "" on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	var se *shared.SubscribeError
	if errors.As(o.Err, &se) {
		return se.Reason
	}
	return o.Err.Error()
}

// Diff returns the source records whose channel is absent from dest, in source order.
//
// Duplicates within dest collapse; duplicates within source are kept.
func Diff(source, dest models.SubscriptionSet) models.SubscriptionSet {
	existing := dest.ChannelIDs()
	candidates := models.SubscriptionSet{}
	for _, sub := range source {
		if _, ok := existing[sub.ChannelID()]; !ok {
			candidates = append(candidates, sub)
		}
	}
	return candidates
}

// Summarize counts succeeded and failed outcomes.
func Summarize(outcomes []Outcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.OK() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// subscriber issues subscribe requests one at a time.
type subscriber struct {
	svc     services.Subscriber
	limiter *rate.Limiter
	logger  *log.Logger
}

// newLimiter returns nil when pacing is disabled.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// run subscribes to every candidate in order. onOutcome is called after each request.
// After cancellation the remaining candidates are recorded as failed without a request.
func (s *subscriber) run(ctx context.Context, candidates models.SubscriptionSet, onOutcome func(i int, o Outcome)) []Outcome {
	outcomes := make([]Outcome, 0, len(candidates))

	for i, sub := range candidates {
		outcome := s.subscribe(ctx, sub.Channel)
		outcomes = append(outcomes, outcome)
		if onOutcome != nil {
			onOutcome(i, outcome)
		}
	}

	return outcomes
}

func (s *subscriber) subscribe(ctx context.Context, channel models.Channel) Outcome {
	if err := s.wait(ctx); err != nil {
		return Outcome{Channel: channel, Err: &shared.SubscribeError{
			ChannelID: channel.ID,
			Title:     channel.Title,
			Reason:    "cancelled",
			Err:       err,
		}}
	}

	title, err := s.svc.Subscribe(ctx, channel)
	if err != nil {
		reason := services.FailureReason(err)
		s.logger.Error("error when subscribing to channel", "channel", channel.Title, "id", channel.ID, "reason", reason)
		return Outcome{Channel: channel, Err: &shared.SubscribeError{
			ChannelID: channel.ID,
			Title:     channel.Title,
			Reason:    reason,
			Err:       err,
		}}
	}

	s.logger.Info("subscribed to channel", "channel", title, "id", channel.ID)
	return Outcome{Channel: channel, ConfirmedTitle: title}
}

func (s *subscriber) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}
