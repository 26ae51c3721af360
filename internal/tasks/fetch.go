package tasks

import (
	"context"
	"fmt"
	"iter"

	"github.com/desertthunder/subx/internal/models"
	"github.com/desertthunder/subx/internal/services"
	"github.com/desertthunder/subx/internal/shared"
)

// Pages lazily walks the pages of a subscription list.
//
// Every range over the sequence starts again from the first page. The sequence ends after the first
// page without a next token, or after yielding an error wrapped as [shared.ErrFetch].
func Pages(ctx context.Context, lister services.SubscriptionLister, query models.Query) iter.Seq2[models.Page, error] {
	return func(yield func(models.Page, error) bool) {
		if err := query.Validate(); err != nil {
			yield(models.Page{}, fmt.Errorf("%w: %w", shared.ErrFetch, err))
			return
		}

		token := ""
		seen := map[string]struct{}{}
		for {
			if err := ctx.Err(); err != nil {
				yield(models.Page{}, fmt.Errorf("%w: %s: %w", shared.ErrFetch, query, err))
				return
			}

			page, err := lister.ListPage(ctx, query, token)
			if err != nil {
				yield(models.Page{}, fmt.Errorf("%w: %s: %w", shared.ErrFetch, query, err))
				return
			}
			if page == nil {
				yield(models.Page{}, fmt.Errorf("%w: %s: empty response", shared.ErrFetch, query))
				return
			}

			if !yield(*page, nil) || page.NextPageToken == "" {
				return
			}

			if _, repeated := seen[page.NextPageToken]; repeated {
				yield(models.Page{}, fmt.Errorf("%w: %s: page token %q repeated", shared.ErrFetch, query, page.NextPageToken))
				return
			}
			seen[page.NextPageToken] = struct{}{}
			token = page.NextPageToken
		}
	}
}

// Collect materializes a page sequence in page order. On error the partial result is discarded.
func Collect(pages iter.Seq2[models.Page, error]) (models.SubscriptionSet, error) {
	return collect(pages, nil)
}

// ListSubscriptions fetches the complete subscription list selected by query.
func ListSubscriptions(ctx context.Context, lister services.SubscriptionLister, query models.Query) (models.SubscriptionSet, error) {
	return Collect(Pages(ctx, lister, query))
}

func collect(pages iter.Seq2[models.Page, error], onPage func(page, items int)) (models.SubscriptionSet, error) {
	set := models.SubscriptionSet{}
	n := 0
	for page, err := range pages {
		if err != nil {
			return nil, err
		}
		n++
		set = append(set, page.Items...)
		if onPage != nil {
			onPage(n, len(set))
		}
	}
	return set, nil
}
