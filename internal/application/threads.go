package application

import (
	"fmt"
	"sort"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

// ThreadSummary is a per-location view derived from a grouped thread.
type ThreadSummary struct {
	LocationKey string
	Anchor      model.Anchor
	Comments    []model.Comment // Sorted by CreatedAt.
	Draft       *model.Comment  // The thread's single draft, if any.
	Pending     int
	Published   int
}

// GroupThreads groups comments by location key into threads sorted by
// CreatedAt (oldest first, ties broken by id). A location holding more than
// one DRAFT is a modeling error and fails the whole grouping.
func GroupThreads(comments []model.Comment) (map[string][]model.Comment, error) {
	threads := make(map[string][]model.Comment)
	drafts := make(map[string]string)

	for _, c := range comments {
		key := c.LocationKey()
		if c.State == model.CommentStateDraft {
			if other, ok := drafts[key]; ok {
				return nil, fmt.Errorf("thread %s: drafts %s and %s: %w", key, other, c.ID, model.ErrMultipleDrafts)
			}
			drafts[key] = c.ID
		}
		threads[key] = append(threads[key], c)
	}

	for _, thread := range threads {
		sortChronologically(thread)
	}

	return threads, nil
}

// SummarizeThreads turns grouped threads into summaries ordered by location
// key, for views that need a stable iteration order.
func SummarizeThreads(threads map[string][]model.Comment) []ThreadSummary {
	keys := make([]string, 0, len(threads))
	for key := range threads {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	summaries := make([]ThreadSummary, 0, len(keys))
	for _, key := range keys {
		comments := threads[key]
		if len(comments) == 0 {
			continue
		}

		summary := ThreadSummary{
			LocationKey: key,
			Anchor:      comments[0].Anchor(),
			Comments:    comments,
		}
		for i := range comments {
			switch comments[i].State {
			case model.CommentStateDraft:
				summary.Draft = &comments[i]
			case model.CommentStatePending:
				summary.Pending++
			case model.CommentStatePublished:
				summary.Published++
			}
		}
		summaries = append(summaries, summary)
	}

	return summaries
}

func sortChronologically(comments []model.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}
