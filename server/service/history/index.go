// Package history derives the per-day conversation summaries shown in the
// history view. Summaries are recomputed from the message store on every
// call; nothing here caches.
package history

import (
	"context"
	"log/slog"

	"github.com/lynnzhiyun/chatpet/store"
)

// snippetLimit is the number of leading characters kept from the last
// message; longer texts get a literal ellipsis suffix.
const snippetLimit = 50

// DailySummary is one history row: a derived view over the messages of a
// single day, never persisted.
type DailySummary struct {
	Day                string `json:"day"`
	LastMessageSnippet string `json:"lastMessageSnippet"`
	MessageCount       int    `json:"messageCount"`
	SortTimestamp      int64  `json:"sortTimestamp"`
}

// MessageStore is the slice of the store the index reads.
type MessageStore interface {
	ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error)
	ListDistinctDays(ctx context.Context) ([]string, error)
	GetLastMessageOfDay(ctx context.Context, day string) (*store.Message, error)
	DeleteMessagesByDay(ctx context.Context, day string) (int64, error)
	DeleteAllMessages(ctx context.Context) error
}

// Index computes day summaries and forwards deletions to the store.
type Index struct {
	store  MessageStore
	logger *slog.Logger
}

// NewIndex creates a history index over the given store.
func NewIndex(store MessageStore) *Index {
	return &Index{
		store:  store,
		logger: slog.Default(),
	}
}

// ListDaySummaries returns one summary per stored day, ordered by each
// day's most recent message, newest first. Days whose last message cannot
// be found are a data inconsistency: logged and skipped, not an error.
func (i *Index) ListDaySummaries(ctx context.Context) ([]*DailySummary, error) {
	days, err := i.store.ListDistinctDays(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*DailySummary, 0, len(days))
	for _, day := range days {
		last, err := i.store.GetLastMessageOfDay(ctx, day)
		if err != nil {
			return nil, err
		}
		if last == nil {
			i.logger.Warn("day has no last message, skipping", slog.String("day", day))
			continue
		}

		messages, err := i.store.ListMessages(ctx, &store.FindMessage{Day: &day})
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, &DailySummary{
			Day:                day,
			LastMessageSnippet: Snippet(last.Content),
			MessageCount:       len(messages),
			SortTimestamp:      last.CreatedTs,
		})
	}
	return summaries, nil
}

// DeleteDay removes the day's messages and returns how many were deleted.
// The next ListDaySummaries recomputes from scratch, so no invalidation is
// needed.
func (i *Index) DeleteDay(ctx context.Context, day string) (int64, error) {
	return i.store.DeleteMessagesByDay(ctx, day)
}

// DeleteAll purges the whole history.
func (i *Index) DeleteAll(ctx context.Context) error {
	return i.store.DeleteAllMessages(ctx)
}

// Snippet keeps the first 50 characters of text, appending an ellipsis only
// when something was actually cut. Rune-safe, no word-boundary awareness.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLimit {
		return text
	}
	return string(runes[:snippetLimit]) + "..."
}
