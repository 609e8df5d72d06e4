package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Message model related methods.
	UpsertMessage(ctx context.Context, upsert *Message) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	// ListDistinctDays returns one entry per distinct day, ordered by the
	// maximum timestamp within that day descending.
	ListDistinctDays(ctx context.Context) ([]string, error)
	GetLastMessageOfDay(ctx context.Context, day string) (*Message, error)
	// DeleteMessages returns the number of rows removed.
	DeleteMessages(ctx context.Context, delete *DeleteMessage) (int64, error)

	// ProfileSetting model related methods.
	UpsertProfileSetting(ctx context.Context, upsert *ProfileSetting) (*ProfileSetting, error)
	ListProfileSettings(ctx context.Context, find *FindProfileSetting) ([]*ProfileSetting, error)
	DeleteProfileSetting(ctx context.Context, delete *DeleteProfileSetting) error
}
