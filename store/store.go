package store

import (
	"context"

	"github.com/lynnzhiyun/chatpet/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// UpsertMessage inserts a message, replacing any existing row with the same
// UID. Re-inserting an identical message is a no-op by contract.
func (s *Store) UpsertMessage(ctx context.Context, upsert *Message) (*Message, error) {
	message, err := s.driver.UpsertMessage(ctx, upsert)
	if err != nil {
		return nil, storageErr("upsert message", err)
	}
	return message, nil
}

// ListMessages returns messages ordered ascending by timestamp, optionally
// filtered by exact day-string equality.
func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	list, err := s.driver.ListMessages(ctx, find)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	return list, nil
}

// ListDistinctDays returns distinct day keys, most recently active day first.
func (s *Store) ListDistinctDays(ctx context.Context) ([]string, error) {
	days, err := s.driver.ListDistinctDays(ctx)
	if err != nil {
		return nil, storageErr("list distinct days", err)
	}
	return days, nil
}

// GetLastMessageOfDay returns the message with the maximum timestamp for the
// day, or nil when the day holds no messages.
func (s *Store) GetLastMessageOfDay(ctx context.Context, day string) (*Message, error) {
	message, err := s.driver.GetLastMessageOfDay(ctx, day)
	if err != nil {
		return nil, storageErr("get last message of day", err)
	}
	return message, nil
}

// DeleteMessagesByDay removes every message of the day and returns the count.
func (s *Store) DeleteMessagesByDay(ctx context.Context, day string) (int64, error) {
	count, err := s.driver.DeleteMessages(ctx, &DeleteMessage{Day: &day})
	if err != nil {
		return 0, storageErr("delete messages by day", err)
	}
	return count, nil
}

// DeleteAllMessages purges the whole history.
func (s *Store) DeleteAllMessages(ctx context.Context) error {
	if _, err := s.driver.DeleteMessages(ctx, &DeleteMessage{}); err != nil {
		return storageErr("delete all messages", err)
	}
	return nil
}

func (s *Store) UpsertProfileSetting(ctx context.Context, upsert *ProfileSetting) (*ProfileSetting, error) {
	setting, err := s.driver.UpsertProfileSetting(ctx, upsert)
	if err != nil {
		return nil, storageErr("upsert profile setting", err)
	}
	return setting, nil
}

// GetProfileSetting returns the named setting, or nil when unset.
func (s *Store) GetProfileSetting(ctx context.Context, name string) (*ProfileSetting, error) {
	list, err := s.driver.ListProfileSettings(ctx, &FindProfileSetting{Name: &name})
	if err != nil {
		return nil, storageErr("get profile setting", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListProfileSettings(ctx context.Context, find *FindProfileSetting) ([]*ProfileSetting, error) {
	list, err := s.driver.ListProfileSettings(ctx, find)
	if err != nil {
		return nil, storageErr("list profile settings", err)
	}
	return list, nil
}

func (s *Store) DeleteProfileSetting(ctx context.Context, delete *DeleteProfileSetting) error {
	if err := s.driver.DeleteProfileSetting(ctx, delete); err != nil {
		return storageErr("delete profile setting", err)
	}
	return nil
}
