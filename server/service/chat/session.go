package chat

import (
	"context"
	"sync"

	"github.com/lynnzhiyun/chatpet/internal/profile"
	"github.com/lynnzhiyun/chatpet/store"
)

// Session is the explicit per-session context the conversation service reads
// instead of ambient globals: the active pet name, API credentials, and the
// pending rename flag. The pet name is cached at session start and refreshed
// through settings-change events; credentials and the rename flag are read
// from the settings store on demand.
type Session struct {
	store   *store.Store
	profile *profile.Profile

	mu      sync.RWMutex
	petName string
}

// NewSession creates a session context, loading the pet name from settings
// with the profile default as fallback.
func NewSession(ctx context.Context, st *store.Store, p *profile.Profile, bus *EventBus) (*Session, error) {
	s := &Session{
		store:   st,
		profile: p,
		petName: p.DefaultPetName,
	}
	setting, err := st.GetProfileSetting(ctx, store.SettingPetName)
	if err != nil {
		return nil, err
	}
	if setting != nil && setting.Value != "" {
		s.petName = setting.Value
	}

	if bus != nil {
		bus.Subscribe(EventSettingsChanged, func(_ context.Context, event *Event) {
			if event.PetName != "" {
				s.setPetName(event.PetName)
			}
		})
	}
	return s, nil
}

// PetName returns the cached active pet name.
func (s *Session) PetName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.petName
}

func (s *Session) setPetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.petName = name
}

// APIKey returns the stored key, falling back to the build-time environment
// key. Empty means no key is configured.
func (s *Session) APIKey(ctx context.Context) string {
	setting, err := s.store.GetProfileSetting(ctx, store.SettingAPIKey)
	if err == nil && setting != nil && setting.Value != "" {
		return setting.Value
	}
	return s.profile.AIAPIKey
}

// BaseURL returns the stored API endpoint, falling back to the profile.
func (s *Session) BaseURL(ctx context.Context) string {
	setting, err := s.store.GetProfileSetting(ctx, store.SettingAPIEndpoint)
	if err == nil && setting != nil && setting.Value != "" {
		return setting.Value
	}
	return s.profile.AIBaseURL
}

// RenamePending reports whether a pet-name change is awaiting its
// re-introduction message.
func (s *Session) RenamePending(ctx context.Context) (bool, error) {
	setting, err := s.store.GetProfileSetting(ctx, store.SettingPetNameJustChanged)
	if err != nil {
		return false, err
	}
	return setting != nil && setting.Value == "true", nil
}

// ClearRenameFlag resets the pending rename flag.
func (s *Session) ClearRenameFlag(ctx context.Context) error {
	_, err := s.store.UpsertProfileSetting(ctx, &store.ProfileSetting{
		Name:  store.SettingPetNameJustChanged,
		Value: "false",
	})
	return err
}
