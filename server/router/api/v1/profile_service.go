package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lynnzhiyun/chatpet/server/service/chat"
	"github.com/lynnzhiyun/chatpet/store"
)

type profileResponse struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	PetName          string `json:"petName"`
	APIEndpoint      string `json:"apiEndpoint"`
	APIKeyConfigured bool   `json:"apiKeyConfigured"`
}

type updateProfileRequest struct {
	PetName     *string `json:"petName"`
	APIKey      *string `json:"apiKey"`
	APIEndpoint *string `json:"apiEndpoint"`
}

// GetProfile returns the owner profile and pet settings. The API key is
// never echoed back, only whether one is configured.
func (s *APIV1Service) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()

	resp := &profileResponse{
		PetName:     s.Session.PetName(),
		APIEndpoint: s.Session.BaseURL(ctx),
	}
	if setting, err := s.Store.GetProfileSetting(ctx, store.SettingUsername); err == nil && setting != nil {
		resp.Username = setting.Value
	}
	if setting, err := s.Store.GetProfileSetting(ctx, store.SettingEmail); err == nil && setting != nil {
		resp.Email = setting.Value
	}
	resp.APIKeyConfigured = s.Session.APIKey(ctx) != ""

	return c.JSON(http.StatusOK, resp)
}

// UpdateProfile applies partial updates. Renaming the pet also raises the
// re-introduction flag, so the next load of today's conversation greets the
// user under the new name.
func (s *APIV1Service) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()

	req := &updateProfileRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}

	if req.PetName != nil {
		name := strings.TrimSpace(*req.PetName)
		if name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "pet name must not be empty")
		}
		if name != s.Session.PetName() {
			if _, err := s.Store.UpsertProfileSetting(ctx, &store.ProfileSetting{Name: store.SettingPetName, Value: name}); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to save pet name").SetInternal(err)
			}
			if _, err := s.Store.UpsertProfileSetting(ctx, &store.ProfileSetting{Name: store.SettingPetNameJustChanged, Value: "true"}); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to save pet name").SetInternal(err)
			}
			s.Bus.Publish(ctx, &chat.Event{Type: chat.EventSettingsChanged, PetName: name})
		}
	}

	if req.APIKey != nil {
		if _, err := s.Store.UpsertProfileSetting(ctx, &store.ProfileSetting{Name: store.SettingAPIKey, Value: strings.TrimSpace(*req.APIKey)}); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to save API key").SetInternal(err)
		}
	}

	if req.APIEndpoint != nil {
		if _, err := s.Store.UpsertProfileSetting(ctx, &store.ProfileSetting{Name: store.SettingAPIEndpoint, Value: strings.TrimSpace(*req.APIEndpoint)}); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to save API endpoint").SetInternal(err)
		}
	}

	return s.GetProfile(c)
}
