package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/lynnzhiyun/chatpet/server/auth"
	"github.com/lynnzhiyun/chatpet/store"
)

type signUpRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInResponse struct {
	AccessToken string `json:"accessToken"`
	Username    string `json:"username"`
}

// SignUp creates the profile owner. The app holds a single profile, so a
// second registration is rejected.
func (s *APIV1Service) SignUp(c echo.Context) error {
	ctx := c.Request().Context()

	req := &signUpRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 6 {
		return echo.NewHTTPError(http.StatusBadRequest, "username and a password of at least 6 characters are required")
	}

	existing, err := s.Store.GetProfileSetting(ctx, store.SettingUsername)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to check existing profile").SetInternal(err)
	}
	if existing != nil {
		return echo.NewHTTPError(http.StatusConflict, "profile already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password").SetInternal(err)
	}

	settings := []*store.ProfileSetting{
		{Name: store.SettingUsername, Value: req.Username},
		{Name: store.SettingPassword, Value: string(hash)},
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		settings = append(settings, &store.ProfileSetting{Name: store.SettingEmail, Value: email})
	}
	for _, setting := range settings {
		if _, err := s.Store.UpsertProfileSetting(ctx, setting); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to save profile").SetInternal(err)
		}
	}

	return c.JSON(http.StatusCreated, map[string]string{"username": req.Username})
}

// SignIn verifies the password and issues an access token.
func (s *APIV1Service) SignIn(c echo.Context) error {
	ctx := c.Request().Context()

	req := &signInRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}

	username, err := s.Store.GetProfileSetting(ctx, store.SettingUsername)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load profile").SetInternal(err)
	}
	password, err := s.Store.GetProfileSetting(ctx, store.SettingPassword)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load profile").SetInternal(err)
	}
	if username == nil || password == nil || username.Value != strings.TrimSpace(req.Username) {
		return echo.NewHTTPError(http.StatusUnauthorized, "wrong username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(password.Value), []byte(req.Password)); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "wrong username or password")
	}

	token, err := auth.GenerateAccessToken(username.Value, s.Secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue access token").SetInternal(err)
	}
	if _, err := s.Store.UpsertProfileSetting(ctx, &store.ProfileSetting{Name: store.SettingIsLoggedIn, Value: "true"}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update login state").SetInternal(err)
	}

	return c.JSON(http.StatusOK, &signInResponse{AccessToken: token, Username: username.Value})
}

// SignOut clears the login marker. The token itself stays valid until it
// expires; clients drop it.
func (s *APIV1Service) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.Store.UpsertProfileSetting(ctx, &store.ProfileSetting{Name: store.SettingIsLoggedIn, Value: "false"}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update login state").SetInternal(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// jwtMiddleware guards the protected routes with a bearer token check.
func (s *APIV1Service) jwtMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := auth.Authenticate(strings.TrimPrefix(header, "Bearer "), s.Secret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token").SetInternal(err)
		}

		c.Set("username", claims.Username)
		return next(c)
	}
}
