// Package v1 exposes the REST surface of the app: auth, chat, history and
// profile routes under /api/v1.
package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/lynnzhiyun/chatpet/internal/profile"
	"github.com/lynnzhiyun/chatpet/server/middleware"
	"github.com/lynnzhiyun/chatpet/server/service/chat"
	"github.com/lynnzhiyun/chatpet/server/service/history"
	"github.com/lynnzhiyun/chatpet/store"
)

// APIV1Service wires the domain services to the echo routes.
type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	ChatService  *chat.Service
	HistoryIndex *history.Index
	Session      *chat.Session
	Bus          *chat.EventBus

	completionLimiter *middleware.RateLimiter
}

func NewAPIV1Service(secret string, p *profile.Profile, st *store.Store, chatService *chat.Service, historyIndex *history.Index, session *chat.Session, bus *chat.EventBus) *APIV1Service {
	return &APIV1Service{
		Secret:       secret,
		Profile:      p,
		Store:        st,
		ChatService:  chatService,
		HistoryIndex: historyIndex,
		Session:      session,
		Bus:          bus,

		// One completion per 2s per client, small burst for photo + text
		// sent together.
		completionLimiter: middleware.NewRateLimiter(2*time.Second, 3),
	}
}

// Register mounts all /api/v1 routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	apiGroup := e.Group("/api/v1")
	apiGroup.Use(echomw.CORS())

	apiGroup.POST("/auth/register", s.SignUp)
	apiGroup.POST("/auth/login", s.SignIn)

	protected := apiGroup.Group("", s.jwtMiddleware)
	protected.POST("/auth/logout", s.SignOut)

	protected.GET("/chat/days/:day/messages", s.GetDayMessages)
	protected.POST("/chat/messages", s.SendChatMessage, s.completionRateLimit)
	protected.POST("/chat/image", s.AnalyzeChatImage, s.completionRateLimit)

	protected.GET("/history", s.ListHistory)
	protected.DELETE("/history/:day", s.DeleteHistoryDay)
	protected.DELETE("/history", s.DeleteAllHistory)

	protected.GET("/profile", s.GetProfile)
	protected.PATCH("/profile", s.UpdateProfile)
}

func (s *APIV1Service) completionRateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.completionLimiter.Allow(c.RealIP()) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, slow down")
		}
		return next(c)
	}
}
