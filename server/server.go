// Package server owns the HTTP process: echo setup, service wiring and
// graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/lynnzhiyun/chatpet/internal/profile"
	"github.com/lynnzhiyun/chatpet/plugin/llm"
	apiv1 "github.com/lynnzhiyun/chatpet/server/router/api/v1"
	"github.com/lynnzhiyun/chatpet/server/service/chat"
	"github.com/lynnzhiyun/chatpet/server/service/history"
	"github.com/lynnzhiyun/chatpet/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

// NewServer wires the full service graph onto an echo instance.
func NewServer(ctx context.Context, p *profile.Profile, st *store.Store) (*Server, error) {
	e := echo.New()
	e.Debug = p.IsDev()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(_ echo.Context, err error, stack []byte) error {
			slog.Error("panic recovered", slog.String("error", err.Error()), slog.String("stack", string(stack)))
			return err
		},
	}))
	e.Use(echomw.TimeoutWithConfig(echomw.TimeoutConfig{
		// Above the completion client's own timeout, so the client reports
		// its classified failure instead of a blunt 503.
		Timeout: 45 * time.Second,
	}))

	s := &Server{
		Profile:    p,
		Store:      st,
		echoServer: e,
	}

	bus := chat.NewEventBus()
	session, err := chat.NewSession(ctx, st, p, bus)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat session")
	}

	chatService := chat.NewService(st, llm.NewCompleter(), session, bus, p)
	historyIndex := history.NewIndex(st)

	apiService := apiv1.NewAPIV1Service(p.Secret, p, st, chatService, historyIndex, session, bus)
	apiService.Register(e)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	return s, nil
}

func (s *Server) Start(_ context.Context) error {
	return s.echoServer.Start(fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port))
}

// Shutdown stops the HTTP listener and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.String("error", err.Error()))
	}

	slog.Info("chatpet stopped properly")
}
