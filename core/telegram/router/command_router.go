package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/goroute/core/logger"
	tg "github.com/m3rciful/goroute/core/telegram"
	"github.com/m3rciful/goroute/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for cmd, def := range cmds {
		name, inner := normalizeHandlerName(cmd), def.Handler
		var h tele.HandlerFunc = func(c tele.Context) error {
			return handled(c, name, time.Now(), func() error { return inner(c) })
		}
		h = middleware.RecoverMiddleware(h)
		h = middleware.LoggerMiddleware(h)
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(adminOpts)(h)
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.LogEvent(logger.Background(), logger.TWire, slog.LevelInfo, "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", reg.CallbackCount()),
	)

	return routes
}
