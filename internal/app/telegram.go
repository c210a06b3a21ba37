package app

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/goroute/core/logger"
	coretelegram "github.com/m3rciful/goroute/core/telegram"
	"github.com/m3rciful/goroute/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/goroute/core/telegram/helpers"
	"github.com/m3rciful/goroute/core/telegram/keyboard"
	"github.com/m3rciful/goroute/core/telegram/router"
	"github.com/m3rciful/goroute/internal/dialog"
	"github.com/m3rciful/goroute/internal/messages"

	tele "gopkg.in/telebot.v4"
)

// sayKey marks inline buttons whose payload is fed back as typed text.
const sayKey = "say"

func (a *App) registry() (*coretelegram.Registry, error) {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", coretelegram.Command{
		Handler:     a.forward("/start"),
		Description: "Start over or register",
	})
	reg.RegisterCommand("/help", coretelegram.Command{
		Handler:     a.forward("/help"),
		Description: "Show available commands",
	})
	reg.RegisterCommand("/tick", coretelegram.Command{
		Handler:     a.tickCommand,
		Description: "Run one tracking tick now",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/sweep", coretelegram.Command{
		Handler:     a.sweepCommand,
		Description: "Expire unpaid holds now",
		AdminOnly:   true,
	})
	if err := reg.RegisterCallback(sayKey, a.onSay); err != nil {
		return nil, err
	}
	return reg, nil
}

func (a *App) routes(reg *coretelegram.Registry) []coretelegram.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendMD(c, messages.AdminOnly)
		},
	})
	routes = append(routes, router.TextRoutes(a, reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	return routes
}

// HandleText runs one dialog turn and sends its replies in order.
func (a *App) HandleText(c tele.Context, text string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	replies := a.engine.Handle(ctx, dialog.Inbound{
		UserID: sender.ID,
		Name:   sender.FirstName,
		Text:   text,
	})
	for _, r := range replies {
		if err := tghelpers.SendMD(c, r.Text, keyboard.EchoRows(sayKey, r.Buttons)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) forward(text string) tele.HandlerFunc {
	return func(c tele.Context) error { return a.HandleText(c, text) }
}

func (a *App) onSay(c tele.Context) error {
	return a.HandleText(c, callbacks.CallbackPayload(c))
}

func (a *App) tickCommand(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rep, swept := a.tracker.RunOnce(ctx, time.Now())
	logger.Info(ctx, logger.CompTracking, "tick.manual",
		slog.Bool("skipped", rep.Skipped),
		slog.Int("buses", rep.Buses),
	)
	if rep.Skipped {
		return tghelpers.SendMD(c, messages.TickSkipped)
	}
	return tghelpers.SendMD(c, messages.Render(messages.TickSummary,
		"buses", strconv.Itoa(rep.Buses),
		"updated", strconv.Itoa(rep.Updated),
		"released", strconv.Itoa(rep.Released),
		"stopped", strconv.Itoa(rep.Stopped),
		"sessions", strconv.Itoa(swept.Sessions),
		"locks", strconv.Itoa(swept.Locks),
	))
}

func (a *App) sweepCommand(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rep, err := a.fin.ExpireHolds(ctx, time.Now())
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, messages.Render(messages.SweepSummary,
		"sessions", strconv.Itoa(rep.Sessions),
		"locks", strconv.Itoa(rep.Locks),
	))
}

func onLimited(c tele.Context) error {
	return tghelpers.SendText(c, messages.RateLimited)
}
