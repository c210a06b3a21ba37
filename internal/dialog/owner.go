package dialog

import (
	"strconv"
	"time"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
)

func (e *Engine) assignManager(t *turn, args []string) error {
	return e.changeRole(t, args, domain.RoleManager, messages.StaffAssigned)
}

func (e *Engine) revokeManager(t *turn, args []string) error {
	return e.changeRole(t, args, domain.RoleUser, messages.StaffRevoked)
}

func (e *Engine) changeRole(t *turn, args []string, role domain.Role, done string) error {
	if len(args) != 1 {
		t.say(messages.StaffInvalid)
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		t.say(messages.StaffInvalid)
		return nil
	}
	if _, err := e.store.GetUser(t.ctx, id); domain.IsKind(err, domain.KindNotFound) {
		t.say(messages.Render(messages.StaffUnknown, "chatId", args[0]))
		return nil
	} else if err != nil {
		return err
	}
	if err := e.store.SetRole(t.ctx, id, role); err != nil {
		return err
	}
	t.say(messages.Render(done, "chatId", args[0]))
	return nil
}

func (e *Engine) showRevenue(t *turn, args []string) error {
	date := e.now().In(e.zone).Format(time.DateOnly)
	if len(args) > 0 {
		d, err := time.Parse(time.DateOnly, args[0])
		if err != nil {
			t.say(messages.InvalidDate)
			return nil
		}
		date = d.Format(time.DateOnly)
	}
	count, total, err := e.store.Revenue(t.ctx, date)
	if err != nil {
		return err
	}
	t.say(messages.Render(messages.RevenueReport,
		"date", date,
		"count", strconv.Itoa(count),
		"total", domain.FormatMoney(total),
	))
	return nil
}

func (e *Engine) setStatus(t *turn, args []string) error {
	busID, ok := busArg(args)
	if !ok || len(args) < 2 {
		t.say(messages.BusStatusInvalid)
		return nil
	}
	st, ok := domain.ParseBusStatus(args[1])
	if !ok {
		t.say(messages.BusStatusInvalid)
		return nil
	}
	err := e.store.SetBusStatus(t.ctx, busID, st)
	if domain.IsKind(err, domain.KindNotFound) {
		t.say(messages.Render(messages.BusNotFound, "busID", busID))
		return nil
	}
	if err != nil {
		return err
	}
	t.say(messages.Render(messages.BusStatusUpdated, "busID", busID, "status", string(st)))
	return nil
}

func (e *Engine) setupAadhar(t *turn, _ []string) error {
	return e.begin(t, conversation.StepAadharEndpoint, conversation.SettingDraft{}, messages.AadharAPIInit)
}

func (e *Engine) onAadharEndpoint(t *turn) error {
	if !validURL(t.text) {
		t.say(messages.URLInvalid)
		return nil
	}
	return e.begin(t, conversation.StepAadharKey, conversation.SettingDraft{Endpoint: t.text},
		messages.Render(messages.AadharAPIKeyPrompt, "url", messages.Esc(t.text)), []string{"skip"})
}

func (e *Engine) onAadharKey(t *turn) error {
	d, err := conversation.PayloadAs[conversation.SettingDraft](t.state)
	if err != nil {
		return err
	}
	if err := e.store.PutSetting(t.ctx, domain.SettingAadharEndpoint, d.Endpoint); err != nil {
		return err
	}
	if t.lower != "skip" {
		if err := e.store.PutSetting(t.ctx, domain.SettingAadharKey, t.text); err != nil {
			return err
		}
	}
	if err := e.clear(t); err != nil {
		return err
	}
	t.say(messages.Render(messages.AadharAPISuccess, "url", messages.Esc(d.Endpoint)))
	return nil
}

func (e *Engine) showAadhar(t *turn, _ []string) error {
	endpoint, err := e.store.GetSetting(t.ctx, domain.SettingAadharEndpoint)
	if err != nil && !domain.IsKind(err, domain.KindNotFound) {
		return err
	}
	key, err := e.store.GetSetting(t.ctx, domain.SettingAadharKey)
	if err != nil && !domain.IsKind(err, domain.KindNotFound) {
		return err
	}
	status := "❌ Not configured"
	switch {
	case endpoint != "" && key != "":
		status = "✅ Configured (API key set)"
	case endpoint != "":
		status = "⚠️ Endpoint set, no API key"
	}
	t.say(messages.Render(messages.AadharConfigShow, "url", orDefault(endpoint, "not set"), "status", status))
	return nil
}
