package dialog

import (
	"regexp"
	"strings"
	"time"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
	"github.com/m3rciful/goroute/internal/storage"
)

type stepFunc func(t *turn) error

// steps maps every step that consumes free text to its handler. Steps not
// listed here fall through to the command table.
func (e *Engine) steps() map[conversation.Step]stepFunc {
	return map[conversation.Step]stepFunc{
		conversation.StepRoleSelect:  e.onRoleSelect,
		conversation.StepPhoneUpdate: e.onPhoneUpdate,

		conversation.StepSearchFrom: e.onSearchFrom,
		conversation.StepSearchTo:   e.onSearchTo,
		conversation.StepSearchDate: e.onSearchDate,

		conversation.StepBoardingPoint:    e.onBoardingPoint,
		conversation.StepDestination:      e.onDestination,
		conversation.StepGender:           e.onGender,
		conversation.StepPassengerDetails: e.onPassengerDetails,
		conversation.StepBookingAction:    e.onBookingAction,
		conversation.StepNextSeat:         e.onNextSeat,
		conversation.StepAwaitingPayment:  e.onAwaitingPayment,

		conversation.StepBusNumber:         e.onBusNumber,
		conversation.StepBusName:           e.onBusName,
		conversation.StepBusRoute:          e.onBusRoute,
		conversation.StepBusPrice:          e.onBusPrice,
		conversation.StepBusKind:           e.onBusKind,
		conversation.StepBusSeatTypes:      e.onBusSeatType,
		conversation.StepBusDepartDate:     e.onBusDepartDate,
		conversation.StepBusDepartTime:     e.onBusDepartTime,
		conversation.StepBusArriveTime:     e.onBusArriveTime,
		conversation.StepBusManagerPhone:   e.onBusManagerPhone,
		conversation.StepBusBoardingPoints: e.onBusBoardingPoint,

		conversation.StepTrackingBus:      e.onTrackingBus,
		conversation.StepTrackingLocation: e.onTrackingLocation,
		conversation.StepTrackingDuration: e.onTrackingDuration,

		conversation.StepSyncBus:      e.onSyncBus,
		conversation.StepSyncEndpoint: e.onSyncEndpoint,

		conversation.StepAadharEndpoint: e.onAadharEndpoint,
		conversation.StepAadharKey:      e.onAadharKey,
	}
}

var phoneRe = regexp.MustCompile(`^[0-9]{10}$`)

func (e *Engine) onRoleSelect(t *turn) error {
	role, ok := domain.ParseRole(t.text)
	if !ok {
		t.say(messages.RoleInvalid, []string{"1", "2", "3"})
		return nil
	}
	reg, err := conversation.PayloadAs[conversation.Registration](t.state)
	if err != nil {
		return err
	}
	u, err := e.store.CreateUser(t.ctx, domain.User{
		ID:       t.in.UserID,
		Name:     orDefault(reg.FirstName, t.in.Name),
		Role:     role,
		Status:   domain.UserPendingDetails,
		JoinedAt: e.now(),
	})
	if err != nil {
		return err
	}
	t.user, t.registered = u, true
	reg.Role = u.Role
	if err := e.setStep(t, conversation.StepProfileDetails, reg); err != nil {
		return err
	}
	t.say(messages.Render(messages.RegistrationStarted, "role", string(u.Role)))
	return nil
}

func (e *Engine) onPhoneUpdate(t *turn) error {
	if !phoneRe.MatchString(t.text) {
		t.say(messages.PhoneInvalid)
		return nil
	}
	if err := e.store.UpdatePhone(t.ctx, t.in.UserID, t.text); err != nil {
		return err
	}
	if err := e.clear(t); err != nil {
		return err
	}
	t.say(messages.PhoneUpdated)
	return nil
}

func (e *Engine) onSearchFrom(t *turn) error {
	dests, err := e.store.Destinations(t.ctx, t.text)
	if err != nil {
		return err
	}
	if len(dests) == 0 {
		t.say(messages.Render(messages.SearchRouteNotFound, "city", messages.Esc(t.text)))
		return nil
	}
	if err := e.setStep(t, conversation.StepSearchTo, conversation.Search{Origin: t.text}); err != nil {
		return err
	}
	t.say(messages.SearchTo, chunk(dests, 3)...)
	return nil
}

func (e *Engine) onSearchTo(t *turn) error {
	s, err := conversation.PayloadAs[conversation.Search](t.state)
	if err != nil {
		return err
	}
	dests, err := e.store.Destinations(t.ctx, s.Origin)
	if err != nil {
		return err
	}
	var dest string
	for _, d := range dests {
		if strings.EqualFold(d, t.text) {
			dest = d
		}
	}
	if dest == "" {
		t.say(messages.SearchCityInvalid, chunk(dests, 3)...)
		return nil
	}
	s.Destination = dest
	if err := e.setStep(t, conversation.StepSearchDate, s); err != nil {
		return err
	}
	t.say(messages.SearchDate, []string{"Today", "Tomorrow"})
	return nil
}

func (e *Engine) onSearchDate(t *turn) error {
	s, err := conversation.PayloadAs[conversation.Search](t.state)
	if err != nil {
		return err
	}
	date, ok := e.parseTravelDate(t.lower)
	if !ok {
		t.say(messages.SearchDateInvalid, []string{"Today", "Tomorrow"})
		return nil
	}
	buses, err := e.store.SearchBuses(t.ctx, storage.SearchQuery{Origin: s.Origin, Destination: s.Destination, Date: date})
	if err != nil {
		return err
	}
	if err := e.clear(t); err != nil {
		return err
	}
	t.say(renderSearch(s, date, buses))
	return nil
}

// parseTravelDate accepts today, tomorrow or YYYY-MM-DD in the engine zone.
func (e *Engine) parseTravelDate(s string) (string, bool) {
	now := e.now().In(e.zone)
	switch s {
	case "today":
		return now.Format(time.DateOnly), true
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(time.DateOnly), true
	}
	d, err := time.ParseInLocation(time.DateOnly, s, e.zone)
	if err != nil {
		return "", false
	}
	return d.Format(time.DateOnly), true
}

// chunk splits items into button rows of n.
func chunk(items []string, n int) [][]string {
	var rows [][]string
	for len(items) > n {
		rows = append(rows, items[:n])
		items = items[n:]
	}
	if len(items) > 0 {
		rows = append(rows, items)
	}
	return rows
}
