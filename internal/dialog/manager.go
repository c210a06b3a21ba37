package dialog

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
)

// maxRows bounds the per-row seat type questions of the bus wizard.
const maxRows = 10

func (e *Engine) addBus(t *turn, _ []string) error {
	return e.begin(t, conversation.StepBusNumber, conversation.BusDraft{}, messages.AddBusInit)
}

func (e *Engine) busDraft(t *turn) (conversation.BusDraft, error) {
	return conversation.PayloadAs[conversation.BusDraft](t.state)
}

var busNumberRe = regexp.MustCompile(`^[A-Z0-9]{4,15}$`)

func (e *Engine) onBusNumber(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	number := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(t.text))
	if !busNumberRe.MatchString(number) {
		t.say(messages.BusNumberInvalid)
		return nil
	}
	b.Number = number
	return e.begin(t, conversation.StepBusName, b, messages.AddBusName)
}

func (e *Engine) onBusName(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	b.Name = t.text
	return e.begin(t, conversation.StepBusRoute, b, messages.AddBusRoute)
}

var routeRe = regexp.MustCompile(`(?i)^(.+?)\s+to\s+(.+)$`)

func (e *Engine) onBusRoute(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	m := routeRe.FindStringSubmatch(t.text)
	if m == nil {
		t.say(messages.AddBusRouteInvalid)
		return nil
	}
	b.Origin, b.Destination = strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	return e.begin(t, conversation.StepBusPrice, b, messages.AddBusPrice)
}

func (e *Engine) onBusPrice(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	price, err := domain.ParsePrice(t.text)
	if err != nil {
		t.say(messages.AddBusPriceInvalid)
		return nil
	}
	b.PriceMinor = price
	return e.begin(t, conversation.StepBusKind, b, messages.AddBusKind, []string{"Seater", "Sleeper", "Both"})
}

var seatTypeButtons = []string{"Sleeper Upper", "Sleeper Lower", "Seater"}

func (e *Engine) onBusKind(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	switch t.lower {
	case domain.BusKindSeater:
		b.BusType = t.lower
		b.Rows = b.Rows[:0]
		for row := 1; row <= maxRows; row++ {
			b.Rows = append(b.Rows, domain.RowConfig{Row: row, Type: domain.SeatSeater})
		}
		return e.begin(t, conversation.StepBusDepartDate, b, messages.AddBusDepartDate)
	case domain.BusKindSleeper, domain.BusKindBoth:
		b.BusType = t.lower
		b.Rows = nil
		return e.begin(t, conversation.StepBusSeatTypes, b,
			messages.Render(messages.AddSeatType, "row", strconv.Itoa(b.NextRow())), seatTypeButtons)
	}
	t.say(messages.InvalidKind, []string{"Seater", "Sleeper", "Both"})
	return nil
}

func (e *Engine) onBusSeatType(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	st, ok := domain.ParseSeatType(t.text)
	if !ok {
		t.say(messages.InvalidSeatType, seatTypeButtons)
		return nil
	}
	b.Rows = append(b.Rows, domain.RowConfig{Row: b.NextRow(), Type: st})
	if len(b.Rows) < maxRows {
		return e.begin(t, conversation.StepBusSeatTypes, b,
			messages.Render(messages.AddSeatType, "row", strconv.Itoa(b.NextRow())), seatTypeButtons)
	}
	return e.begin(t, conversation.StepBusDepartDate, b, messages.AddBusDepartDate)
}

func (e *Engine) onBusDepartDate(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	d, err := time.Parse(time.DateOnly, t.text)
	if err != nil {
		t.say(messages.InvalidDate)
		return nil
	}
	b.DepartDate = d.Format(time.DateOnly)
	return e.begin(t, conversation.StepBusDepartTime, b, messages.AddBusDepartTime)
}

func (e *Engine) onBusDepartTime(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	hm, ok := parseClock(t.text)
	if !ok {
		t.say(messages.InvalidTime)
		return nil
	}
	b.DepartTime = hm
	return e.begin(t, conversation.StepBusArriveTime, b, messages.AddBusArriveTime)
}

func (e *Engine) onBusArriveTime(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	hm, ok := parseClock(t.text)
	if !ok {
		t.say(messages.InvalidTime)
		return nil
	}
	b.ArriveTime = hm
	var buttons [][]string
	if t.user.Phone != "" {
		buttons = append(buttons, []string{t.user.Phone})
	}
	return e.begin(t, conversation.StepBusManagerPhone, b, messages.AddBusPhone, buttons...)
}

func (e *Engine) onBusManagerPhone(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	if !phoneRe.MatchString(t.text) {
		t.say(messages.PhoneInvalid)
		return nil
	}
	b.ManagerPhone = t.text
	return e.begin(t, conversation.StepBusBoardingPoints, b,
		messages.Render(messages.AddBoardingInit, "max", strconv.Itoa(domain.MaxBoardingPoints)))
}

var boardingRe = regexp.MustCompile(`^(.+?)\s*/\s*([0-9]{1,2}:[0-9]{2})$`)

func (e *Engine) onBusBoardingPoint(t *turn) error {
	b, err := e.busDraft(t)
	if err != nil {
		return err
	}
	if t.lower == "done" {
		if len(b.BoardingPoints) == 0 {
			t.say(messages.AddBoardingNone)
			return nil
		}
		return e.saveBus(t, b)
	}
	m := boardingRe.FindStringSubmatch(t.text)
	if m == nil {
		t.say(messages.AddBoardingInvalid)
		return nil
	}
	hm, ok := parseClock(m[2])
	if !ok {
		t.say(messages.AddBoardingInvalid)
		return nil
	}
	b.BoardingPoints = append(b.BoardingPoints, domain.BoardingPoint{Name: m[1], Time: hm})
	if len(b.BoardingPoints) >= domain.MaxBoardingPoints {
		return e.saveBus(t, b)
	}
	return e.begin(t, conversation.StepBusBoardingPoints, b, messages.AddBoardingMore, []string{"DONE"})
}

// saveBus commits the wizard. The bus starts scheduled at its origin.
func (e *Engine) saveBus(t *turn, b conversation.BusDraft) error {
	bus := domain.Bus{
		ID:             domain.NewBusID(),
		Number:         b.Number,
		Name:           b.Name,
		OwnerName:      t.user.Name,
		Origin:         b.Origin,
		Destination:    b.Destination,
		DepartDate:     b.DepartDate,
		DepartTime:     b.DepartTime,
		ArriveTime:     b.ArriveTime,
		ManagerID:      t.user.ID,
		ManagerPhone:   b.ManagerPhone,
		PriceMinor:     b.PriceMinor,
		Currency:       domain.DefaultCurrency,
		Kind:           b.BusType,
		Rows:           b.Rows,
		BoardingPoints: b.BoardingPoints,
		Status:         domain.BusScheduled,
		LastLocation:   b.Origin,
		CreatedAt:      e.now(),
	}
	if err := e.store.CreateBus(t.ctx, bus); err != nil {
		return err
	}
	if t.user.Phone == "" {
		if err := e.store.UpdatePhone(t.ctx, t.user.ID, b.ManagerPhone); err != nil {
			return err
		}
	}
	if err := e.clear(t); err != nil {
		return err
	}
	t.say(messages.Render(messages.BusSaved,
		"busID", bus.ID,
		"route", messages.Esc(bus.Origin+" to "+bus.Destination),
	))
	return nil
}

var hhmmRe = regexp.MustCompile(`^([0-9]{1,2}):([0-9]{2})$`)

// parseClock normalizes a 24h "H:MM" to "HH:MM".
func parseClock(s string) (string, bool) {
	m := hhmmRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if h > 23 || mm > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, mm), true
}

func (e *Engine) addSeats(t *turn, args []string) error {
	busID, ok := busArg(args)
	if !ok || len(args) < 2 {
		t.say(messages.SeatsInvalid)
		return nil
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		t.say(messages.SeatsInvalid)
		return nil
	}
	added, err := e.seats.CreateSeats(t.ctx, t.user, busID, count)
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		t.say(messages.Render(messages.BusNotFound, "busID", busID))
		return nil
	case domain.KindStateInconsistency:
		t.say(messages.Render(messages.NoRowConfig, "busID", busID))
		return nil
	}
	if err != nil {
		return err
	}
	t.say(messages.Render(messages.SeatsSaved, "count", strconv.Itoa(added), "busID", busID))
	return nil
}

// managedBus loads a bus the user may operate on.
func (e *Engine) managedBus(t *turn, busID string) (domain.Bus, error) {
	bus, err := e.store.GetBus(t.ctx, busID)
	if err != nil {
		return domain.Bus{}, err
	}
	if t.user.Role != domain.RoleOwner && bus.ManagerID != 0 && bus.ManagerID != t.user.ID {
		return domain.Bus{}, domain.PermissionDenied("bus %s is managed by someone else", bus.ID)
	}
	return bus, nil
}

func (e *Engine) showTrips(t *turn, _ []string) error {
	buses, err := e.store.BusesByManager(t.ctx, t.user.ID)
	if err != nil {
		return err
	}
	var sb strings.Builder
	for _, b := range buses {
		if b.Status != domain.BusScheduled && b.Status != domain.BusDeparted {
			continue
		}
		sb.WriteString(messages.Render(messages.TripsItem,
			"busID", b.ID,
			"from", messages.Esc(b.Origin),
			"to", messages.Esc(b.Destination),
			"date", b.DepartDate,
			"time", b.DepartTime,
			"status", string(b.Status),
		))
	}
	if sb.Len() == 0 {
		t.say(messages.NoActiveTrips)
		return nil
	}
	t.say(messages.TripsHeader + sb.String())
	return nil
}

func (e *Engine) showManifest(t *turn, args []string) error {
	busID, ok := busArg(args)
	if !ok {
		t.say(messages.SpecifyBusID)
		return nil
	}
	bus, err := e.managedBus(t, busID)
	if domain.IsKind(err, domain.KindNotFound) {
		t.say(messages.Render(messages.BusNotFound, "busID", busID))
		return nil
	}
	if err != nil {
		return err
	}
	bookings, err := e.store.BookingsByBus(t.ctx, bus.ID, domain.BookingConfirmed, domain.BookingBoarded)
	if err != nil {
		return err
	}
	t.say(renderManifest(bus, bookings))
	return nil
}

func (e *Engine) checkIn(t *turn, args []string) error {
	id, ok := bookingArg(args)
	if !ok {
		t.say(messages.CheckinInvalid)
		return nil
	}
	_, err := e.fin.CheckIn(t.ctx, t.user, id)
	switch domain.KindOf(err) {
	case domain.KindNotFound, domain.KindConflict:
		t.say(messages.Render(messages.BookingNotActive, "bookingId", id))
		return nil
	}
	if err != nil {
		return err
	}
	t.say(messages.Render(messages.CheckinSuccess, "bookingId", id))
	return nil
}

func (e *Engine) releaseSeat(t *turn, args []string) error {
	busID, ok := busArg(args)
	if !ok || len(args) < 2 {
		t.say(messages.SeatReleaseInvalid)
		return nil
	}
	seat, err := e.seats.ReleaseSeat(t.ctx, t.user, busID, args[1])
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		t.say(messages.SeatReleaseInvalid)
		return nil
	case domain.KindNotFound, domain.KindConflict:
		t.say(messages.Render(messages.SeatNotAvailable, "seatNo", messages.Esc(args[1]), "busID", busID))
		return nil
	}
	if err != nil {
		return err
	}
	t.say(messages.Render(messages.SeatReleaseSuccess, "seatNo", seat.SeatNo, "busID", busID))
	return nil
}

func (e *Engine) showFareAlerts(t *turn, _ []string) error {
	alerts, err := e.store.RecentFareAlerts(t.ctx, 10)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		t.say(messages.NoFareAlerts)
		return nil
	}
	var sb strings.Builder
	sb.WriteString(messages.FareAlertsHeader)
	for _, a := range alerts {
		sb.WriteString(messages.Render(messages.FareAlertsItem,
			"from", messages.Esc(a.Origin),
			"to", messages.Esc(a.Destination),
			"time", a.Time,
			"userId", strconv.FormatInt(a.UserID, 10),
			"date", messages.Stamp(a.CreatedAt, e.zone),
		))
	}
	t.say(sb.String())
	return nil
}

// Tracking wizard.

func (e *Engine) startTracking(t *turn, args []string) error {
	if len(args) == 0 {
		return e.begin(t, conversation.StepTrackingBus, conversation.TrackingDraft{}, messages.TrackingPrompt)
	}
	return e.trackingBus(t, args)
}

func (e *Engine) onTrackingBus(t *turn) error {
	return e.trackingBus(t, []string{t.text})
}

func (e *Engine) trackingBus(t *turn, args []string) error {
	busID, ok := busArg(args)
	if !ok {
		t.say(messages.SpecifyBusID)
		return nil
	}
	bus, err := e.managedBus(t, busID)
	if domain.IsKind(err, domain.KindNotFound) {
		t.say(messages.Render(messages.BusNotFound, "busID", busID))
		return nil
	}
	if err != nil {
		return err
	}
	var buttons [][]string
	if bus.LastLocation != "" {
		buttons = append(buttons, []string{bus.LastLocation})
	}
	return e.begin(t, conversation.StepTrackingLocation, conversation.TrackingDraft{BusID: bus.ID},
		messages.TrackingLocationPrompt, buttons...)
}

func (e *Engine) onTrackingLocation(t *turn) error {
	d, err := conversation.PayloadAs[conversation.TrackingDraft](t.state)
	if err != nil {
		return err
	}
	d.Location = t.text
	return e.begin(t, conversation.StepTrackingDuration, d, messages.TrackingDurationPrompt,
		[]string{"1 hours", "3 hours", "6 hours"})
}

func (e *Engine) onTrackingDuration(t *turn) error {
	d, err := conversation.PayloadAs[conversation.TrackingDraft](t.state)
	if err != nil {
		return err
	}
	period, err := domain.ParseTrackingDuration(t.text)
	if err != nil || period < e.tracker.MinDuration() {
		t.say(messages.TrackingDurationBad)
		return nil
	}
	now := e.now()
	stopAt, err := e.tracker.StartTracking(t.ctx, t.user, d.BusID, d.Location, period, now)
	if err != nil {
		return err
	}
	if err := e.clear(t); err != nil {
		return err
	}
	t.say(messages.Render(messages.TrackingStarted,
		"busID", d.BusID,
		"trackingUrl", e.tracker.TrackingURL(),
		"stopTime", messages.Clock(stopAt, e.zone),
	))
	return nil
}

func (e *Engine) stopTracking(t *turn, args []string) error {
	busID, ok := busArg(args)
	if !ok {
		t.say(messages.SpecifyBusID)
		return nil
	}
	stopped, err := e.tracker.StopTracking(t.ctx, t.user, busID)
	if domain.IsKind(err, domain.KindNotFound) {
		t.say(messages.Render(messages.BusNotFound, "busID", busID))
		return nil
	}
	if err != nil {
		return err
	}
	if !stopped {
		t.say(messages.Render(messages.TrackingNotActive, "busID", busID))
		return nil
	}
	t.say(messages.Render(messages.TrackingStopped, "busID", busID))
	return nil
}

// Inventory sync wizard.

func (e *Engine) syncInventory(t *turn, _ []string) error {
	return e.begin(t, conversation.StepSyncBus, conversation.SyncDraft{}, messages.SyncInit)
}

func (e *Engine) onSyncBus(t *turn) error {
	busID, ok := busArg([]string{t.text})
	if !ok {
		t.say(messages.SpecifyBusID)
		return nil
	}
	bus, err := e.managedBus(t, busID)
	if domain.IsKind(err, domain.KindNotFound) {
		t.say(messages.Render(messages.BusNotFound, "busID", busID))
		return nil
	}
	if err != nil {
		return err
	}
	return e.begin(t, conversation.StepSyncEndpoint, conversation.SyncDraft{BusID: bus.ID},
		messages.Render(messages.SyncURL, "busID", bus.ID))
}

func (e *Engine) onSyncEndpoint(t *turn) error {
	d, err := conversation.PayloadAs[conversation.SyncDraft](t.state)
	if err != nil {
		return err
	}
	if !validURL(t.text) {
		t.say(messages.URLInvalid)
		return nil
	}
	if err := e.store.SetSync(t.ctx, d.BusID, t.text, domain.SyncPending); err != nil {
		return err
	}
	if err := e.clear(t); err != nil {
		return err
	}
	t.say(messages.Render(messages.SyncSuccess, "busID", d.BusID, "url", messages.Esc(t.text)))
	return nil
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
