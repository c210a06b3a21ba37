package dialog

import (
	"regexp"
	"strings"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
	"github.com/m3rciful/goroute/internal/reservation"
)

// ownBooking loads a booking visible to the user. Owners see every booking.
func (e *Engine) ownBooking(t *turn, id string) (domain.Booking, bool, error) {
	b, err := e.store.GetBooking(t.ctx, id)
	if domain.IsKind(err, domain.KindNotFound) {
		return domain.Booking{}, false, nil
	}
	if err != nil {
		return domain.Booking{}, false, err
	}
	if b.UserID != t.user.ID && t.user.Role != domain.RoleOwner {
		return domain.Booking{}, false, nil
	}
	return b, true, nil
}

func (e *Engine) getTicket(t *turn, args []string) error {
	id, ok := bookingArg(args)
	if !ok {
		t.say(messages.Render(messages.SpecifyBookingID, "example", "get ticket"))
		return nil
	}
	b, ok, err := e.ownBooking(t, id)
	if err != nil {
		return err
	}
	if !ok || (b.Status != domain.BookingConfirmed && b.Status != domain.BookingBoarded) {
		t.say(messages.Render(messages.TicketNotFound, "bookingId", id))
		return nil
	}
	bus, err := e.store.GetBus(t.ctx, b.BusID)
	if err != nil {
		return err
	}
	at := b.CreatedAt
	if b.ConfirmedAt != nil {
		at = *b.ConfirmedAt
	}
	t.say(reservation.TicketText(bus, b, at, e.zone))
	return nil
}

func (e *Engine) checkStatus(t *turn, args []string) error {
	id, ok := bookingArg(args)
	if !ok {
		t.say(messages.Render(messages.SpecifyBookingID, "example", "check status"))
		return nil
	}
	b, ok, err := e.ownBooking(t, id)
	if err != nil {
		return err
	}
	if !ok {
		t.say(messages.Render(messages.TicketNotFound, "bookingId", id))
		return nil
	}
	t.say(messages.Render(messages.BookingStatusInfo,
		"bookingId", b.ID,
		"busID", b.BusID,
		"seats", messages.Seats(b.Seats),
		"status", string(b.Status),
		"date", messages.Stamp(b.CreatedAt, e.zone),
	))
	return nil
}

func (e *Engine) cancelBooking(t *turn, args []string) error {
	id, ok := bookingArg(args)
	if !ok {
		t.say(messages.Render(messages.SpecifyBookingID, "example", "cancel booking"))
		return nil
	}
	b, err := e.fin.CancelBooking(t.ctx, t.user, id)
	switch domain.KindOf(err) {
	case domain.KindNotFound, domain.KindConflict:
		t.say(messages.Render(messages.BookingNotActive, "bookingId", id))
		return nil
	}
	if err != nil {
		return err
	}
	at := e.now()
	if b.CancelledAt != nil {
		at = *b.CancelledAt
	}
	t.say(messages.Render(messages.BookingCancelled, "bookingId", b.ID, "dateTime", messages.Stamp(at, e.zone)))
	return nil
}

func (e *Engine) myBookings(t *turn, _ []string) error {
	list, err := e.store.BookingsByUser(t.ctx, t.user.ID, 5)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		t.say(messages.NoBookings)
		return nil
	}
	var sb strings.Builder
	sb.WriteString(messages.BookingsHeader)
	for _, b := range list {
		name := b.BusID
		if bus, err := e.store.GetBus(t.ctx, b.BusID); err == nil && bus.Name != "" {
			name = bus.Name
		}
		sb.WriteString(messages.Render(messages.BookingsItem,
			"bookingId", b.ID,
			"busID", b.BusID,
			"name", messages.Esc(name),
			"seats", messages.Seats(b.Seats),
			"status", string(b.Status),
			"date", messages.Stamp(b.CreatedAt, e.zone),
		))
	}
	sb.WriteString(messages.BookingsFooter)
	t.say(sb.String())
	return nil
}

func (e *Engine) requestSeatChange(t *turn, args []string) error {
	id, ok := bookingArg(args)
	if !ok || len(args) < 2 {
		t.say(messages.SeatChangeInvalid)
		return nil
	}
	row, col, err := domain.ParseSeatNo(args[1])
	if err != nil {
		t.say(messages.SeatChangeInvalid)
		return nil
	}
	t.say(messages.Render(messages.SeatChangeWIP, "bookingId", id, "newSeat", domain.SeatNo(row, col)))
	return nil
}

var (
	fareAlertRe = regexp.MustCompile(`(?i)^(.+?)\s+to\s+(.+?)\s*@\s*([0-9]{1,2}:[0-9]{2})$`)
	clockRe     = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)
)

func (e *Engine) fareAlert(t *turn, args []string) error {
	m := fareAlertRe.FindStringSubmatch(strings.Join(args, " "))
	if m == nil || !clockRe.MatchString(m[3]) {
		t.say(messages.FareAlertInvalid)
		return nil
	}
	a := domain.FareAlert{
		UserID:      t.user.ID,
		Origin:      m[1],
		Destination: m[2],
		Time:        m[3],
		CreatedAt:   e.now(),
	}
	if err := e.store.AddFareAlert(t.ctx, a); err != nil {
		return err
	}
	t.say(messages.Render(messages.FareAlertSet, "from", messages.Esc(a.Origin), "to", messages.Esc(a.Destination), "time", a.Time))
	return nil
}

func (e *Engine) shareLocation(t *turn, _ []string) error {
	t.say(messages.ShareLocation)
	return nil
}

var profileRe = regexp.MustCompile(`^(.+?)\s*/\s*([0-9]{12})\s*/\s*([0-9]{10})$`)

// profileDetails completes registration or replaces the profile.
func (e *Engine) profileDetails(t *turn, args []string) error {
	m := profileRe.FindStringSubmatch(strings.Join(args, " "))
	if m == nil {
		t.say(messages.ProfileUpdateError)
		return nil
	}
	if err := e.store.UpdateProfile(t.ctx, t.user.ID, m[1], m[2], m[3]); err != nil {
		return err
	}
	if t.state.Step == conversation.StepProfileDetails {
		if err := e.clear(t); err != nil {
			return err
		}
	}
	t.say(messages.ProfileUpdated)
	return nil
}

func (e *Engine) myProfile(t *turn, _ []string) error {
	u := t.user
	t.say(messages.Render(messages.ProfileView,
		"name", messages.Esc(orDefault(u.Name, "-")),
		"phone", orDefault(u.Phone, "-"),
		"aadhar", maskAadhar(u.Aadhar),
		"role", string(u.Role),
		"status", string(u.Status),
		"joined", messages.Stamp(u.JoinedAt, e.zone),
	))
	if u.Status != domain.UserActive {
		t.say(messages.CompleteProfileHint)
	}
	return nil
}

// maskAadhar keeps the last four digits.
func maskAadhar(s string) string {
	if len(s) <= 4 {
		return orDefault(s, "-")
	}
	return strings.Repeat("X", len(s)-4) + s[len(s)-4:]
}

func (e *Engine) updatePhone(t *turn, _ []string) error {
	return e.begin(t, conversation.StepPhoneUpdate, nil, messages.UpdatePhonePrompt)
}

func (e *Engine) showSeats(t *turn, args []string) error {
	busID, ok := busArg(args)
	if !ok {
		t.say(messages.SpecifyBusID)
		return nil
	}
	if _, err := e.store.GetBus(t.ctx, busID); domain.IsKind(err, domain.KindNotFound) {
		t.say(messages.Render(messages.BusNotFound, "busID", busID))
		return nil
	} else if err != nil {
		return err
	}
	m, err := e.seats.SeatMap(t.ctx, busID)
	if domain.IsKind(err, domain.KindNotFound) {
		t.say(messages.Render(messages.NoSeatsFound, "busID", busID))
		return nil
	}
	if err != nil {
		return err
	}
	t.say(renderSeatMap(m))
	return nil
}

func (e *Engine) trackBus(t *turn, args []string) error {
	busID, ok := busArg(args)
	if !ok {
		t.say(messages.SpecifyBusID)
		return nil
	}
	bus, err := e.store.GetBus(t.ctx, busID)
	if domain.IsKind(err, domain.KindNotFound) {
		t.say(messages.Render(messages.BusNotFound, "busID", busID))
		return nil
	}
	if err != nil {
		return err
	}
	if !bus.IsTracking {
		t.say(messages.Render(messages.TrackingNotStarted, "busID", bus.ID))
		return nil
	}
	updated := "-"
	if bus.LastLocationAt != nil {
		updated = messages.Clock(*bus.LastLocationAt, e.zone)
	}
	t.say(messages.Render(messages.PassengerTracking,
		"busID", bus.ID,
		"location", messages.Esc(orDefault(bus.LastLocation, "-")),
		"time", updated,
		"trackingUrl", e.tracker.TrackingURL(),
	))
	return nil
}
