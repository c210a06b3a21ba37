package dialog

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
	"github.com/m3rciful/goroute/internal/seats"
)

func (e *Engine) searchBuses(t *turn, _ []string) error {
	return e.begin(t, conversation.StepSearchFrom, conversation.Search{}, messages.SearchFrom)
}

// bookSeat opens a booking draft for one available seat.
func (e *Engine) bookSeat(t *turn, args []string) error {
	busID, ok := busArg(args)
	if !ok || len(args) < 2 {
		t.say(messages.SpecifyBusID)
		return nil
	}
	if t.user.Status != domain.UserActive {
		t.say(messages.CompleteProfileHint)
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
	seatNo, ok := e.availableSeat(t, bus.ID, args[1])
	if !ok {
		return nil
	}
	draft := domain.BookingDraft{BusID: bus.ID, CurrentSeat: seatNo, Phone: t.user.Phone}
	if err := e.setStep(t, conversation.StepBoardingPoint, conversation.Booking{Draft: draft}); err != nil {
		return err
	}
	t.say(messages.Render(messages.PromptBoarding, "points", boardingHint(bus)), boardingButtons(bus)...)
	return nil
}

// availableSeat normalizes raw and checks the seat can be locked. It
// replies and returns false otherwise.
func (e *Engine) availableSeat(t *turn, busID, raw string) (string, bool) {
	row, col, err := domain.ParseSeatNo(raw)
	if err != nil {
		t.say(messages.Render(messages.SeatNotAvailable, "seatNo", messages.Esc(raw), "busID", busID))
		return "", false
	}
	seatNo := domain.SeatNo(row, col)
	seat, err := e.store.GetSeat(t.ctx, busID, seatNo)
	if err != nil || seat.Status != domain.SeatAvailable {
		t.say(messages.Render(messages.SeatNotAvailable, "seatNo", seatNo, "busID", busID))
		return "", false
	}
	return seatNo, true
}

func boardingHint(bus domain.Bus) string {
	if len(bus.BoardingPoints) == 0 {
		return ""
	}
	return " (" + pointList(bus) + ")"
}

func pointList(bus domain.Bus) string {
	names := make([]string, 0, len(bus.BoardingPoints))
	for _, bp := range bus.BoardingPoints {
		names = append(names, messages.Esc(bp.Name)+" "+bp.Time)
	}
	return strings.Join(names, ", ")
}

func boardingButtons(bus domain.Bus) [][]string {
	names := make([]string, 0, len(bus.BoardingPoints))
	for _, bp := range bus.BoardingPoints {
		names = append(names, bp.Name)
	}
	return chunk(names, 2)
}

func (e *Engine) booking(t *turn) (domain.BookingDraft, error) {
	b, err := conversation.PayloadAs[conversation.Booking](t.state)
	return b.Draft, err
}

func (e *Engine) saveDraft(t *turn, step conversation.Step, d domain.BookingDraft) error {
	return e.setStep(t, step, conversation.Booking{Draft: d})
}

func (e *Engine) onBoardingPoint(t *turn) error {
	d, err := e.booking(t)
	if err != nil {
		return err
	}
	bus, err := e.store.GetBus(t.ctx, d.BusID)
	if err != nil {
		return err
	}
	point := t.text
	switch {
	case len(bus.BoardingPoints) > 0 && !bus.HasBoardingPoint(point):
		t.say(messages.Render(messages.BoardingInvalid, "point", messages.Esc(point), "points", pointList(bus)),
			boardingButtons(bus)...)
		return nil
	case len(point) < 3:
		t.say(messages.BoardingTooShort)
		return nil
	}
	for _, bp := range bus.BoardingPoints {
		if strings.EqualFold(bp.Name, point) {
			point = bp.Name
		}
	}
	d.BoardingPoint = point
	if err := e.saveDraft(t, conversation.StepDestination, d); err != nil {
		return err
	}
	t.say(messages.Render(messages.PromptDestination, "to", messages.Esc(bus.Destination)), []string{bus.Destination})
	return nil
}

func (e *Engine) onDestination(t *turn) error {
	d, err := e.booking(t)
	if err != nil {
		return err
	}
	if len(t.text) < 3 {
		t.say(messages.DestinationTooShort)
		return nil
	}
	bus, err := e.store.GetBus(t.ctx, d.BusID)
	if err != nil {
		return err
	}
	d.Destination = t.text
	if err := e.saveDraft(t, conversation.StepGender, d); err != nil {
		return err
	}
	if !strings.EqualFold(d.Destination, bus.Destination) {
		t.say(messages.Render(messages.MidRouteDrop, "destination", messages.Esc(d.Destination), "to", messages.Esc(bus.Destination)))
	}
	t.say(messages.Render(messages.GenderPrompt, "seatNo", d.CurrentSeat), []string{"M", "F"})
	return nil
}

// onGender locks the current seat. A refused seat sends the user back to
// seat selection when the booking already has passengers.
func (e *Engine) onGender(t *turn) error {
	d, err := e.booking(t)
	if err != nil {
		return err
	}
	g, err := domain.ParseGender(t.text)
	if err != nil {
		t.say(messages.GenderInvalid, []string{"M", "F"})
		return nil
	}
	_, err = e.seats.LockSeat(t.ctx, seats.LockRequest{
		BusID:       d.BusID,
		SeatNo:      d.CurrentSeat,
		Gender:      g,
		Holder:      t.in.UserID,
		Destination: d.Destination,
	})
	switch domain.KindOf(err) {
	case domain.KindSafetyViolation:
		t.say(messages.Render(messages.SafetyViolation, "seatNo", d.CurrentSeat))
		return e.seatRefused(t, d)
	case domain.KindConflict, domain.KindNotFound:
		t.say(messages.Render(messages.SeatNotAvailable, "seatNo", d.CurrentSeat, "busID", d.BusID))
		return e.seatRefused(t, d)
	}
	if err != nil {
		return err
	}
	d.CurrentGender = g
	d.Hold(d.CurrentSeat)
	if err := e.saveDraft(t, conversation.StepPassengerDetails, d); err != nil {
		return err
	}
	t.say(messages.DetailsPrompt)
	return nil
}

func (e *Engine) seatRefused(t *turn, d domain.BookingDraft) error {
	if len(d.Passengers) == 0 {
		return e.reset(t)
	}
	d.CurrentSeat, d.CurrentGender = "", ""
	if err := e.saveDraft(t, conversation.StepNextSeat, d); err != nil {
		return err
	}
	return e.promptNextSeat(t, d)
}

var detailsRe = regexp.MustCompile(`^(.+?)\s*/\s*([0-9]{1,3})\s*/\s*([0-9]{12})$`)

func (e *Engine) onPassengerDetails(t *turn) error {
	d, err := e.booking(t)
	if err != nil {
		return err
	}
	m := detailsRe.FindStringSubmatch(strings.Join(strings.Fields(t.text), " "))
	if m == nil {
		t.say(messages.DetailsError)
		return nil
	}
	age, _ := strconv.Atoi(m[2])
	if age < 1 || age > 120 {
		t.say(messages.DetailsError)
		return nil
	}
	seatNo := d.CurrentSeat
	d.Passengers = append(d.Passengers, domain.Passenger{
		Name:   m[1],
		Age:    age,
		Aadhar: m[3],
		Gender: d.CurrentGender,
		SeatNo: seatNo,
	})
	d.CurrentSeat, d.CurrentGender = "", ""
	if err := e.saveDraft(t, conversation.StepBookingAction, d); err != nil {
		return err
	}
	t.say(messages.Render(messages.PassengerSaved, "seatNo", seatNo), []string{"1", "2"})
	return nil
}

func (e *Engine) onBookingAction(t *turn) error {
	d, err := e.booking(t)
	if err != nil {
		return err
	}
	switch t.lower {
	case "1":
		return e.checkout(t, d)
	case "2":
		if len(d.Passengers) >= MaxPassengers {
			t.say(messages.Render(messages.TooManyPassengers, "max", strconv.Itoa(MaxPassengers)), []string{"1"})
			return nil
		}
		if err := e.saveDraft(t, conversation.StepNextSeat, d); err != nil {
			return err
		}
		return e.promptNextSeat(t, d)
	}
	t.say(messages.ActionInvalid, []string{"1", "2"})
	return nil
}

func (e *Engine) promptNextSeat(t *turn, d domain.BookingDraft) error {
	m, err := e.seats.SeatMap(t.ctx, d.BusID)
	if err != nil {
		return err
	}
	free := m.AvailableSeats()
	if len(free) > 12 {
		free = free[:12]
	}
	t.say(messages.Render(messages.NextSeatPrompt, "busID", d.BusID, "seats", messages.Seats(free)))
	return nil
}

// checkout opens the payment order. CreateOrder has already released the
// holds and reset the state when it fails.
func (e *Engine) checkout(t *turn, d domain.BookingDraft) error {
	co, err := e.fin.CreateOrder(t.ctx, t.in.UserID, d)
	if err != nil {
		t.state = conversation.Idle(t.in.UserID)
		switch domain.KindOf(err) {
		case domain.KindConflict:
			t.say(messages.HoldExpired)
			return nil
		case domain.KindExternalServiceFailure:
			t.say(messages.OrderFailed)
			return nil
		}
		return err
	}
	t.say(messages.Render(messages.PaymentRequired,
		"amount", domain.FormatMoney(co.Amount),
		"orderId", messages.Esc(co.Order.ID),
		"paymentUrl", messages.Esc(co.Order.PaymentURL),
		"ttl", strconv.Itoa(int(e.fin.HoldTTL().Minutes())),
	), []string{"Confirm Payment", "Cancel Booking"})
	return nil
}

func (e *Engine) onNextSeat(t *turn) error {
	d, err := e.booking(t)
	if err != nil {
		return err
	}
	if row, col, err := domain.ParseSeatNo(t.text); err == nil && slices.Contains(d.HeldSeats, domain.SeatNo(row, col)) {
		t.say(messages.Render(messages.SeatAlreadyInBooking, "seatNo", domain.SeatNo(row, col)))
		return nil
	}
	seatNo, ok := e.availableSeat(t, d.BusID, t.text)
	if !ok {
		return nil
	}
	d.CurrentSeat = seatNo
	if err := e.saveDraft(t, conversation.StepGender, d); err != nil {
		return err
	}
	t.say(messages.Render(messages.GenderPrompt, "seatNo", seatNo), []string{"M", "F"})
	return nil
}

// onAwaitingPayment restricts the user to confirming or cancelling while
// the order is open.
func (e *Engine) onAwaitingPayment(t *turn) error {
	hold, err := conversation.PayloadAs[conversation.PaymentHold](t.state)
	if err != nil {
		return err
	}
	switch t.lower {
	case "confirm payment":
		pending, err := e.fin.PaymentPending(t.ctx, hold.OrderID)
		if err != nil {
			return err
		}
		if !pending {
			if err := e.clear(t); err != nil {
				return err
			}
			t.say(messages.Render(messages.PaymentAlreadyHandled, "bookingId", hold.BookingID))
			return nil
		}
	case "cancel booking":
		cancelled, err := e.fin.CancelPending(t.ctx, t.in.UserID)
		if err != nil {
			return err
		}
		t.state = conversation.Idle(t.in.UserID)
		if !cancelled {
			t.say(messages.NoPaymentSession)
			return nil
		}
		t.say(messages.SessionCleared)
		return nil
	}
	t.say(messages.Render(messages.PaymentAwaiting, "orderId", messages.Esc(hold.OrderID)), []string{"Confirm Payment", "Cancel Booking"})
	return nil
}
