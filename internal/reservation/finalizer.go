// Package reservation turns booking drafts into gateway orders and settles
// them exactly once when the payment outcome arrives.
package reservation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
	"github.com/m3rciful/goroute/internal/payment"
	"github.com/m3rciful/goroute/internal/seats"
	"github.com/m3rciful/goroute/internal/storage"
)

// DefaultHoldTTL is how long seats stay locked waiting for payment.
const DefaultHoldTTL = 15 * time.Minute

// Config tunes the finalizer.
type Config struct {
	HoldTTL  time.Duration `yaml:"hold_ttl" envconfig:"HOLD_TTL"`
	TimeZone string        `yaml:"time_zone" envconfig:"TIME_ZONE"`
}

// Notifier delivers a text message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID int64, text string) error

func (f NotifierFunc) Notify(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}

// Outcome reports what a payment event did.
type Outcome string

const (
	OutcomeNoop      Outcome = "noop"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeRefund    Outcome = "refund"
	OutcomeCancelled Outcome = "cancelled"
)

// Checkout is the result of CreateOrder.
type Checkout struct {
	Order     payment.Order
	BookingID string
	Amount    int64
}

type Finalizer struct {
	store   storage.Store
	seats   *seats.Service
	gateway payment.Gateway
	notify  Notifier
	locker  *conversation.Locker
	holdTTL time.Duration
	zone    *time.Location
	now     func() time.Time
}

func New(store storage.Store, seatSvc *seats.Service, gw payment.Gateway, n Notifier, locker *conversation.Locker, cfg Config) *Finalizer {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultHoldTTL
	}
	if locker == nil {
		locker = conversation.NewLocker()
	}
	if n == nil {
		n = NotifierFunc(func(context.Context, int64, string) error { return nil })
	}
	return &Finalizer{
		store:   store,
		seats:   seatSvc,
		gateway: gw,
		notify:  n,
		locker:  locker,
		holdTTL: cfg.HoldTTL,
		zone:    messages.Zone(cfg.TimeZone),
		now:     time.Now,
	}
}

// HoldTTL is the configured payment window.
func (f *Finalizer) HoldTTL() time.Duration { return f.holdTTL }

// Zone is the time zone used in notifications.
func (f *Finalizer) Zone() *time.Location { return f.zone }

// CreateOrder opens a gateway order for draft and moves the user to
// AWAITING_PAYMENT. On any failure the user's holds are released and the
// state is reset. The caller holds the user's lock.
func (f *Finalizer) CreateOrder(ctx context.Context, userID int64, draft domain.BookingDraft) (out Checkout, err error) {
	start := time.Now()
	seatNos := draft.SeatNos()
	defer func() {
		logger.Info(ctx, logger.CompReservation, "order.create",
			slog.String("status", logger.Status(err)),
			slog.String("bus_id", draft.BusID),
			slog.Any("seats", seatNos),
			slog.String("order_id", out.Order.ID),
			slog.String("booking_id", out.BookingID),
			slog.Int64("amount", out.Amount),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
	}()

	fail := func(cause error) (Checkout, error) {
		if _, rerr := f.seats.ReleaseHolds(ctx, draft.BusID, userID, holds(draft)); rerr != nil {
			cause = errors.Join(cause, rerr)
		}
		if cerr := f.store.States().Clear(ctx, userID); cerr != nil {
			cause = errors.Join(cause, cerr)
		}
		return Checkout{}, cause
	}

	if len(seatNos) == 0 {
		return fail(domain.InvalidInput("add at least one passenger first"))
	}
	bus, err := f.store.GetBus(ctx, draft.BusID)
	if err != nil {
		return fail(err)
	}
	if extra := without(draft.HeldSeats, seatNos); len(extra) > 0 {
		if _, err := f.seats.ReleaseHolds(ctx, bus.ID, userID, extra); err != nil {
			return fail(err)
		}
	}
	if err := f.seats.VerifyHeld(ctx, bus.ID, userID, seatNos); err != nil {
		return fail(err)
	}
	amount, err := domain.OrderAmount(bus.PriceMinor, len(seatNos))
	if err != nil {
		return fail(err)
	}

	currency := bus.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	bookingID := domain.NewBookingID()
	order, err := f.gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  payment.Receipt(userID, bookingID),
		Notes: map[string]string{
			"user_id":    strconv.FormatInt(userID, 10),
			"bus_id":     bus.ID,
			"booking_id": bookingID,
		},
	})
	if err != nil {
		return fail(err)
	}

	now := f.now()
	booking := domain.Booking{
		ID:            bookingID,
		UserID:        userID,
		BusID:         bus.ID,
		OrderID:       order.ID,
		BoardingPoint: draft.BoardingPoint,
		Destination:   draft.Destination,
		Phone:         draft.Phone,
		Seats:         seatNos,
		Passengers:    slices.Clone(draft.Passengers),
		Currency:      currency,
		Status:        domain.BookingPendingPayment,
		CreatedAt:     now,
	}
	sess := domain.PaymentSession{
		OrderID:   order.ID,
		UserID:    userID,
		BusID:     bus.ID,
		BookingID: bookingID,
		Amount:    amount,
		Currency:  currency,
		Draft:     draft,
		CreatedAt: now,
	}
	st, err := conversation.New(userID, conversation.StepAwaitingPayment, conversation.PaymentHold{
		OrderID:   order.ID,
		BookingID: bookingID,
		BusID:     bus.ID,
		HeldSeats: seatNos,
		Amount:    amount,
	})
	if err != nil {
		return fail(err)
	}
	if err := f.store.CreatePending(ctx, booking, sess, st); err != nil {
		return fail(err)
	}
	return Checkout{Order: order, BookingID: bookingID, Amount: amount}, nil
}

// OnPaymentConfirmed settles a paid order. Redelivery and concurrent
// delivery are no-ops after the first success. When a seat was lost the
// order is aborted and the user is told a refund is due.
func (f *Finalizer) OnPaymentConfirmed(ctx context.Context, orderID string) (Outcome, error) {
	sess, err := f.store.GetSession(ctx, orderID)
	if domain.IsKind(err, domain.KindNotFound) {
		f.logOutcome(ctx, "payment.paid", orderID, OutcomeNoop, nil)
		return OutcomeNoop, nil
	}
	if err != nil {
		return "", err
	}

	unlock, err := f.locker.Lock(ctx, sess.UserID)
	if err != nil {
		return "", err
	}
	defer unlock()

	c, ok, err := f.store.CommitPayment(ctx, orderID, f.now())
	switch {
	case domain.IsKind(err, domain.KindConflict):
		f.logOutcome(ctx, "payment.paid", orderID, OutcomeRefund, err)
		return f.refund(ctx, orderID)
	case err != nil:
		f.logOutcome(ctx, "payment.paid", orderID, "", err)
		return "", err
	case !ok:
		f.logOutcome(ctx, "payment.paid", orderID, OutcomeNoop, nil)
		return OutcomeNoop, nil
	}
	f.logOutcome(ctx, "payment.paid", orderID, OutcomeConfirmed, nil)

	bus, err := f.store.GetBus(ctx, c.Booking.BusID)
	if err != nil {
		logger.Warn(ctx, logger.CompReservation, "ticket.bus_lookup", slog.String("bus_id", c.Booking.BusID), logger.Err(err))
		bus = domain.Bus{ID: c.Booking.BusID}
	}
	f.send(ctx, c.Booking.UserID, TicketText(bus, c.Booking, f.now(), f.zone))
	f.alertManager(ctx, bus, messages.Render(messages.ManagerBooking,
		"busID", bus.ID,
		"seats", messages.Seats(c.Booking.Seats),
		"passengerName", messages.Esc(primaryName(c.Booking)),
		"dateTime", messages.Stamp(f.now(), f.zone),
	))
	return OutcomeConfirmed, nil
}

func (f *Finalizer) refund(ctx context.Context, orderID string) (Outcome, error) {
	sess, ok, err := f.store.AbortPayment(ctx, orderID, f.now())
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeNoop, nil
	}
	f.send(ctx, sess.UserID, messages.Render(messages.PaymentRefund,
		"orderId", messages.Esc(sess.OrderID),
		"seats", messages.Seats(sess.Draft.SeatNos()),
		"bookingId", sess.BookingID,
		"amount", domain.FormatMoney(sess.Amount),
	))
	return OutcomeRefund, nil
}

// OnPaymentFailed releases the order's holds and cancels its booking.
func (f *Finalizer) OnPaymentFailed(ctx context.Context, orderID string) (Outcome, error) {
	sess, err := f.store.GetSession(ctx, orderID)
	if domain.IsKind(err, domain.KindNotFound) {
		f.logOutcome(ctx, "payment.failed", orderID, OutcomeNoop, nil)
		return OutcomeNoop, nil
	}
	if err != nil {
		return "", err
	}
	unlock, err := f.locker.Lock(ctx, sess.UserID)
	if err != nil {
		return "", err
	}
	defer unlock()

	_, ok, err := f.store.AbortPayment(ctx, orderID, f.now())
	if err != nil {
		f.logOutcome(ctx, "payment.failed", orderID, "", err)
		return "", err
	}
	if !ok {
		f.logOutcome(ctx, "payment.failed", orderID, OutcomeNoop, nil)
		return OutcomeNoop, nil
	}
	f.logOutcome(ctx, "payment.failed", orderID, OutcomeCancelled, nil)
	f.send(ctx, sess.UserID, messages.PaymentFailed)
	return OutcomeCancelled, nil
}

// PaymentPending reports whether the order still waits for the gateway.
// It never mutates anything.
func (f *Finalizer) PaymentPending(ctx context.Context, orderID string) (bool, error) {
	_, err := f.store.GetSession(ctx, orderID)
	if domain.IsKind(err, domain.KindNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CancelPending aborts the user's open order. It reports false when the
// user is not awaiting payment. The caller holds the user's lock.
func (f *Finalizer) CancelPending(ctx context.Context, userID int64) (bool, error) {
	st, err := f.store.States().Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if st.Step != conversation.StepAwaitingPayment {
		return false, nil
	}
	return true, f.abortHold(ctx, st)
}

func (f *Finalizer) abortHold(ctx context.Context, st conversation.State) error {
	hold, err := conversation.PayloadAs[conversation.PaymentHold](st)
	if err != nil {
		return errors.Join(err, f.store.States().Clear(ctx, st.UserID))
	}
	_, ok, err := f.store.AbortPayment(ctx, hold.OrderID, f.now())
	if err != nil {
		return err
	}
	if !ok {
		if _, err := f.seats.ReleaseHolds(ctx, hold.BusID, st.UserID, hold.HeldSeats); err != nil {
			return err
		}
	}
	logger.Info(ctx, logger.CompReservation, "payment.cancel",
		slog.String("order_id", hold.OrderID),
		slog.String("booking_id", hold.BookingID),
		slog.Bool("claimed", ok),
	)
	return f.store.States().Clear(ctx, st.UserID)
}

// ResetUser drops whatever the user has in progress: an open order is
// aborted and seats locked during booking steps are released. It reports
// whether any hold was given up. The caller holds the user's lock.
func (f *Finalizer) ResetUser(ctx context.Context, userID int64) (bool, error) {
	st, err := f.store.States().Get(ctx, userID)
	if err != nil {
		return false, err
	}
	switch kind, _ := conversation.KindOf(st.Step); {
	case st.IsIdle():
		return false, nil
	case st.Step == conversation.StepAwaitingPayment:
		return true, f.abortHold(ctx, st)
	case kind == conversation.KindBooking:
		b, err := conversation.PayloadAs[conversation.Booking](st)
		if err == nil && len(b.Draft.HeldSeats) > 0 {
			if _, err := f.seats.ReleaseHolds(ctx, b.Draft.BusID, userID, holds(b.Draft)); err != nil {
				return false, err
			}
			return true, f.store.States().Clear(ctx, userID)
		}
	}
	return false, f.store.States().Clear(ctx, userID)
}

// CancelBooking cancels a confirmed booking of actor and frees its seats.
func (f *Finalizer) CancelBooking(ctx context.Context, actor domain.User, bookingID string) (domain.Booking, error) {
	b, err := f.store.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if b.UserID != actor.ID && actor.Role != domain.RoleOwner {
		return domain.Booking{}, domain.NotFound("booking %s not found", bookingID)
	}
	if b.Status != domain.BookingConfirmed {
		return domain.Booking{}, domain.Conflict("booking %s is %s", bookingID, b.Status)
	}
	b, err = f.store.CancelConfirmed(ctx, bookingID, f.now())
	logger.Info(ctx, logger.CompReservation, "booking.cancel",
		slog.String("status", logger.Status(err)),
		slog.String("booking_id", bookingID),
		slog.String("bus_id", b.BusID),
		logger.Err(err),
	)
	if err != nil {
		return domain.Booking{}, err
	}
	if bus, err := f.store.GetBus(ctx, b.BusID); err == nil {
		f.alertManager(ctx, bus, messages.Render(messages.ManagerCancellation,
			"bookingId", b.ID,
			"busID", bus.ID,
			"seats", messages.Seats(b.Seats),
			"dateTime", messages.Stamp(f.now(), f.zone),
		))
	}
	return b, nil
}

// CheckIn marks a confirmed booking as boarded. Only the bus manager or an
// owner may check passengers in.
func (f *Finalizer) CheckIn(ctx context.Context, actor domain.User, bookingID string) (domain.Booking, error) {
	if !actor.Role.AtLeast(domain.RoleManager) {
		return domain.Booking{}, domain.PermissionDenied("only managers can check passengers in")
	}
	b, err := f.store.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	bus, err := f.store.GetBus(ctx, b.BusID)
	if err != nil {
		return domain.Booking{}, err
	}
	if actor.Role != domain.RoleOwner && bus.ManagerID != 0 && bus.ManagerID != actor.ID {
		return domain.Booking{}, domain.PermissionDenied("bus %s is managed by someone else", bus.ID)
	}
	b, err = f.store.TransitionBooking(ctx, bookingID, domain.BookingConfirmed, domain.BookingBoarded, f.now())
	logger.Info(ctx, logger.CompReservation, "booking.checkin",
		slog.String("status", logger.Status(err)),
		slog.String("booking_id", bookingID),
		slog.String("bus_id", bus.ID),
		logger.Err(err),
	)
	return b, err
}

// ExpireReport summarizes one hold-expiry sweep.
type ExpireReport struct {
	Sessions int
	Locks    int
}

// ExpireHolds aborts orders older than the hold TTL and frees orphan locks
// of the same age. Failures of single orders are collected.
func (f *Finalizer) ExpireHolds(ctx context.Context, now time.Time) (ExpireReport, error) {
	var rep ExpireReport
	cutoff := now.Add(-f.holdTTL)
	expired, err := f.store.ExpiredSessions(ctx, cutoff)
	if err != nil {
		return rep, err
	}
	var errs []error
	for _, sess := range expired {
		ok, err := f.expire(ctx, sess, now)
		if err != nil {
			errs = append(errs, err)
			logger.Warn(ctx, logger.CompReservation, "hold.expire",
				slog.String("status", "fail"),
				slog.String("order_id", sess.OrderID),
				logger.Err(err),
			)
			continue
		}
		if ok {
			rep.Sessions++
		}
	}
	released, err := f.seats.ReleaseStale(ctx, cutoff)
	if err != nil {
		errs = append(errs, err)
	}
	rep.Locks = len(released)
	if rep.Sessions > 0 || rep.Locks > 0 {
		logger.Info(ctx, logger.CompReservation, "hold.sweep",
			slog.Int("sessions", rep.Sessions),
			slog.Int("count", rep.Locks),
		)
	}
	return rep, errors.Join(errs...)
}

func (f *Finalizer) expire(ctx context.Context, sess domain.PaymentSession, now time.Time) (bool, error) {
	unlock, err := f.locker.Lock(ctx, sess.UserID)
	if err != nil {
		return false, err
	}
	defer unlock()
	got, ok, err := f.store.AbortPayment(ctx, sess.OrderID, now)
	if err != nil || !ok {
		return false, err
	}
	f.send(ctx, got.UserID, messages.Render(messages.HoldExpiredNotice,
		"orderId", messages.Esc(got.OrderID),
		"ttl", strconv.Itoa(int(f.holdTTL/time.Minute)),
		"seats", messages.Seats(holds(got.Draft)),
	))
	return true, nil
}

func (f *Finalizer) logOutcome(ctx context.Context, event, orderID string, outcome Outcome, err error) {
	logger.Info(ctx, logger.CompReservation, event,
		slog.String("status", logger.Status(err)),
		slog.String("order_id", orderID),
		slog.String("outcome", string(outcome)),
		logger.Err(err),
	)
}

func (f *Finalizer) send(ctx context.Context, userID int64, text string) {
	if userID == 0 {
		return
	}
	if err := f.notify.Notify(ctx, userID, text); err != nil {
		logger.Warn(ctx, logger.CompReservation, "notify", slog.Int64("user_id", userID), logger.Err(err))
	}
}

func (f *Finalizer) alertManager(ctx context.Context, bus domain.Bus, text string) {
	f.send(ctx, bus.ManagerID, text)
}

// holds is every seat a draft may still hold.
func holds(d domain.BookingDraft) []string {
	out := slices.Clone(d.HeldSeats)
	for _, no := range d.SeatNos() {
		if !slices.Contains(out, no) {
			out = append(out, no)
		}
	}
	return out
}

func without(all, drop []string) []string {
	var out []string
	for _, s := range all {
		if !slices.Contains(drop, s) {
			out = append(out, s)
		}
	}
	return out
}

func primaryName(b domain.Booking) string {
	if len(b.Passengers) == 0 {
		return "A Passenger"
	}
	return b.Passengers[0].Name
}
