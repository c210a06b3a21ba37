package tracking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/payment"
	"github.com/m3rciful/goroute/internal/reservation"
	"github.com/m3rciful/goroute/internal/seats"
	"github.com/m3rciful/goroute/internal/storage/memstore"
)

const managerID = 42

var manager = domain.User{ID: managerID, Role: domain.RoleManager}

type outbox struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (o *outbox) Notify(_ context.Context, userID int64, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sent == nil {
		o.sent = make(map[int64][]string)
	}
	o.sent[userID] = append(o.sent[userID], text)
	return nil
}

func (o *outbox) to(userID int64) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.sent[userID]...)
}

type heldLease struct{}

func (heldLease) Acquire(context.Context) (func(), bool, error) { return nil, false, nil }

// downSource fails for one bus and rotates the rest.
type downSource struct{ busID string }

func (d downSource) Next(ctx context.Context, bus domain.Bus) (string, error) {
	if bus.ID == d.busID {
		return "", errors.New("gps down")
	}
	return WaypointRotation{}.Next(ctx, bus)
}

type env struct {
	store *memstore.Store
	seats *seats.Service
	fin   *reservation.Finalizer
	sched *Scheduler
	out   *outbox
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	err := store.CreateBus(ctx, domain.Bus{
		ID: "BUS1", Origin: "Mumbai", Destination: "Nagpur", ManagerID: managerID, PriceMinor: 50000,
		Rows:           []domain.RowConfig{{Row: 1, Type: domain.SeatSeater}, {Row: 2, Type: domain.SeatSeater}},
		BoardingPoints: []domain.BoardingPoint{{Name: "Pune", Time: "10:00"}},
	})
	if err != nil {
		t.Fatalf("CreateBus: %v", err)
	}
	seatSvc := seats.New(store, nil)
	if _, err := seatSvc.CreateSeats(ctx, manager, "BUS1", 8); err != nil {
		t.Fatalf("CreateSeats: %v", err)
	}
	out := &outbox{}
	return &env{
		store: store,
		seats: seatSvc,
		fin:   reservation.New(store, seatSvc, payment.Offline{}, nil, nil, reservation.Config{}),
		sched: New(store, seatSvc, out, Config{}, opts),
		out:   out,
	}
}

// book runs a paid booking of seatNo for userID.
func (e *env) book(t *testing.T, userID int64, seatNo, destination string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := e.seats.LockSeat(ctx, seats.LockRequest{
		BusID: "BUS1", SeatNo: seatNo, Gender: domain.GenderMale, Holder: userID, Destination: destination,
	}); err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	d := domain.BookingDraft{BusID: "BUS1", Destination: destination}
	d.Hold(seatNo)
	d.Passengers = []domain.Passenger{{Name: "Ravi", Age: 40, Gender: domain.GenderMale, SeatNo: seatNo}}
	co, err := e.fin.CreateOrder(ctx, userID, d)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if outcome, err := e.fin.OnPaymentConfirmed(ctx, co.Order.ID); err != nil || outcome != reservation.OutcomeConfirmed {
		t.Fatalf("OnPaymentConfirmed = %s, %v", outcome, err)
	}
	return co.BookingID
}

func TestAutoStopNotifiesManagerOnce(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if _, err := e.sched.StartTracking(ctx, manager, "BUS1", "Mumbai", 90*time.Minute, start); err != nil {
		t.Fatalf("StartTracking: %v", err)
	}

	rep, err := e.sched.Tick(ctx, start.Add(30*time.Minute))
	if err != nil || rep.Updated != 1 || rep.Stopped != 0 {
		t.Fatalf("first tick = %+v, %v", rep, err)
	}
	bus, _ := e.store.GetBus(ctx, "BUS1")
	if bus.LastLocation != "Pune" {
		t.Fatalf("location = %q, want Pune", bus.LastLocation)
	}

	rep, err = e.sched.Tick(ctx, start.Add(91*time.Minute))
	if err != nil || rep.Stopped != 1 {
		t.Fatalf("stop tick = %+v, %v", rep, err)
	}
	if _, err := e.sched.Tick(ctx, start.Add(96*time.Minute)); err != nil {
		t.Fatalf("late tick: %v", err)
	}

	msgs := e.out.to(managerID)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "1h 30m") {
		t.Fatalf("manager messages = %v", msgs)
	}
	bus, _ = e.store.GetBus(ctx, "BUS1")
	if bus.IsTracking || bus.Status != domain.BusArrived || bus.TrackingStopAt != nil {
		t.Fatalf("bus after stop = %+v", bus)
	}
}

func TestMidRouteReleaseKeepsBookingConfirmed(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	bypass := e.book(t, 7, "2A", "Pune Bypass")
	through := e.book(t, 8, "1A", "Nagpur")

	now := time.Now()
	if _, err := e.sched.StartTracking(ctx, manager, "BUS1", "pune", time.Hour, now); err != nil {
		t.Fatalf("StartTracking: %v", err)
	}
	rep, err := e.sched.Tick(ctx, now.Add(5*time.Minute))
	if err != nil || rep.Released != 1 {
		t.Fatalf("tick = %+v, %v", rep, err)
	}

	seat, _ := e.store.GetSeat(ctx, "BUS1", "2A")
	if seat.Status != domain.SeatAvailable || seat.BookingID != "" {
		t.Fatalf("2A = %+v", seat)
	}
	if seat, _ := e.store.GetSeat(ctx, "BUS1", "1A"); seat.Status != domain.SeatBooked {
		t.Fatalf("1A = %s", seat.Status)
	}
	for _, id := range []string{bypass, through} {
		if b, _ := e.store.GetBooking(ctx, id); b.Status != domain.BookingConfirmed {
			t.Fatalf("booking %s = %s", id, b.Status)
		}
	}
	var released bool
	for _, m := range e.out.to(7) {
		released = released || strings.Contains(m, "Seat 2A")
	}
	if !released {
		t.Fatalf("passenger 7 not told: %v", e.out.to(7))
	}
}

func TestStartTrackingNotifiesEachPassengerOnce(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	e.book(t, 7, "1A", "Nagpur")
	e.book(t, 7, "1B", "Nagpur")

	if _, err := e.sched.StartTracking(ctx, manager, "BUS1", "Mumbai", 10*time.Minute, time.Now()); !domain.IsKind(err, domain.KindInvalidInput) {
		t.Fatalf("short session: %v", err)
	}
	if _, err := e.sched.StartTracking(ctx, domain.User{ID: 9, Role: domain.RoleManager}, "BUS1", "Mumbai", time.Hour, time.Now()); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("foreign manager: %v", err)
	}
	if _, err := e.sched.StartTracking(ctx, manager, "bus1", "Mumbai", time.Hour, time.Now()); err != nil {
		t.Fatalf("StartTracking: %v", err)
	}
	if n := len(e.out.to(7)); n != 1 {
		t.Fatalf("passenger notified %d times", n)
	}

	ok, err := e.sched.StopTracking(ctx, manager, "BUS1")
	if err != nil || !ok {
		t.Fatalf("StopTracking = %v, %v", ok, err)
	}
	if ok, _ := e.sched.StopTracking(ctx, manager, "BUS1"); ok {
		t.Fatalf("second stop reported tracking")
	}
}

func TestTickSkipsWhenLeaseHeld(t *testing.T) {
	e := newEnv(t, Options{Lease: heldLease{}})
	rep, err := e.sched.Tick(context.Background(), time.Now())
	if err != nil || !rep.Skipped {
		t.Fatalf("tick = %+v, %v", rep, err)
	}
}

func TestTickIsolatesFailingBus(t *testing.T) {
	e := newEnv(t, Options{Source: downSource{busID: "BUS1"}})
	ctx := context.Background()
	if err := e.store.CreateBus(ctx, domain.Bus{
		ID: "BUS2", Origin: "Mumbai", Destination: "Nagpur", ManagerID: managerID, PriceMinor: 40000,
		BoardingPoints: []domain.BoardingPoint{{Name: "Pune", Time: "09:30"}},
	}); err != nil {
		t.Fatalf("CreateBus: %v", err)
	}
	now := time.Now()
	for _, id := range []string{"BUS1", "BUS2"} {
		if _, err := e.sched.StartTracking(ctx, manager, id, "Mumbai", time.Hour, now); err != nil {
			t.Fatalf("StartTracking %s: %v", id, err)
		}
	}

	rep, err := e.sched.Tick(ctx, now.Add(5*time.Minute))
	if err == nil || !strings.Contains(err.Error(), "gps down") {
		t.Fatalf("tick err = %v", err)
	}
	if rep.Buses != 2 || rep.Updated != 1 {
		t.Fatalf("tick = %+v", rep)
	}
	if bus, _ := e.store.GetBus(ctx, "BUS2"); bus.LastLocation != "Pune" {
		t.Fatalf("BUS2 location = %q, want Pune", bus.LastLocation)
	}
	if bus, _ := e.store.GetBus(ctx, "BUS1"); bus.LastLocation != "Mumbai" {
		t.Fatalf("BUS1 location = %q, want Mumbai", bus.LastLocation)
	}
}

func TestTickSkipsWhileRunning(t *testing.T) {
	e := newEnv(t, Options{})
	e.sched.mu.Lock()
	rep, err := e.sched.Tick(context.Background(), time.Now())
	e.sched.mu.Unlock()
	if err != nil || !rep.Skipped {
		t.Fatalf("overlapping tick = %+v, %v", rep, err)
	}
	if rep, err := e.sched.Tick(context.Background(), time.Now()); err != nil || rep.Skipped {
		t.Fatalf("tick after release = %+v, %v", rep, err)
	}
}

func TestWaypointRotationFollowsRoute(t *testing.T) {
	bus := domain.Bus{
		Origin:      "Mumbai",
		Destination: "Nagpur",
		BoardingPoints: []domain.BoardingPoint{
			{Name: "Thane"}, {Name: "mumbai"}, {Name: "Nashik"},
		},
	}
	w := WaypointRotation{Stops: []string{"Goa", "Belgaum"}}
	ctx := context.Background()
	cases := map[string]string{
		"":        "Mumbai",
		"Mumbai":  "Thane",
		"thane":   "Nashik",
		"Nashik":  "Nagpur",
		"Nagpur":  "Mumbai",
		"Belgaum": "Mumbai",
	}
	for from, want := range cases {
		bus.LastLocation = from
		if got, _ := w.Next(ctx, bus); got != want {
			t.Fatalf("Next(%q) = %q, want %q", from, got, want)
		}
	}
	if got, _ := w.Next(ctx, domain.Bus{Origin: "Goa", LastLocation: "Goa"}); got != "Belgaum" {
		t.Fatalf("single-stop route = %q, want configured Belgaum", got)
	}
}

func TestWaypointRotation(t *testing.T) {
	w := WaypointRotation{}
	ctx := context.Background()
	cases := map[string]string{
		"":          "Mumbai",
		"Mumbai":    "Pune",
		"kolhapur":  "Mumbai",
		"Somewhere": "Mumbai",
	}
	for from, want := range cases {
		got, _ := w.Next(ctx, domain.Bus{LastLocation: from})
		if got != want {
			t.Fatalf("Next(%q) = %q, want %q", from, got, want)
		}
	}
}
