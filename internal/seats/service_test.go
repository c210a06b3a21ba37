package seats

import (
	"context"
	"testing"

	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/layout"
	"github.com/m3rciful/goroute/internal/storage/memstore"
)

const managerID = 42

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	rows := make([]domain.RowConfig, 0, 10)
	for r := 1; r <= 10; r++ {
		rows = append(rows, domain.RowConfig{Row: r, Type: domain.SeatSeater})
	}
	err := store.CreateBus(context.Background(), domain.Bus{
		ID: "BUS1", Origin: "Mumbai", Destination: "Nagpur", ManagerID: managerID,
		PriceMinor: 50000, Rows: rows, Status: domain.BusScheduled,
	})
	if err != nil {
		t.Fatalf("CreateBus: %v", err)
	}
	svc := New(store, layout.Default())
	manager := domain.User{ID: managerID, Role: domain.RoleManager}
	if _, err := svc.CreateSeats(context.Background(), manager, "BUS1", 12); err != nil {
		t.Fatalf("CreateSeats: %v", err)
	}
	return svc, store
}

func seatStatus(t *testing.T, store *memstore.Store, seatNo string) domain.SeatStatus {
	t.Helper()
	seat, err := store.GetSeat(context.Background(), "BUS1", seatNo)
	if err != nil {
		t.Fatalf("GetSeat %s: %v", seatNo, err)
	}
	return seat.Status
}

func TestCreateSeatsFollowsLayout(t *testing.T) {
	_, store := newService(t)
	list, err := store.ListSeats(context.Background(), "BUS1")
	if err != nil {
		t.Fatalf("ListSeats: %v", err)
	}
	if len(list) != 12 {
		t.Fatalf("got %d seats, want 12", len(list))
	}
	if list[0].SeatNo != "1A" || list[11].SeatNo != "3D" {
		t.Fatalf("unexpected order %s..%s", list[0].SeatNo, list[11].SeatNo)
	}
	bus, _ := store.GetBus(context.Background(), "BUS1")
	if bus.TotalSeats != 12 {
		t.Fatalf("total seats = %d", bus.TotalSeats)
	}
}

func TestCreateSeatsRejectsBadInput(t *testing.T) {
	svc, _ := newService(t)
	manager := domain.User{ID: managerID, Role: domain.RoleManager}
	if _, err := svc.CreateSeats(context.Background(), manager, "BUS1", 41); !domain.IsKind(err, domain.KindInvalidInput) {
		t.Fatalf("count 41: %v", err)
	}
	passenger := domain.User{ID: 7, Role: domain.RoleUser}
	if _, err := svc.CreateSeats(context.Background(), passenger, "BUS1", 4); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("passenger: %v", err)
	}
	if _, err := svc.CreateSeats(context.Background(), manager, "BUS404", 4); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("missing bus: %v", err)
	}
}

func TestMaleNextToFemaleIsRejected(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	if _, err := svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "3B", Gender: domain.GenderFemale, Holder: 1, Destination: "Pune"}); err != nil {
		t.Fatalf("lock 3B: %v", err)
	}
	_, err := svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "3A", Gender: domain.GenderMale, Holder: 2, Destination: "Pune"})
	if !domain.IsKind(err, domain.KindSafetyViolation) {
		t.Fatalf("expected safety violation, got %v", err)
	}
	if got := seatStatus(t, store, "3A"); got != domain.SeatAvailable {
		t.Fatalf("3A is %s after rejection", got)
	}
	if _, err := svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "3a", Gender: domain.GenderFemale, Holder: 2}); err != nil {
		t.Fatalf("female next to female: %v", err)
	}
}

func TestFemaleNextToMaleIsAllowed(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "1C", Gender: domain.GenderMale, Holder: 1}); err != nil {
		t.Fatalf("lock 1C: %v", err)
	}
	if _, err := svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "1D", Gender: domain.GenderFemale, Holder: 2}); err != nil {
		t.Fatalf("lock 1D: %v", err)
	}
}

func TestLockUnlockRoundTrip(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	if _, err := svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "2A", Gender: domain.GenderMale, Holder: 1}); err != nil {
		t.Fatalf("LockSeat: %v", err)
	}
	if _, err := svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "2A", Gender: domain.GenderMale, Holder: 2}); !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("second lock: %v", err)
	}
	if err := svc.UnlockSeats(ctx, "BUS1", []string{"2A"}); err != nil {
		t.Fatalf("UnlockSeats: %v", err)
	}
	seat, _ := store.GetSeat(ctx, "BUS1", "2A")
	if seat.Status != domain.SeatAvailable || seat.HolderID != 0 || seat.Gender != "" || seat.LockedAt != nil {
		t.Fatalf("seat not reset: %+v", seat)
	}
	if _, err := svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "2A", Gender: domain.GenderMale, Holder: 2}); err != nil {
		t.Fatalf("relock: %v", err)
	}
}

func TestReleaseHoldsOnlyTouchesOwnLocks(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	_, _ = svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "1A", Gender: domain.GenderMale, Holder: 1})
	_, _ = svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "1C", Gender: domain.GenderMale, Holder: 2})

	n, err := svc.ReleaseHolds(ctx, "BUS1", 1, []string{"1A", "1C", "1A"})
	if err != nil || n != 1 {
		t.Fatalf("ReleaseHolds = %d, %v", n, err)
	}
	if got := seatStatus(t, store, "1C"); got != domain.SeatLocked {
		t.Fatalf("1C is %s", got)
	}
	if err := svc.VerifyHeld(ctx, "BUS1", 2, []string{"1C"}); err != nil {
		t.Fatalf("VerifyHeld: %v", err)
	}
	if err := svc.VerifyHeld(ctx, "BUS1", 1, []string{"1A"}); !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("VerifyHeld after release: %v", err)
	}
}

func TestReleaseSeatRequiresBookedSeat(t *testing.T) {
	svc, _ := newService(t)
	manager := domain.User{ID: managerID, Role: domain.RoleManager}
	if _, err := svc.ReleaseSeat(context.Background(), manager, "BUS1", "1A"); !domain.IsKind(err, domain.KindConflict) {
		t.Fatalf("release available seat: %v", err)
	}
	other := domain.User{ID: 99, Role: domain.RoleManager}
	if _, err := svc.ReleaseSeat(context.Background(), other, "BUS1", "1A"); !domain.IsKind(err, domain.KindPermissionDenied) {
		t.Fatalf("foreign manager: %v", err)
	}
}

func TestSeatMapCountsAvailable(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, _ = svc.LockSeat(ctx, LockRequest{BusID: "BUS1", SeatNo: "1A", Gender: domain.GenderFemale, Holder: 1})

	m, err := svc.SeatMap(ctx, "BUS1")
	if err != nil {
		t.Fatalf("SeatMap: %v", err)
	}
	if m.Total != 12 || m.Available != 11 || len(m.Groups) != 1 {
		t.Fatalf("unexpected map: total=%d available=%d groups=%d", m.Total, m.Available, len(m.Groups))
	}
	if got := m.AvailableSeats(); len(got) != 11 || got[0] != "1B" {
		t.Fatalf("available = %v", got)
	}
}
