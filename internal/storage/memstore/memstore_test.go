package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/storage"
)

func seedSeats(t *testing.T, s *Store, busID string, nos ...string) {
	t.Helper()
	var seats []domain.Seat
	for _, no := range nos {
		row, col, err := domain.ParseSeatNo(no)
		if err != nil {
			t.Fatalf("seat %s: %v", no, err)
		}
		seats = append(seats, domain.Seat{BusID: busID, SeatNo: no, Row: row, Column: col, Status: domain.SeatAvailable})
	}
	if _, err := s.InsertSeats(context.Background(), seats); err != nil {
		t.Fatalf("InsertSeats: %v", err)
	}
}

func TestLockSeatIsExclusive(t *testing.T) {
	s := New()
	seedSeats(t, s, "BUS1", "1A")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 1; i <= 16; i++ {
		wg.Add(1)
		go func(holder int64) {
			defer wg.Done()
			_, err := s.LockSeat(context.Background(), storage.LockRequest{
				BusID: "BUS1", SeatNo: "1A", Gender: domain.GenderFemale, Holder: holder, At: time.Now(),
			})
			if err == nil {
				wins.Add(1)
			}
		}(int64(i))
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("%d lockers won", wins.Load())
	}
}

func TestInsertSeatsSkipsExisting(t *testing.T) {
	s := New()
	seedSeats(t, s, "BUS1", "1A", "1B")
	n, err := s.InsertSeats(context.Background(), []domain.Seat{{BusID: "BUS1", SeatNo: "1A"}, {BusID: "BUS1", SeatNo: "1C"}})
	if err != nil || n != 1 {
		t.Fatalf("InsertSeats = %d, %v", n, err)
	}
}

func TestStaleLocksSkipSessionSeats(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedSeats(t, s, "BUS1", "1A", "1B")
	old := time.Now().Add(-time.Hour)
	for i, no := range []string{"1A", "1B"} {
		if _, err := s.LockSeat(ctx, storage.LockRequest{BusID: "BUS1", SeatNo: no, Holder: int64(i + 1), At: old}); err != nil {
			t.Fatalf("lock %s: %v", no, err)
		}
	}
	sess := domain.PaymentSession{OrderID: "o1", UserID: 2, BusID: "BUS1", BookingID: "B1",
		Draft: domain.BookingDraft{HeldSeats: []string{"1B"}}}
	st, _ := conversation.New(2, conversation.StepAwaitingPayment, conversation.PaymentHold{OrderID: "o1"})
	if err := s.CreatePending(ctx, domain.Booking{ID: "B1", Status: domain.BookingPendingPayment}, sess, st); err != nil {
		t.Fatalf("CreatePending: %v", err)
	}

	released, err := s.ReleaseStaleLocks(ctx, time.Now())
	if err != nil || len(released) != 1 || released[0].SeatNo != "1A" {
		t.Fatalf("released = %+v, %v", released, err)
	}
}

func TestStopTrackingOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateBus(ctx, domain.Bus{ID: "BUS1", Status: domain.BusScheduled}); err != nil {
		t.Fatalf("CreateBus: %v", err)
	}
	now := time.Now()
	if err := s.StartTracking(ctx, "BUS1", "Mumbai", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("StartTracking: %v", err)
	}
	before, ok, err := s.StopTracking(ctx, "BUS1")
	if err != nil || !ok || before.TrackingStartedAt == nil {
		t.Fatalf("first stop = %v, %v", ok, err)
	}
	if _, ok, _ := s.StopTracking(ctx, "BUS1"); ok {
		t.Fatalf("second stop must report false")
	}
	b, _ := s.GetBus(ctx, "BUS1")
	if b.Status != domain.BusArrived || b.IsTracking || b.TrackingStopAt != nil {
		t.Fatalf("bus after stop: %+v", b)
	}
}

func TestRevenueCountsConfirmedOnDate(t *testing.T) {
	ctx := context.Background()
	s := New()
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.bookings["B1"] = domain.Booking{ID: "B1", Status: domain.BookingConfirmed, TotalPaid: 50000, ConfirmedAt: &day}
	s.bookings["B2"] = domain.Booking{ID: "B2", Status: domain.BookingCancelled, TotalPaid: 70000, ConfirmedAt: &day}
	n, total, err := s.Revenue(ctx, "2026-03-01")
	if err != nil || n != 1 || total != 50000 {
		t.Fatalf("Revenue = %d %d %v", n, total, err)
	}
}
