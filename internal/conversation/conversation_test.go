package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/goroute/internal/domain"
)

func TestNewRejectsMismatchedPayload(t *testing.T) {
	if _, err := New(1, StepGender, Search{}); !domain.IsKind(err, domain.KindStateInconsistency) {
		t.Fatalf("expected state inconsistency, got %v", err)
	}
	if _, err := New(1, Step("bogus"), nil); err == nil {
		t.Fatalf("unknown step accepted")
	}
	if _, err := New(1, StepPhoneUpdate, nil); err != nil {
		t.Fatalf("phone update takes no payload: %v", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	draft := domain.BookingDraft{BusID: "BUS1", Destination: "Pune", HeldSeats: []string{"3A"}}
	raw, err := Encode(Booking{Draft: draft})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	p, err := Decode(StepGender, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b, ok := p.(Booking)
	if !ok || b.Draft.BusID != "BUS1" || len(b.Draft.HeldSeats) != 1 {
		t.Fatalf("decoded %+v", p)
	}
	if _, err := Decode(StepBusName, raw); !domain.IsKind(err, domain.KindStateInconsistency) {
		t.Fatalf("booking payload under bus step must fail, got %v", err)
	}
	if p, err := Decode(StepIdle, nil); err != nil || p != nil {
		t.Fatalf("idle decode = %v, %v", p, err)
	}
}

func TestBusDraftCodec(t *testing.T) {
	raw, err := Encode(BusDraft{Number: "MH12AB1234", BusType: "sleeper"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(raw), `"kind":"sleeper"`) {
		t.Fatalf("bus type not stored under kind: %s", raw)
	}
	p, err := Decode(StepBusName, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b, ok := p.(BusDraft)
	if !ok || b.BusType != "sleeper" || b.Number != "MH12AB1234" || b.Kind() != KindBus {
		t.Fatalf("decoded %+v", p)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	st, err := store.Get(ctx, 7)
	if err != nil || !st.IsIdle() {
		t.Fatalf("default state = %+v, %v", st, err)
	}

	hold := PaymentHold{OrderID: "order_1", BusID: "BUS1", HeldSeats: []string{"1A"}}
	next, _ := New(7, StepAwaitingPayment, hold)
	if err := store.Set(ctx, next); err != nil {
		t.Fatalf("Set: %v", err)
	}
	hold.HeldSeats[0] = "9Z"

	st, _ = store.Get(ctx, 7)
	got, err := PayloadAs[PaymentHold](st)
	if err != nil || got.HeldSeats[0] != "1A" {
		t.Fatalf("stored payload = %+v, %v", got, err)
	}
	if _, err := PayloadAs[Booking](st); err == nil {
		t.Fatalf("wrong accessor should fail")
	}

	if store.ClearIfStep(7, StepGender) {
		t.Fatalf("ClearIfStep must not clear another step")
	}
	if !store.ClearIfStep(7, StepAwaitingPayment) {
		t.Fatalf("ClearIfStep should clear")
	}
}

func TestLockerSerializesPerUser(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(ctx, 42, func() error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent holders = %d", maxSeen)
	}
	if l.size() != 0 {
		t.Fatalf("locker leaked %d entries", l.size())
	}
}

func TestLockerHonoursContext(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), 1)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, 1); err == nil {
		t.Fatalf("second lock should time out")
	}
	if _, err := l.Lock(context.Background(), 2); err != nil {
		t.Fatalf("other users must not block: %v", err)
	}
	unlock()
}
