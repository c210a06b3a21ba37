package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestCheckPairSafety(t *testing.T) {
	female := &Seat{SeatNo: "3B", Status: SeatBooked, Gender: GenderFemale}
	if err := CheckPairSafety(GenderMale, female); !errors.Is(err, ErrSafetyViolation) {
		t.Fatalf("male next to female: got %v", err)
	}
	if err := CheckPairSafety(GenderFemale, &Seat{Status: SeatLocked, Gender: GenderMale}); err != nil {
		t.Fatalf("female next to male should pass: %v", err)
	}
	freed := female.Available()
	if err := CheckPairSafety(GenderMale, &freed); err != nil {
		t.Fatalf("available pair should pass: %v", err)
	}
	if err := CheckPairSafety(GenderMale, nil); err != nil {
		t.Fatalf("no pair should pass: %v", err)
	}
}

func TestOrderAmount(t *testing.T) {
	got, err := OrderAmount(500*MinorPerMajor, 2)
	if err != nil || got != 100000 {
		t.Fatalf("OrderAmount = %d, %v", got, err)
	}
	if _, err := OrderAmount(100, 0); !IsKind(err, KindInvalidInput) {
		t.Fatalf("zero passengers: %v", err)
	}
}

func TestParsePriceAndFormat(t *testing.T) {
	p, err := ParsePrice("₹499.50")
	if err != nil || p != 49950 {
		t.Fatalf("ParsePrice = %d, %v", p, err)
	}
	if FormatMoney(p) != "₹499.50" || FormatMoney(50000) != "₹500" {
		t.Fatalf("FormatMoney mismatch: %s %s", FormatMoney(p), FormatMoney(50000))
	}
	if _, err := ParsePrice("-3"); err == nil {
		t.Fatalf("negative price accepted")
	}
}

func TestSeatNoRoundTrip(t *testing.T) {
	row, col, err := ParseSeatNo("10c")
	if err != nil || row != 10 || col != "C" {
		t.Fatalf("ParseSeatNo = %d %q %v", row, col, err)
	}
	if SeatNo(row, col) != "10C" {
		t.Fatalf("SeatNo = %s", SeatNo(row, col))
	}
	if _, _, err := ParseSeatNo("A3"); err == nil {
		t.Fatalf("expected error for A3")
	}
}

func TestIDs(t *testing.T) {
	bus, book := NewBusID(), NewBookingID()
	if !strings.HasPrefix(bus, "BUS") || len(bus) != 11 || strings.ToUpper(bus) != bus {
		t.Fatalf("bus id %q", bus)
	}
	if !strings.HasPrefix(book, "BOOK") || len(book) != 12 {
		t.Fatalf("booking id %q", book)
	}
}

func TestTrackingDuration(t *testing.T) {
	d, err := ParseTrackingDuration("2 hours")
	if err != nil || d != 2*time.Hour {
		t.Fatalf("2 hours = %v, %v", d, err)
	}
	d, err = ParseTrackingDuration("45 Minutes")
	if err != nil || d != 45*time.Minute {
		t.Fatalf("45 minutes = %v, %v", d, err)
	}
	if _, err := ParseTrackingDuration("soon"); err == nil {
		t.Fatalf("expected error")
	}
	if got := ElapsedLabel(125 * time.Minute); got != "2h 5m" {
		t.Fatalf("ElapsedLabel = %s", got)
	}
}

func TestDestinationReached(t *testing.T) {
	if !DestinationReached("Pune Bypass", "pune") {
		t.Fatalf("Pune should match Pune Bypass")
	}
	if DestinationReached("Nagpur", "Pune") || DestinationReached("Pune", "  ") {
		t.Fatalf("unexpected match")
	}
}

func TestBookingTransitions(t *testing.T) {
	if !BookingPendingPayment.CanTransition(BookingConfirmed) || !BookingConfirmed.CanTransition(BookingBoarded) {
		t.Fatalf("expected allowed transitions")
	}
	if BookingCancelled.CanTransition(BookingConfirmed) || BookingBoarded.CanTransition(BookingCancelled) {
		t.Fatalf("terminal states must not move")
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("lock: %w", External(base, "store unavailable"))
	if KindOf(err) != KindExternalServiceFailure || !errors.Is(err, base) {
		t.Fatalf("wrap lost kind or cause: %v", err)
	}
	if got := UserMessage(err, "fallback"); got != "fallback" {
		t.Fatalf("external errors must not leak: %q", got)
	}
	if got := UserMessage(NotFound("bus %s not found", "BUS1"), ""); got != "bus BUS1 not found" {
		t.Fatalf("UserMessage = %q", got)
	}
	if errors.Is(Conflict("taken"), ErrNotFound) {
		t.Fatalf("kinds must not cross-match")
	}
	if Conflict("x").Code() != "conflict" {
		t.Fatalf("Code mismatch")
	}
}

func TestRoles(t *testing.T) {
	r, ok := ParseRole("2")
	if !ok || r != RoleManager {
		t.Fatalf("ParseRole(2) = %v %v", r, ok)
	}
	if !RoleOwner.AtLeast(RoleManager) || RoleUser.AtLeast(RoleManager) || Role("").AtLeast(RoleUser) {
		t.Fatalf("rank ordering broken")
	}
	if st, ok := ParseSeatType("Sleeper Upper"); !ok || st != SeatSleeperUpper {
		t.Fatalf("ParseSeatType = %v %v", st, ok)
	}
}
