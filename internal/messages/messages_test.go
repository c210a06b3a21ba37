package messages

import (
	"testing"
	"time"
)

func TestRender(t *testing.T) {
	got := Render(ManagerCancellation, "busID", "BUS1", "bookingId", "BOOK1", "seats", Seats([]string{"3A", "3B"}), "dateTime", "now")
	want := "🗑️ *CANCELLATION ALERT (BUS1)*\n\nBooking ID: BOOK1\nSeats: 3A, 3B\nTime: now\n\nSeats have been automatically released."
	if got != want {
		t.Fatalf("Render = %q", got)
	}
	if Render("{a}{b}", "a", "x") != "x{b}" {
		t.Fatalf("unmatched placeholder should stay")
	}
}

func TestStampUsesZone(t *testing.T) {
	at := time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC)
	if got := Stamp(at, Zone("")); got != "1/3/2026, 08:34:05 pm" {
		t.Fatalf("Stamp = %q", got)
	}
}

func TestEscKeepsPlainText(t *testing.T) {
	if Esc("Asha") != "Asha" || Esc("a_b") != `a\_b` {
		t.Fatalf("unexpected escaping")
	}
}
