package layout

import (
	"testing"

	"github.com/m3rciful/goroute/internal/domain"
)

func TestDefaultPairs(t *testing.T) {
	l, err := Default().Get("")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	cases := map[string]string{"3A": "3B", "3B": "3A", "10C": "10D", "1D": "1C"}
	for seat, want := range cases {
		if got, ok := l.PairOf(seat); !ok || got != want {
			t.Fatalf("PairOf(%s) = %s, %v; want %s", seat, got, ok, want)
		}
	}
	if _, ok := l.PairOf("3E"); ok {
		t.Fatalf("unknown column must have no pair")
	}
}

func TestConfiguredLayout(t *testing.T) {
	set, err := NewSet([]Config{{Name: "2x1", Columns: []string{"a", "b", "c"}, Pairs: [][2]string{{"a", "b"}}}})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	l, err := set.Get("2X1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := l.PairOf("4C"); ok {
		t.Fatalf("single seat column C must be unpaired")
	}
	if got, _ := l.PairOf("4b"); got != "4A" {
		t.Fatalf("PairOf(4b) = %s", got)
	}
	if _, err := set.Get("missing"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("missing layout: %v", err)
	}
}

func TestInvalidLayout(t *testing.T) {
	bad := []Config{
		{Name: "x"},
		{Name: "x", Columns: []string{"A", "A"}},
		{Name: "x", Columns: []string{"A", "B", "C"}, Pairs: [][2]string{{"A", "B"}, {"B", "C"}}},
	}
	for i, cfg := range bad {
		if _, err := NewSet([]Config{cfg}); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestPlan(t *testing.T) {
	l, _ := Default().Get(DefaultName)
	rows := []domain.RowConfig{{Row: 1, Type: domain.SeatSleeperLower}, {Row: 2, Type: domain.SeatSeater}}
	seats := l.Plan("BUS1", rows, 6)
	if len(seats) != 6 {
		t.Fatalf("len = %d", len(seats))
	}
	if seats[0].SeatNo != "1A" || seats[0].Type != domain.SeatSleeperLower || seats[5].SeatNo != "2B" || seats[5].Type != domain.SeatSeater {
		t.Fatalf("unexpected plan: %+v", seats)
	}
	if got := len(l.Plan("BUS1", rows, 40)); got != l.Capacity(rows) {
		t.Fatalf("plan should stop at capacity, got %d", got)
	}
}
