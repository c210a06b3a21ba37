// Package layout describes seat columns and the adjacency pairs used by the
// gender rule. Layouts come from configuration; "2x2" is always available.
package layout

import (
	"fmt"
	"strings"

	"github.com/m3rciful/goroute/internal/domain"
)

// DefaultName is the layout used when a bus does not name one.
const DefaultName = "2x2"

// Config is the YAML shape of one layout.
type Config struct {
	Name    string      `yaml:"name"`
	Columns []string    `yaml:"columns"`
	Pairs   [][2]string `yaml:"pairs"`
}

// Layout is a validated column set with a symmetric pair map.
type Layout struct {
	Name    string
	Columns []string
	pairs   map[string]string
}

func defaultConfig() Config {
	return Config{
		Name:    DefaultName,
		Columns: []string{"A", "B", "C", "D"},
		Pairs:   [][2]string{{"A", "B"}, {"C", "D"}},
	}
}

func build(cfg Config) (Layout, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return Layout{}, fmt.Errorf("layout: name is required")
	}
	if len(cfg.Columns) == 0 {
		return Layout{}, fmt.Errorf("layout %s: no columns", name)
	}
	l := Layout{Name: name, pairs: make(map[string]string)}
	known := make(map[string]bool)
	for _, c := range cfg.Columns {
		c = strings.ToUpper(strings.TrimSpace(c))
		if len(c) != 1 || c[0] < 'A' || c[0] > 'Z' || known[c] {
			return Layout{}, fmt.Errorf("layout %s: bad column %q", name, c)
		}
		known[c] = true
		l.Columns = append(l.Columns, c)
	}
	for _, p := range cfg.Pairs {
		a, b := strings.ToUpper(p[0]), strings.ToUpper(p[1])
		if !known[a] || !known[b] || a == b {
			return Layout{}, fmt.Errorf("layout %s: bad pair %s-%s", name, a, b)
		}
		if _, dup := l.pairs[a]; dup {
			return Layout{}, fmt.Errorf("layout %s: column %s paired twice", name, a)
		}
		if _, dup := l.pairs[b]; dup {
			return Layout{}, fmt.Errorf("layout %s: column %s paired twice", name, b)
		}
		l.pairs[a] = b
		l.pairs[b] = a
	}
	return l, nil
}

// PairOf returns the seat sharing a pair with seatNo in the same row.
func (l Layout) PairOf(seatNo string) (string, bool) {
	row, col, err := domain.ParseSeatNo(seatNo)
	if err != nil {
		return "", false
	}
	other, ok := l.pairs[col]
	if !ok {
		return "", false
	}
	return domain.SeatNo(row, other), true
}

// HasColumn reports whether col belongs to the layout.
func (l Layout) HasColumn(col string) bool {
	for _, c := range l.Columns {
		if c == strings.ToUpper(col) {
			return true
		}
	}
	return false
}

// Plan lays out count seats row by row following rows, stopping early when
// the configured rows run out.
func (l Layout) Plan(busID string, rows []domain.RowConfig, count int) []domain.Seat {
	var seats []domain.Seat
	for _, rc := range rows {
		for _, col := range l.Columns {
			if len(seats) >= count {
				return seats
			}
			seats = append(seats, domain.Seat{
				BusID:  busID,
				SeatNo: domain.SeatNo(rc.Row, col),
				Row:    rc.Row,
				Column: col,
				Type:   rc.Type,
				Status: domain.SeatAvailable,
			})
		}
	}
	return seats
}

// Capacity is the number of seats Plan can produce for rows.
func (l Layout) Capacity(rows []domain.RowConfig) int {
	return len(rows) * len(l.Columns)
}

// Set is the registry of configured layouts.
type Set struct {
	byName map[string]Layout
}

// NewSet validates cfgs. The default layout is added unless cfgs override it.
func NewSet(cfgs []Config) (*Set, error) {
	s := &Set{byName: make(map[string]Layout)}
	for _, cfg := range append([]Config{defaultConfig()}, cfgs...) {
		l, err := build(cfg)
		if err != nil {
			return nil, err
		}
		s.byName[strings.ToLower(l.Name)] = l
	}
	return s, nil
}

// Default returns a Set holding only the 2x2 layout.
func Default() *Set {
	s, _ := NewSet(nil)
	return s
}

// Get resolves name, falling back to the default layout when name is empty.
func (s *Set) Get(name string) (Layout, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	l, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Layout{}, domain.NotFound("layout %s is not configured", name)
	}
	return l, nil
}

// Names lists configured layout names.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.byName))
	for _, l := range s.byName {
		out = append(out, l.Name)
	}
	return out
}
