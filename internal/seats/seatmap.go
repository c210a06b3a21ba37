package seats

import (
	"context"
	"sort"

	"github.com/m3rciful/goroute/internal/domain"
)

// Group is the seats of one type in seat-number order.
type Group struct {
	Type  domain.SeatType
	Seats []domain.Seat
}

// Map is a read model of a bus for the seat map reply.
type Map struct {
	Bus       domain.Bus
	Groups    []Group
	Available int
	Total     int
}

// SeatMap loads the seats of a bus grouped by type. It fails with NotFound
// when the bus has no seats yet.
func (s *Service) SeatMap(ctx context.Context, busID string) (Map, error) {
	bus, err := s.repo.GetBus(ctx, busID)
	if err != nil {
		return Map{}, err
	}
	list, err := s.repo.ListSeats(ctx, bus.ID)
	if err != nil {
		return Map{}, err
	}
	if len(list) == 0 {
		return Map{}, domain.NotFound("no seats found for bus %s", bus.ID)
	}
	m := Map{Bus: bus, Total: len(list)}
	index := make(map[domain.SeatType]int)
	for _, seat := range list {
		i, ok := index[seat.Type]
		if !ok {
			i = len(m.Groups)
			index[seat.Type] = i
			m.Groups = append(m.Groups, Group{Type: seat.Type})
		}
		m.Groups[i].Seats = append(m.Groups[i].Seats, seat)
		if seat.Status == domain.SeatAvailable {
			m.Available++
		}
	}
	for _, g := range m.Groups {
		sort.Slice(g.Seats, func(a, b int) bool {
			if g.Seats[a].Row != g.Seats[b].Row {
				return g.Seats[a].Row < g.Seats[b].Row
			}
			return g.Seats[a].Column < g.Seats[b].Column
		})
	}
	return m, nil
}

// AvailableSeats lists seat numbers that can still be locked.
func (m Map) AvailableSeats() []string {
	var out []string
	for _, g := range m.Groups {
		for _, seat := range g.Seats {
			if seat.Status == domain.SeatAvailable {
				out = append(out, seat.SeatNo)
			}
		}
	}
	return out
}
