package dialog

import (
	"strconv"
	"strings"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
	"github.com/m3rciful/goroute/internal/seats"
)

func renderSearch(s conversation.Search, date string, buses []domain.Bus) string {
	if len(buses) == 0 {
		return messages.NoBuses
	}
	var sb strings.Builder
	sb.WriteString(messages.Render(messages.SearchResults,
		"from", messages.Esc(s.Origin),
		"to", messages.Esc(s.Destination),
		"date", date,
	))
	for _, b := range buses {
		sb.WriteString(messages.Render(messages.SearchResultItem,
			"busID", b.ID,
			"name", messages.Esc(b.Name),
			"time", b.DepartTime,
			"arrive", b.ArriveTime,
			"price", domain.FormatMoney(b.PriceMinor),
			"kind", layoutName(b.Kind),
		))
	}
	return sb.String()
}

func layoutName(kind string) string {
	switch kind {
	case domain.BusKindSleeper:
		return messages.LayoutSleeper
	case domain.BusKindBoth:
		return messages.LayoutBoth
	}
	return messages.LayoutSeater
}

var typeNames = map[domain.SeatType]string{
	domain.SeatSeater:       "Seater",
	domain.SeatSleeperUpper: "Sleeper Upper",
	domain.SeatSleeperLower: "Sleeper Lower",
}

func seatIcons(s domain.Seat) (typeIcon, statusIcon string) {
	typeIcon = "💺"
	if s.Type != domain.SeatSeater {
		typeIcon = "🛏️"
	}
	switch {
	case !s.Occupied():
		statusIcon = "✅"
	case s.Gender == domain.GenderFemale:
		statusIcon = "🚺"
	case s.Gender == domain.GenderMale:
		statusIcon = "🚹"
	default:
		statusIcon = "⚫"
	}
	return typeIcon, statusIcon
}

func renderSeatMap(m seats.Map) string {
	b := m.Bus
	var sb strings.Builder
	sb.WriteString(messages.Render(messages.SeatMapHeader,
		"busID", b.ID,
		"layout", layoutName(b.Kind),
		"from", messages.Esc(b.Origin),
		"to", messages.Esc(b.Destination),
		"date", b.DepartDate,
		"time", b.DepartTime,
	))
	for _, g := range m.Groups {
		name, ok := typeNames[g.Type]
		if !ok {
			name = string(g.Type)
		}
		sb.WriteString(messages.Render(messages.SeatMapGroup, "type", name))
		for _, s := range g.Seats {
			typeIcon, statusIcon := seatIcons(s)
			dest := ""
			if s.Occupied() && s.Destination != "" {
				dest = " → " + messages.Esc(s.Destination)
			}
			sb.WriteString(messages.Render(messages.SeatMapItem,
				"seatNo", s.SeatNo,
				"typeIcon", typeIcon,
				"statusIcon", statusIcon,
				"destination", dest,
			))
		}
	}
	sb.WriteString(messages.Render(messages.SeatMapFooter,
		"available", strconv.Itoa(m.Available),
		"total", strconv.Itoa(m.Total),
	))
	if free := m.AvailableSeats(); len(free) > 0 {
		sb.WriteString(messages.Render(messages.SeatMapBookHint, "busID", b.ID, "example", free[0]))
	}
	return sb.String()
}

func renderManifest(bus domain.Bus, bookings []domain.Booking) string {
	var entries strings.Builder
	count := 0
	for _, b := range bookings {
		for _, p := range b.Passengers {
			count++
			entries.WriteString(messages.Render(messages.ManifestEntry,
				"seat", p.SeatNo,
				"name", messages.Esc(p.Name),
				"aadhar", maskAadhar(p.Aadhar),
				"gender", string(p.Gender),
			))
		}
	}
	if count == 0 {
		return messages.Render(messages.NoManifest, "busID", bus.ID)
	}
	return messages.Render(messages.ManifestHeader,
		"busID", bus.ID,
		"from", messages.Esc(bus.Origin),
		"to", messages.Esc(bus.Destination),
		"date", bus.DepartDate,
		"count", strconv.Itoa(count),
	) + entries.String()
}
