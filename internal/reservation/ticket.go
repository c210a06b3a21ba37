package reservation

import (
	"time"

	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
)

// TicketText renders the e-ticket of a confirmed booking.
func TicketText(bus domain.Bus, b domain.Booking, at time.Time, zone *time.Location) string {
	destination := b.Destination
	if destination == "" {
		destination = bus.Destination
	}
	if b.ConfirmedAt != nil {
		at = *b.ConfirmedAt
	}
	return messages.Render(messages.PaymentConfirmedTicket,
		"bookingId", b.ID,
		"busName", messages.Esc(orNA(bus.Name)),
		"busType", orNA(bus.Kind),
		"from", messages.Esc(bus.Origin),
		"to", messages.Esc(bus.Destination),
		"journeyDate", bus.DepartDate,
		"departTime", bus.DepartTime,
		"seatList", messages.Seats(b.Seats),
		"boardingPoint", messages.Esc(orNA(b.BoardingPoint)),
		"destination", messages.Esc(destination),
		"name", messages.Esc(primaryName(b)),
		"phone", orNA(b.Phone),
		"orderId", messages.Esc(b.OrderID),
		"amount", domain.FormatMoney(b.TotalPaid),
		"dateTime", messages.Stamp(at, zone),
	)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
