package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinorPerMajor is the minor-unit factor of the supported currencies.
const MinorPerMajor = 100

const DefaultCurrency = "INR"

// CheckPairSafety applies the adjacency rule: a male passenger may not take
// the seat paired with one locked or booked by a female passenger. The rule
// is one-directional. pair may be nil when the seat has no pair.
func CheckPairSafety(gender Gender, pair *Seat) error {
	if gender != GenderMale || pair == nil {
		return nil
	}
	if pair.Occupied() && pair.Gender == GenderFemale {
		return SafetyViolation("seat next to %s is reserved by a female passenger", pair.SeatNo)
	}
	return nil
}

// OrderAmount is unit price times passenger count, in minor units.
func OrderAmount(priceMinor int64, passengers int) (int64, error) {
	if passengers < 1 {
		return 0, InvalidInput("at least one passenger is required")
	}
	if priceMinor <= 0 {
		return 0, InvalidInput("bus price is not set")
	}
	if priceMinor > math.MaxInt64/int64(passengers) {
		return 0, InvalidInput("order amount overflows")
	}
	return priceMinor * int64(passengers), nil
}

// ParsePrice converts a major-unit amount such as "500" or "499.50" to minor units.
func ParsePrice(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "₹"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) {
		return 0, InvalidInput("price must be a positive number")
	}
	return int64(math.Round(f * MinorPerMajor)), nil
}

// FormatMoney renders minor units as "₹500" or "₹499.50".
func FormatMoney(minor int64) string {
	major, frac := minor/MinorPerMajor, minor%MinorPerMajor
	if frac == 0 {
		return fmt.Sprintf("₹%d", major)
	}
	return fmt.Sprintf("₹%d.%02d", major, frac)
}

var seatNoRe = regexp.MustCompile(`^([0-9]{1,2})([A-Za-z])$`)

// ParseSeatNo splits "3A" into row 3 and column "A".
func ParseSeatNo(s string) (int, string, error) {
	m := seatNoRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, "", InvalidInput("invalid seat number %q", s)
	}
	row, _ := strconv.Atoi(m[1])
	if row < 1 {
		return 0, "", InvalidInput("invalid seat number %q", s)
	}
	return row, strings.ToUpper(m[2]), nil
}

// SeatNo is the inverse of ParseSeatNo.
func SeatNo(row int, col string) string {
	return strconv.Itoa(row) + strings.ToUpper(col)
}

func shortID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(hex[:8])
}

// NewBusID returns an id such as BUS1A2B3C4D.
func NewBusID() string { return shortID("BUS") }

// NewBookingID returns an id such as BOOK9F8E7D6C.
func NewBookingID() string { return shortID("BOOK") }

var durationRe = regexp.MustCompile(`(?i)^\s*(\d+)\s*(minutes?|mins?|hours?|hrs?)\s*$`)

// ParseTrackingDuration accepts "90 minutes" or "2 hours".
func ParseTrackingDuration(s string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, InvalidInput("use 'X hours' or 'Y minutes'")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, InvalidInput("use 'X hours' or 'Y minutes'")
	}
	unit := time.Minute
	if strings.HasPrefix(strings.ToLower(m[2]), "h") {
		unit = time.Hour
	}
	return time.Duration(n) * unit, nil
}

// ElapsedLabel renders d as "Xh Ym".
func ElapsedLabel(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int(d / time.Minute)
	return fmt.Sprintf("%dh %dm", mins/60, mins%60)
}

// DestinationReached is the mid-route release predicate: a case-insensitive
// substring match of the reported location within the booked destination.
func DestinationReached(destination, location string) bool {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return false
	}
	return strings.Contains(strings.ToLower(destination), loc)
}
