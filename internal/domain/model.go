// Package domain holds the reservation entities, their enums and the pure rules
// shared by the storage, seat, reservation and tracking layers.
package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
)

var roleRank = map[Role]int{RoleUser: 1, RoleManager: 2, RoleOwner: 3}

// AtLeast reports whether r grants everything min grants.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min] && roleRank[r] > 0
}

// ParseRole accepts the role names and the 1/2/3 shortcuts offered at registration.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "user", "passenger":
		return RoleUser, true
	case "2", "manager":
		return RoleManager, true
	case "3", "owner":
		return RoleOwner, true
	}
	return "", false
}

type UserStatus string

const (
	UserPendingDetails UserStatus = "pending_details"
	UserActive         UserStatus = "active"
)

type User struct {
	ID       int64      `db:"id"`
	Name     string     `db:"name"`
	Phone    string     `db:"phone"`
	Aadhar   string     `db:"aadhar"`
	Role     Role       `db:"role"`
	Status   UserStatus `db:"status"`
	JoinedAt time.Time  `db:"joined_at"`
}

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// ParseGender accepts M, F, Male and Female in any case.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return GenderMale, nil
	case "f", "female":
		return GenderFemale, nil
	}
	return "", InvalidInput("gender must be M or F")
}

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatLocked    SeatStatus = "locked"
	SeatBooked    SeatStatus = "booked"
)

type SeatType string

const (
	SeatSeater       SeatType = "seater"
	SeatSleeperUpper SeatType = "sleeper_upper"
	SeatSleeperLower SeatType = "sleeper_lower"
)

// ParseSeatType accepts "Seater", "Sleeper Upper" and "Sleeper Lower".
func ParseSeatType(s string) (SeatType, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(s)), "_")
	switch SeatType(key) {
	case SeatSeater, SeatSleeperUpper, SeatSleeperLower:
		return SeatType(key), true
	}
	return "", false
}

// Seat is one addressable unit of bus capacity. Gender, Destination and
// HolderID are meaningful only while the seat is locked or booked.
type Seat struct {
	BusID       string     `db:"bus_id"`
	SeatNo      string     `db:"seat_no"`
	Row         int        `db:"row_no"`
	Column      string     `db:"col"`
	Type        SeatType   `db:"seat_type"`
	Status      SeatStatus `db:"status"`
	Gender      Gender     `db:"gender"`
	Destination string     `db:"destination"`
	HolderID    int64      `db:"holder_id"`
	BookingID   string     `db:"booking_id"`
	LockedAt    *time.Time `db:"locked_at"`
}

// Occupied reports whether the seat is held by someone.
func (s Seat) Occupied() bool {
	return s.Status == SeatLocked || s.Status == SeatBooked
}

// Available is the seat with every holder field cleared.
func (s Seat) Available() Seat {
	s.Status = SeatAvailable
	s.Gender = ""
	s.Destination = ""
	s.HolderID = 0
	s.BookingID = ""
	s.LockedAt = nil
	return s
}

type BusStatus string

const (
	BusScheduled   BusStatus = "scheduled"
	BusDeparted    BusStatus = "departed"
	BusArrived     BusStatus = "arrived"
	BusMaintenance BusStatus = "maintenance"
)

// ParseBusStatus validates a status typed by an owner.
func ParseBusStatus(s string) (BusStatus, bool) {
	switch st := BusStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case BusScheduled, BusDeparted, BusArrived, BusMaintenance:
		return st, true
	}
	return "", false
}

// StopsTracking reports whether entering st ends live tracking.
func (st BusStatus) StopsTracking() bool {
	return st == BusArrived || st == BusMaintenance
}

// Bus kinds offered in the add-bus wizard.
const (
	BusKindSeater  = "seater"
	BusKindSleeper = "sleeper"
	BusKindBoth    = "both"
)

type BoardingPoint struct {
	Name string `json:"name"`
	Time string `json:"time"`
}

// RowConfig fixes the seat type of one row.
type RowConfig struct {
	Row  int      `json:"row"`
	Type SeatType `json:"type"`
}

const MaxBoardingPoints = 5

type Bus struct {
	ID             string
	Number         string
	Name           string
	OwnerName      string
	Origin         string
	Destination    string
	DepartDate     string
	DepartTime     string
	ArriveTime     string
	ManagerID      int64
	ManagerPhone   string
	PriceMinor     int64
	Currency       string
	Kind           string
	Layout         string
	Rows           []RowConfig
	BoardingPoints []BoardingPoint
	TotalSeats     int
	Rating         float64
	Status         BusStatus

	IsTracking        bool
	LastLocation      string
	LastLocationAt    *time.Time
	TrackingStartedAt *time.Time
	TrackingStopAt    *time.Time

	SyncEndpoint string
	SyncStatus   string
	CreatedAt    time.Time
}

// HasBoardingPoint matches name against the configured points, ignoring case.
func (b Bus) HasBoardingPoint(name string) bool {
	for _, bp := range b.BoardingPoints {
		if strings.EqualFold(bp.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingCancelled      BookingStatus = "cancelled"
	BookingBoarded        BookingStatus = "boarded"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPendingPayment: {BookingConfirmed, BookingCancelled},
	BookingConfirmed:      {BookingBoarded, BookingCancelled},
}

// CanTransition reports whether a booking may move from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Passenger struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Aadhar string `json:"aadhar"`
	Gender Gender `json:"gender"`
	SeatNo string `json:"seat_no"`
}

type Booking struct {
	ID            string
	UserID        int64
	BusID         string
	OrderID       string
	BoardingPoint string
	Destination   string
	Phone         string
	Seats         []string
	Passengers    []Passenger
	TotalPaid     int64
	Currency      string
	Status        BookingStatus
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
	CheckedInAt   *time.Time
	CancelledAt   *time.Time
}

// BookingDraft accumulates a booking across dialog steps. HeldSeats lists
// every seat locked on behalf of the user so far, including the one whose
// passenger details are still being captured.
type BookingDraft struct {
	BusID         string      `json:"bus_id"`
	BoardingPoint string      `json:"boarding_point,omitempty"`
	Destination   string      `json:"destination,omitempty"`
	Phone         string      `json:"phone,omitempty"`
	CurrentSeat   string      `json:"current_seat,omitempty"`
	CurrentGender Gender      `json:"current_gender,omitempty"`
	Passengers    []Passenger `json:"passengers,omitempty"`
	HeldSeats     []string    `json:"held_seats,omitempty"`
}

// Hold records seatNo as locked by the draft owner.
func (d *BookingDraft) Hold(seatNo string) {
	for _, s := range d.HeldSeats {
		if s == seatNo {
			return
		}
	}
	d.HeldSeats = append(d.HeldSeats, seatNo)
}

// SeatNos lists the seats of completed passengers in order.
func (d BookingDraft) SeatNos() []string {
	out := make([]string, 0, len(d.Passengers))
	for _, p := range d.Passengers {
		out = append(out, p.SeatNo)
	}
	return out
}

// PaymentSession links an external order to the draft awaiting payment.
type PaymentSession struct {
	OrderID   string
	UserID    int64
	BusID     string
	BookingID string
	Amount    int64
	Currency  string
	Draft     BookingDraft
	CreatedAt time.Time
}

type FareAlert struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Origin      string    `db:"origin"`
	Destination string    `db:"destination"`
	Time        string    `db:"alert_time"`
	CreatedAt   time.Time `db:"created_at"`
}

// Setting keys.
const (
	SettingAadharEndpoint = "aadhar_verification.endpoint"
	SettingAadharKey      = "aadhar_verification.key"
)

// Sync status recorded when a manager registers an inventory endpoint.
const SyncPending = "Pending Sync"
