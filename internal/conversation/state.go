// Package conversation keeps each user's dialog step together with the draft
// collected so far. Every step owns exactly one payload kind.
package conversation

import (
	"time"

	"github.com/m3rciful/goroute/internal/domain"
)

// Step identifies a dialog step.
type Step string

const (
	StepIdle Step = "idle"

	StepRoleSelect     Step = "role_select"
	StepProfileDetails Step = "profile_details"
	StepPhoneUpdate    Step = "phone_update"

	StepSearchFrom Step = "search_from"
	StepSearchTo   Step = "search_to"
	StepSearchDate Step = "search_date"

	StepBoardingPoint    Step = "booking_boarding_point"
	StepDestination      Step = "booking_destination"
	StepGender           Step = "booking_gender"
	StepPassengerDetails Step = "booking_passenger_details"
	StepBookingAction    Step = "booking_action"
	StepNextSeat         Step = "booking_next_seat"
	StepAwaitingPayment  Step = "awaiting_payment"

	StepBusNumber         Step = "bus_number"
	StepBusName           Step = "bus_name"
	StepBusRoute          Step = "bus_route"
	StepBusPrice          Step = "bus_price"
	StepBusKind           Step = "bus_kind"
	StepBusSeatTypes      Step = "bus_seat_types"
	StepBusDepartDate     Step = "bus_depart_date"
	StepBusDepartTime     Step = "bus_depart_time"
	StepBusArriveTime     Step = "bus_arrive_time"
	StepBusManagerPhone   Step = "bus_manager_phone"
	StepBusBoardingPoints Step = "bus_boarding_points"

	StepTrackingBus      Step = "tracking_bus"
	StepTrackingLocation Step = "tracking_location"
	StepTrackingDuration Step = "tracking_duration"

	StepSyncBus      Step = "sync_bus"
	StepSyncEndpoint Step = "sync_endpoint"

	StepAadharEndpoint Step = "aadhar_endpoint"
	StepAadharKey      Step = "aadhar_key"
)

// Kind tags a payload variant in storage.
type Kind string

const (
	KindNone         Kind = ""
	KindRegistration Kind = "registration"
	KindSearch       Kind = "search"
	KindBooking      Kind = "booking"
	KindPayment      Kind = "payment"
	KindBus          Kind = "bus"
	KindTracking     Kind = "tracking"
	KindSync         Kind = "sync"
	KindSetting      Kind = "setting"
)

var stepKinds = map[Step]Kind{
	StepIdle:              KindNone,
	StepRoleSelect:        KindRegistration,
	StepProfileDetails:    KindRegistration,
	StepPhoneUpdate:       KindNone,
	StepSearchFrom:        KindSearch,
	StepSearchTo:          KindSearch,
	StepSearchDate:        KindSearch,
	StepBoardingPoint:     KindBooking,
	StepDestination:       KindBooking,
	StepGender:            KindBooking,
	StepPassengerDetails:  KindBooking,
	StepBookingAction:     KindBooking,
	StepNextSeat:          KindBooking,
	StepAwaitingPayment:   KindPayment,
	StepBusNumber:         KindBus,
	StepBusName:           KindBus,
	StepBusRoute:          KindBus,
	StepBusPrice:          KindBus,
	StepBusKind:           KindBus,
	StepBusSeatTypes:      KindBus,
	StepBusDepartDate:     KindBus,
	StepBusDepartTime:     KindBus,
	StepBusArriveTime:     KindBus,
	StepBusManagerPhone:   KindBus,
	StepBusBoardingPoints: KindBus,
	StepTrackingBus:       KindTracking,
	StepTrackingLocation:  KindTracking,
	StepTrackingDuration:  KindTracking,
	StepSyncBus:           KindSync,
	StepSyncEndpoint:      KindSync,
	StepAadharEndpoint:    KindSetting,
	StepAadharKey:         KindSetting,
}

// KindOf returns the payload kind owned by step.
func KindOf(step Step) (Kind, bool) {
	k, ok := stepKinds[step]
	return k, ok
}

// Payload is implemented by the draft variants below.
type Payload interface {
	Kind() Kind
}

type Registration struct {
	Role      domain.Role `json:"role,omitempty"`
	FirstName string      `json:"first_name,omitempty"`
}

type Search struct {
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
}

type Booking struct {
	Draft domain.BookingDraft `json:"draft"`
}

// PaymentHold is what the user state keeps while the gateway order is open.
type PaymentHold struct {
	OrderID   string   `json:"order_id"`
	BookingID string   `json:"booking_id"`
	BusID     string   `json:"bus_id"`
	HeldSeats []string `json:"held_seats"`
	Amount    int64    `json:"amount"`
}

type BusDraft struct {
	Number         string                 `json:"number,omitempty"`
	Name           string                 `json:"name,omitempty"`
	Origin         string                 `json:"origin,omitempty"`
	Destination    string                 `json:"destination,omitempty"`
	PriceMinor     int64                  `json:"price_minor,omitempty"`
	BusType        string                 `json:"kind,omitempty"`
	Rows           []domain.RowConfig     `json:"rows,omitempty"`
	DepartDate     string                 `json:"depart_date,omitempty"`
	DepartTime     string                 `json:"depart_time,omitempty"`
	ArriveTime     string                 `json:"arrive_time,omitempty"`
	ManagerPhone   string                 `json:"manager_phone,omitempty"`
	BoardingPoints []domain.BoardingPoint `json:"boarding_points,omitempty"`
}

// NextRow is the row whose seat type is asked next.
func (b BusDraft) NextRow() int { return len(b.Rows) + 1 }

type TrackingDraft struct {
	BusID    string `json:"bus_id,omitempty"`
	Location string `json:"location,omitempty"`
}

type SyncDraft struct {
	BusID string `json:"bus_id,omitempty"`
}

// SettingDraft carries values of a multi-step credential setup.
type SettingDraft struct {
	Endpoint string `json:"endpoint,omitempty"`
}

func (Registration) Kind() Kind  { return KindRegistration }
func (Search) Kind() Kind        { return KindSearch }
func (Booking) Kind() Kind       { return KindBooking }
func (PaymentHold) Kind() Kind   { return KindPayment }
func (BusDraft) Kind() Kind      { return KindBus }
func (TrackingDraft) Kind() Kind { return KindTracking }
func (SyncDraft) Kind() Kind     { return KindSync }
func (SettingDraft) Kind() Kind  { return KindSetting }

// State is one user's active step and its payload.
type State struct {
	UserID    int64
	Step      Step
	Payload   Payload
	UpdatedAt time.Time
}

// Idle is the state of a user with nothing in progress.
func Idle(userID int64) State {
	return State{UserID: userID, Step: StepIdle}
}

// New validates that payload belongs to step.
func New(userID int64, step Step, payload Payload) (State, error) {
	want, ok := KindOf(step)
	if !ok {
		return State{}, domain.StateInconsistency("unknown step %q", step)
	}
	got := KindNone
	if payload != nil {
		got = payload.Kind()
	}
	if got != want {
		return State{}, domain.StateInconsistency("step %s expects %q payload, got %q", step, want, got)
	}
	return State{UserID: userID, Step: step, Payload: payload}, nil
}

// IsIdle reports whether nothing is in progress.
func (s State) IsIdle() bool { return s.Step == "" || s.Step == StepIdle }

// PayloadAs returns the payload as T, failing when the stored variant differs.
func PayloadAs[T Payload](s State) (T, error) {
	var zero T
	p, ok := s.Payload.(T)
	if !ok {
		return zero, domain.StateInconsistency("step %s has no %q payload", s.Step, zero.Kind())
	}
	return p, nil
}
