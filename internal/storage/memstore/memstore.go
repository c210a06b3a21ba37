// Package memstore is an in-memory storage.Store. One mutex guards every
// table, which makes each compound operation atomic.
package memstore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/storage"
)

type seatKey struct {
	bus  string
	seat string
}

type Store struct {
	mu       sync.Mutex
	users    map[int64]domain.User
	buses    map[string]domain.Bus
	seats    map[seatKey]domain.Seat
	bookings map[string]domain.Booking
	sessions map[string]domain.PaymentSession
	alerts   []domain.FareAlert
	settings map[string]string
	states   *conversation.MemoryStore
	nextID   int64
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[int64]domain.User),
		buses:    make(map[string]domain.Bus),
		seats:    make(map[seatKey]domain.Seat),
		bookings: make(map[string]domain.Booking),
		sessions: make(map[string]domain.PaymentSession),
		settings: make(map[string]string),
		states:   conversation.NewMemoryStore(),
	}
}

func (s *Store) States() conversation.Store { return s.states }

// users

func (s *Store) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.NotFound("user %d not found", id)
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ID]; ok {
		return existing, nil
	}
	if u.JoinedAt.IsZero() {
		u.JoinedAt = time.Now()
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) updateUser(id int64, fn func(*domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.NotFound("user %d not found", id)
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, id int64, name, aadhar, phone string) error {
	return s.updateUser(id, func(u *domain.User) {
		u.Name, u.Aadhar, u.Phone = name, aadhar, phone
		u.Status = domain.UserActive
	})
}

func (s *Store) UpdatePhone(_ context.Context, id int64, phone string) error {
	return s.updateUser(id, func(u *domain.User) { u.Phone = phone })
}

func (s *Store) SetRole(_ context.Context, id int64, role domain.Role) error {
	return s.updateUser(id, func(u *domain.User) { u.Role = role })
}

// buses

func cloneBus(b domain.Bus) domain.Bus {
	b.Rows = slices.Clone(b.Rows)
	b.BoardingPoints = slices.Clone(b.BoardingPoints)
	return b
}

func (s *Store) CreateBus(_ context.Context, b domain.Bus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buses[b.ID]; ok {
		return domain.Conflict("bus %s already exists", b.ID)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	s.buses[b.ID] = cloneBus(b)
	return nil
}

func (s *Store) GetBus(_ context.Context, id string) (domain.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buses[id]
	if !ok {
		return domain.Bus{}, domain.NotFound("bus %s not found", id)
	}
	return cloneBus(b), nil
}

func (s *Store) filterBuses(keep func(domain.Bus) bool) []domain.Bus {
	var out []domain.Bus
	for _, b := range s.buses {
		if keep(b) {
			out = append(out, cloneBus(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartDate != out[j].DepartDate {
			return out[i].DepartDate < out[j].DepartDate
		}
		if out[i].DepartTime != out[j].DepartTime {
			return out[i].DepartTime < out[j].DepartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) SearchBuses(_ context.Context, q storage.SearchQuery) ([]domain.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterBuses(func(b domain.Bus) bool {
		return b.Status == domain.BusScheduled &&
			(q.Origin == "" || strings.EqualFold(b.Origin, q.Origin)) &&
			(q.Destination == "" || strings.EqualFold(b.Destination, q.Destination)) &&
			(q.Date == "" || b.DepartDate == q.Date)
	}), nil
}

func (s *Store) Destinations(_ context.Context, origin string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, b := range s.buses {
		if b.Status != domain.BusScheduled || !strings.EqualFold(b.Origin, origin) {
			continue
		}
		if key := strings.ToLower(b.Destination); !seen[key] {
			seen[key] = true
			out = append(out, b.Destination)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) BusesByManager(_ context.Context, managerID int64) ([]domain.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterBuses(func(b domain.Bus) bool { return b.ManagerID == managerID }), nil
}

func (s *Store) updateBus(id string, fn func(*domain.Bus)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buses[id]
	if !ok {
		return domain.NotFound("bus %s not found", id)
	}
	fn(&b)
	s.buses[id] = b
	return nil
}

func (s *Store) SetTotalSeats(_ context.Context, id string, total int) error {
	return s.updateBus(id, func(b *domain.Bus) { b.TotalSeats = total })
}

func (s *Store) SetBusStatus(_ context.Context, id string, st domain.BusStatus) error {
	return s.updateBus(id, func(b *domain.Bus) {
		b.Status = st
		if st.StopsTracking() {
			b.IsTracking = false
		}
	})
}

func (s *Store) SetSync(_ context.Context, id, endpoint, status string) error {
	return s.updateBus(id, func(b *domain.Bus) { b.SyncEndpoint, b.SyncStatus = endpoint, status })
}

func (s *Store) TrackedBuses(_ context.Context) ([]domain.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterBuses(func(b domain.Bus) bool { return b.IsTracking }), nil
}

func (s *Store) StartTracking(_ context.Context, id, location string, startedAt, stopAt time.Time) error {
	return s.updateBus(id, func(b *domain.Bus) {
		b.IsTracking = true
		b.Status = domain.BusDeparted
		b.LastLocation = location
		b.LastLocationAt = &startedAt
		b.TrackingStartedAt = &startedAt
		b.TrackingStopAt = &stopAt
	})
}

func (s *Store) UpdateLocation(_ context.Context, id, location string, at time.Time) error {
	return s.updateBus(id, func(b *domain.Bus) {
		b.LastLocation = location
		b.LastLocationAt = &at
	})
}

func (s *Store) StopTracking(_ context.Context, id string) (domain.Bus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buses[id]
	if !ok {
		return domain.Bus{}, false, domain.NotFound("bus %s not found", id)
	}
	if !b.IsTracking {
		return cloneBus(b), false, nil
	}
	before := cloneBus(b)
	b.IsTracking = false
	b.Status = domain.BusArrived
	b.TrackingStopAt = nil
	s.buses[id] = b
	return before, true, nil
}

// seats

func (s *Store) GetSeat(_ context.Context, busID, seatNo string) (domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatKey{busID, seatNo}]
	if !ok {
		return domain.Seat{}, domain.NotFound("seat %s on %s not found", seatNo, busID)
	}
	return seat, nil
}

func (s *Store) ListSeats(_ context.Context, busID string) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Seat
	for k, seat := range s.seats {
		if k.bus == busID {
			out = append(out, seat)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})
	return out, nil
}

func (s *Store) InsertSeats(_ context.Context, seats []domain.Seat) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, seat := range seats {
		k := seatKey{seat.BusID, seat.SeatNo}
		if _, ok := s.seats[k]; ok {
			continue
		}
		s.seats[k] = seat
		added++
	}
	return added, nil
}

func (s *Store) LockSeat(_ context.Context, req storage.LockRequest) (domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seatKey{req.BusID, req.SeatNo}
	seat, ok := s.seats[k]
	if !ok {
		return domain.Seat{}, domain.NotFound("seat %s on %s not found", req.SeatNo, req.BusID)
	}
	if seat.Status != domain.SeatAvailable {
		return domain.Seat{}, domain.Conflict("seat %s is not available", req.SeatNo)
	}
	if req.PairSeatNo != "" {
		if pair, ok := s.seats[seatKey{req.BusID, req.PairSeatNo}]; ok {
			if err := domain.CheckPairSafety(req.Gender, &pair); err != nil {
				return domain.Seat{}, err
			}
		}
	}
	at := req.At
	seat.Status = domain.SeatLocked
	seat.Gender = req.Gender
	seat.Destination = req.Destination
	seat.HolderID = req.Holder
	seat.LockedAt = &at
	s.seats[k] = seat
	return seat, nil
}

func (s *Store) UnlockSeats(_ context.Context, busID string, seatNos []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, no := range seatNos {
		k := seatKey{busID, no}
		if seat, ok := s.seats[k]; ok {
			s.seats[k] = seat.Available()
			n++
		}
	}
	return n, nil
}

func (s *Store) releaseHoldsLocked(busID string, holder int64, seatNos []string) int {
	n := 0
	for _, no := range seatNos {
		k := seatKey{busID, no}
		if seat, ok := s.seats[k]; ok && seat.Status == domain.SeatLocked && seat.HolderID == holder {
			s.seats[k] = seat.Available()
			n++
		}
	}
	return n
}

func (s *Store) ReleaseHolds(_ context.Context, busID string, holder int64, seatNos []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseHoldsLocked(busID, holder, seatNos), nil
}

func (s *Store) CountHeld(_ context.Context, busID string, holder int64, seatNos []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, no := range seatNos {
		if seat, ok := s.seats[seatKey{busID, no}]; ok && seat.Status == domain.SeatLocked && seat.HolderID == holder {
			n++
		}
	}
	return n, nil
}

func (s *Store) ReleaseBooked(_ context.Context, busID, seatNo string) (domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seatKey{busID, seatNo}
	seat, ok := s.seats[k]
	if !ok {
		return domain.Seat{}, domain.NotFound("seat %s on %s not found", seatNo, busID)
	}
	if seat.Status != domain.SeatBooked {
		return domain.Seat{}, domain.Conflict("seat %s is not booked", seatNo)
	}
	s.seats[k] = seat.Available()
	return seat, nil
}

func (s *Store) ReleaseMidRoute(_ context.Context, busID, location string) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var released []domain.Seat
	for k, seat := range s.seats {
		if k.bus != busID || seat.Status != domain.SeatBooked || !domain.DestinationReached(seat.Destination, location) {
			continue
		}
		released = append(released, seat)
		s.seats[k] = seat.Available()
	}
	return released, nil
}

func (s *Store) ReleaseStaleLocks(_ context.Context, before time.Time) ([]domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type holderKey struct {
		bus    string
		holder int64
	}
	covered := make(map[holderKey]bool)
	for _, sess := range s.sessions {
		covered[holderKey{sess.BusID, sess.UserID}] = true
	}
	var released []domain.Seat
	for k, seat := range s.seats {
		if seat.Status != domain.SeatLocked || covered[holderKey{k.bus, seat.HolderID}] || seat.LockedAt == nil || !seat.LockedAt.Before(before) {
			continue
		}
		released = append(released, seat)
		s.seats[k] = seat.Available()
	}
	return released, nil
}

// bookings

func cloneBooking(b domain.Booking) domain.Booking {
	b.Seats = slices.Clone(b.Seats)
	b.Passengers = slices.Clone(b.Passengers)
	return b
}

func (s *Store) GetBooking(_ context.Context, id string) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, domain.NotFound("booking %s not found", id)
	}
	return cloneBooking(b), nil
}

func (s *Store) sortedBookings(keep func(domain.Booking) bool) []domain.Booking {
	var out []domain.Booking
	for _, b := range s.bookings {
		if keep(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) BookingsByUser(_ context.Context, userID int64, limit int) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sortedBookings(func(b domain.Booking) bool {
		return b.UserID == userID && b.Status != domain.BookingCancelled
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) BookingsByBus(_ context.Context, busID string, statuses ...domain.BookingStatus) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedBookings(func(b domain.Booking) bool {
		return b.BusID == busID && (len(statuses) == 0 || slices.Contains(statuses, b.Status))
	}), nil
}

func stamp(b *domain.Booking, to domain.BookingStatus, at time.Time) {
	b.Status = to
	switch to {
	case domain.BookingConfirmed:
		b.ConfirmedAt = &at
	case domain.BookingBoarded:
		b.CheckedInAt = &at
	case domain.BookingCancelled:
		b.CancelledAt = &at
	}
}

func (s *Store) TransitionBooking(_ context.Context, id string, from, to domain.BookingStatus, at time.Time) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, domain.NotFound("booking %s not found", id)
	}
	if b.Status != from {
		return domain.Booking{}, domain.Conflict("booking %s is %s", id, b.Status)
	}
	stamp(&b, to, at)
	s.bookings[id] = b
	return cloneBooking(b), nil
}

func (s *Store) CancelConfirmed(_ context.Context, id string, at time.Time) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, domain.NotFound("booking %s not found", id)
	}
	if b.Status != domain.BookingConfirmed {
		return domain.Booking{}, domain.Conflict("booking %s is %s", id, b.Status)
	}
	stamp(&b, domain.BookingCancelled, at)
	s.bookings[id] = b
	for _, no := range b.Seats {
		k := seatKey{b.BusID, no}
		if seat, ok := s.seats[k]; ok && seat.Status == domain.SeatBooked && seat.BookingID == id {
			s.seats[k] = seat.Available()
		}
	}
	return cloneBooking(b), nil
}

func (s *Store) Revenue(_ context.Context, date string) (int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		count int
		total int64
	)
	for _, b := range s.bookings {
		if b.ConfirmedAt == nil || b.ConfirmedAt.Format("2006-01-02") != date {
			continue
		}
		if b.Status == domain.BookingConfirmed || b.Status == domain.BookingBoarded {
			count++
			total += b.TotalPaid
		}
	}
	return count, total, nil
}

// payments

func (s *Store) CreatePending(ctx context.Context, b domain.Booking, sess domain.PaymentSession, st conversation.State) error {
	s.mu.Lock()
	if _, dup := s.sessions[sess.OrderID]; dup {
		s.mu.Unlock()
		return domain.Conflict("order %s already has a session", sess.OrderID)
	}
	s.bookings[b.ID] = cloneBooking(b)
	s.sessions[sess.OrderID] = sess
	s.mu.Unlock()
	return s.states.Set(ctx, st)
}

func (s *Store) GetSession(_ context.Context, orderID string) (domain.PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[orderID]
	if !ok {
		return domain.PaymentSession{}, domain.NotFound("no payment session for %s", orderID)
	}
	return sess, nil
}

func (s *Store) CommitPayment(_ context.Context, orderID string, at time.Time) (storage.Commit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[orderID]
	if !ok {
		return storage.Commit{}, false, nil
	}
	b, ok := s.bookings[sess.BookingID]
	if !ok || b.Status != domain.BookingPendingPayment {
		return storage.Commit{}, false, domain.StateInconsistency("booking %s is not pending", sess.BookingID)
	}
	seatNos := sess.Draft.SeatNos()
	for _, no := range seatNos {
		seat, ok := s.seats[seatKey{sess.BusID, no}]
		if !ok || seat.Status != domain.SeatLocked || seat.HolderID != sess.UserID {
			return storage.Commit{}, false, domain.Conflict("seat %s is no longer held", no)
		}
	}

	delete(s.sessions, orderID)
	for _, no := range seatNos {
		k := seatKey{sess.BusID, no}
		seat := s.seats[k]
		seat.Status = domain.SeatBooked
		seat.BookingID = b.ID
		s.seats[k] = seat
	}
	b.TotalPaid = sess.Amount
	stamp(&b, domain.BookingConfirmed, at)
	s.bookings[b.ID] = b
	s.states.ClearIfStep(sess.UserID, conversation.StepAwaitingPayment)
	return storage.Commit{Session: sess, Booking: cloneBooking(b)}, true, nil
}

func (s *Store) AbortPayment(_ context.Context, orderID string, at time.Time) (domain.PaymentSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[orderID]
	if !ok {
		return domain.PaymentSession{}, false, nil
	}
	delete(s.sessions, orderID)
	s.releaseHoldsLocked(sess.BusID, sess.UserID, holdsOf(sess))
	if b, ok := s.bookings[sess.BookingID]; ok && b.Status == domain.BookingPendingPayment {
		stamp(&b, domain.BookingCancelled, at)
		s.bookings[b.ID] = b
	}
	s.states.ClearIfStep(sess.UserID, conversation.StepAwaitingPayment)
	return sess, true, nil
}

// holdsOf is every seat the session may still hold.
func holdsOf(sess domain.PaymentSession) []string {
	out := slices.Clone(sess.Draft.HeldSeats)
	for _, no := range sess.Draft.SeatNos() {
		if !slices.Contains(out, no) {
			out = append(out, no)
		}
	}
	return out
}

func (s *Store) ExpiredSessions(_ context.Context, before time.Time) ([]domain.PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PaymentSession
	for _, sess := range s.sessions {
		if sess.CreatedAt.Before(before) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// alerts and settings

func (s *Store) AddFareAlert(_ context.Context, a domain.FareAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *Store) RecentFareAlerts(_ context.Context, limit int) ([]domain.FareAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.alerts)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	if !ok {
		return "", domain.NotFound("setting %s is not configured", key)
	}
	return v, nil
}

func (s *Store) PutSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}
