package dialog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
)

// access is the minimum standing a command requires.
type access int

const (
	anyone access = iota
	registered
	managerOnly
	ownerOnly
)

type command struct {
	prefixes []string
	access   access
	run      func(e *Engine, t *turn, args []string) error
}

// commands is matched by the longest prefix of the lowercased text; the
// remaining words become args with their original case.
var commands = []command{
	{[]string{"assign manager"}, ownerOnly, (*Engine).assignManager},
	{[]string{"revoke manager"}, ownerOnly, (*Engine).revokeManager},
	{[]string{"show revenue"}, ownerOnly, (*Engine).showRevenue},
	{[]string{"set status"}, ownerOnly, (*Engine).setStatus},
	{[]string{"setup aadhar api"}, ownerOnly, (*Engine).setupAadhar},
	{[]string{"show aadhar api config"}, ownerOnly, (*Engine).showAadhar},

	{[]string{"view fare alerts", "show fare alerts"}, managerOnly, (*Engine).showFareAlerts},
	{[]string{"check-in", "check in"}, managerOnly, (*Engine).checkIn},
	{[]string{"release seat"}, managerOnly, (*Engine).releaseSeat},
	{[]string{"add new bus", "add bus"}, managerOnly, (*Engine).addBus},
	{[]string{"show my trips"}, managerOnly, (*Engine).showTrips},
	{[]string{"setup inventory sync", "sync inventory"}, managerOnly, (*Engine).syncInventory},
	{[]string{"add seats"}, managerOnly, (*Engine).addSeats},
	{[]string{"show manifest"}, managerOnly, (*Engine).showManifest},
	{[]string{"start tracking"}, managerOnly, (*Engine).startTracking},
	{[]string{"stop tracking"}, managerOnly, (*Engine).stopTracking},

	{[]string{"book a bus", "book bus", "/book", "book"}, registered, (*Engine).searchBuses},
	{[]string{"book seat"}, registered, (*Engine).bookSeat},
	{[]string{"get ticket"}, registered, (*Engine).getTicket},
	{[]string{"check status"}, registered, (*Engine).checkStatus},
	{[]string{"cancel booking"}, registered, (*Engine).cancelBooking},
	{[]string{"my bookings"}, registered, (*Engine).myBookings},
	{[]string{"request seat change"}, registered, (*Engine).requestSeatChange},
	{[]string{"alert on"}, registered, (*Engine).fareAlert},
	{[]string{"share location"}, registered, (*Engine).shareLocation},
	{[]string{"my profile details"}, registered, (*Engine).profileDetails},
	{[]string{"my profile", "/profile", "profile"}, registered, (*Engine).myProfile},
	{[]string{"update phone"}, registered, (*Engine).updatePhone},

	{[]string{"show seats"}, anyone, (*Engine).showSeats},
	{[]string{"track bus", "show live location"}, anyone, (*Engine).trackBus},
}

type route struct {
	prefix string
	cmd    command
}

var routes = func() []route {
	var out []route
	for _, c := range commands {
		for _, p := range c.prefixes {
			out = append(out, route{prefix: p, cmd: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].prefix) > len(out[j].prefix) })
	return out
}()

func match(lower string) (route, bool) {
	for _, r := range routes {
		if lower == r.prefix || strings.HasPrefix(lower, r.prefix+" ") {
			return r, true
		}
	}
	return route{}, false
}

func (e *Engine) command(t *turn) error {
	r, ok := match(t.lower)
	if !ok {
		t.say(messages.UnknownCommand)
		return nil
	}
	switch {
	case r.cmd.access >= registered && !t.registered:
		t.say(messages.RegisterFirst)
		return nil
	case r.cmd.access == managerOnly && !t.user.Role.AtLeast(domain.RoleManager):
		t.say(messages.NotAllowed)
		return nil
	case r.cmd.access == ownerOnly && t.user.Role != domain.RoleOwner:
		t.say(messages.OwnerOnly)
		return nil
	}
	args := strings.Fields(t.text[len(r.prefix):])
	return r.cmd.run(e, t, args)
}

var (
	busIDRe     = regexp.MustCompile(`^BUS[0-9A-Z]+$`)
	bookingIDRe = regexp.MustCompile(`^BOOK[0-9A-Z]+$`)
)

// busArg returns the first arg as a bus id, or false when it is missing or malformed.
func busArg(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	id := strings.ToUpper(args[0])
	return id, busIDRe.MatchString(id)
}

func bookingArg(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	id := strings.ToUpper(args[0])
	return id, bookingIDRe.MatchString(id)
}

// begin moves the user to the first step of a wizard.
func (e *Engine) begin(t *turn, step conversation.Step, payload conversation.Payload, prompt string, buttons ...[]string) error {
	if err := e.setStep(t, step, payload); err != nil {
		return err
	}
	t.say(prompt, buttons...)
	return nil
}
