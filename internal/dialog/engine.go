// Package dialog is the conversational front of the reservation engine. It
// turns one inbound text into replies, moving the sender through the steps
// kept in the conversation store.
package dialog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/goroute/core/logger"
	"github.com/m3rciful/goroute/internal/conversation"
	"github.com/m3rciful/goroute/internal/domain"
	"github.com/m3rciful/goroute/internal/messages"
	"github.com/m3rciful/goroute/internal/reservation"
	"github.com/m3rciful/goroute/internal/seats"
	"github.com/m3rciful/goroute/internal/storage"
	"github.com/m3rciful/goroute/internal/tracking"
)

// MaxPassengers caps the passengers of one booking.
const MaxPassengers = 6

// Inbound is one message from a user. Callback buttons arrive as the text
// of the pressed button.
type Inbound struct {
	UserID int64
	Name   string
	Text   string
}

// Reply is one outbound Markdown message. Buttons are optional quick
// answers, one slice per row.
type Reply struct {
	Text    string
	Buttons [][]string
}

// Deps are the services the engine drives.
type Deps struct {
	Store     storage.Store
	Seats     *seats.Service
	Finalizer *reservation.Finalizer
	Tracker   *tracking.Scheduler
	Locker    *conversation.Locker
}

type Engine struct {
	store   storage.Store
	seats   *seats.Service
	fin     *reservation.Finalizer
	tracker *tracking.Scheduler
	locker  *conversation.Locker
	zone    *time.Location
	now     func() time.Time
}

func New(d Deps) *Engine {
	if d.Locker == nil {
		d.Locker = conversation.NewLocker()
	}
	return &Engine{
		store:   d.Store,
		seats:   d.Seats,
		fin:     d.Finalizer,
		tracker: d.Tracker,
		locker:  d.Locker,
		zone:    d.Finalizer.Zone(),
		now:     time.Now,
	}
}

// turn is the working set of one Handle call.
type turn struct {
	ctx        context.Context
	in         Inbound
	text       string
	lower      string
	user       domain.User
	registered bool
	state      conversation.State
	replies    []Reply
}

func (t *turn) say(text string, buttons ...[]string) {
	t.replies = append(t.replies, Reply{Text: text, Buttons: buttons})
}

// Handle processes in under the sender's lock. Errors never escape: they
// are logged and rendered as a reply.
func (e *Engine) Handle(ctx context.Context, in Inbound) []Reply {
	start := time.Now()
	ctx = logger.WithUserID(ctx, in.UserID)
	t := &turn{
		ctx:   ctx,
		in:    in,
		text:  strings.TrimSpace(in.Text),
		lower: strings.ToLower(strings.TrimSpace(in.Text)),
	}
	if t.text == "" {
		return nil
	}

	unlock, err := e.locker.Lock(ctx, in.UserID)
	if err != nil {
		return []Reply{{Text: messages.InternalError}}
	}
	defer unlock()

	step := conversation.StepIdle
	err = e.load(t)
	if err == nil {
		step = t.state.Step
		err = e.dispatch(t)
	}
	if err != nil {
		t.say(errorText(err))
	}
	logger.Info(ctx, logger.CompDialog, "turn",
		slog.String("status", logger.Status(err)),
		slog.String("step", string(step)),
		slog.String("role", string(t.user.Role)),
		slog.Int("count", len(t.replies)),
		slog.Duration("duration", logger.Took(start)),
		logger.Err(err),
	)
	return t.replies
}

func (e *Engine) load(t *turn) error {
	u, err := e.store.GetUser(t.ctx, t.in.UserID)
	switch {
	case err == nil:
		t.user, t.registered = u, true
	case !domain.IsKind(err, domain.KindNotFound):
		return err
	}
	t.state, err = e.store.States().Get(t.ctx, t.in.UserID)
	return err
}

func (e *Engine) dispatch(t *turn) error {
	switch t.lower {
	case "/start", "start":
		return e.start(t)
	case "/help", "help":
		return e.help(t)
	}
	if !t.state.IsIdle() {
		if h, ok := e.steps()[t.state.Step]; ok {
			return h(t)
		}
	}
	return e.command(t)
}

// reset drops whatever the user had in progress and tells them when held
// seats were given up.
func (e *Engine) reset(t *turn) error {
	released, err := e.fin.ResetUser(t.ctx, t.in.UserID)
	if err != nil {
		return err
	}
	t.state = conversation.Idle(t.in.UserID)
	if released {
		t.say(messages.SessionCleared)
	}
	return nil
}

func (e *Engine) start(t *turn) error {
	if err := e.reset(t); err != nil {
		return err
	}
	if t.registered {
		name := t.user.Name
		if name == "" {
			name = t.in.Name
		}
		t.say(messages.Render(messages.WelcomeBack, "name", messages.Esc(orDefault(name, "User"))))
		t.say(helpText(t.user.Role))
		return nil
	}
	if err := e.setStep(t, conversation.StepRoleSelect, conversation.Registration{FirstName: t.in.Name}); err != nil {
		return err
	}
	t.say(messages.PromptRole, []string{"1", "2", "3"})
	return nil
}

func (e *Engine) help(t *turn) error {
	if err := e.reset(t); err != nil {
		return err
	}
	t.say(helpText(t.user.Role))
	return nil
}

func helpText(role domain.Role) string {
	switch role {
	case domain.RoleOwner:
		return messages.Help + messages.HelpManager + messages.HelpOwner
	case domain.RoleManager:
		return messages.Help + messages.HelpManager
	}
	return messages.Help
}

func (e *Engine) setStep(t *turn, step conversation.Step, payload conversation.Payload) error {
	st, err := conversation.New(t.in.UserID, step, payload)
	if err != nil {
		return err
	}
	if err := e.store.States().Set(t.ctx, st); err != nil {
		return err
	}
	t.state = st
	return nil
}

func (e *Engine) clear(t *turn) error {
	if err := e.store.States().Clear(t.ctx, t.in.UserID); err != nil {
		return err
	}
	t.state = conversation.Idle(t.in.UserID)
	return nil
}

// errorText renders err for the user. Infrastructure failures get a
// generic message.
func errorText(err error) string {
	switch domain.KindOf(err) {
	case domain.KindUnknown, domain.KindExternalServiceFailure, domain.KindStateInconsistency:
		return messages.InternalError
	case domain.KindPermissionDenied:
		return "❌ " + messages.Esc(domain.UserMessage(err, "you do not have permission to do that"))
	}
	return "❌ " + messages.Esc(domain.UserMessage(err, "request failed"))
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
