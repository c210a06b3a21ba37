package helpers

import (
	"context"
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

type captureSender struct {
	to   tele.Recipient
	text string
	err  error
}

func (s *captureSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	s.to = to
	s.text, _ = what.(string)
	return &tele.Message{}, s.err
}

func TestNotifyWithoutDispatcherSendsInline(t *testing.T) {
	SetDispatcher(nil)
	s := &captureSender{}
	if err := Notify(context.Background(), s, 42, "*Ticket*"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if s.to.Recipient() != "42" || s.text != "*Ticket*" {
		t.Fatalf("sent to %v text %q", s.to, s.text)
	}

	s.err = errors.New("blocked")
	if err := Notify(context.Background(), s, 42, "x"); err == nil {
		t.Fatal("expected send error")
	}
	if err := Notify(context.Background(), nil, 42, "x"); err == nil {
		t.Fatal("expected nil bot error")
	}
}
