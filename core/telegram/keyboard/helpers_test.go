package keyboard

import (
	"strings"
	"testing"
)

func TestEchoRows(t *testing.T) {
	long := strings.Repeat("x", MaxCallbackData)
	m := EchoRows("say", [][]string{{"1", "2"}, {long}, {"help"}})
	if m == nil || len(m.InlineKeyboard) != 2 {
		t.Fatalf("unexpected layout %+v", m)
	}
	if got := m.InlineKeyboard[0][1]; got.Text != "2" || got.Unique != "say" || got.Data != "2" {
		t.Fatalf("button = %+v", got)
	}
	if m.InlineKeyboard[1][0].Text != "help" {
		t.Fatalf("second row = %+v", m.InlineKeyboard[1])
	}
	if EchoRows("say", nil) != nil || EchoRows("say", [][]string{{long}}) != nil {
		t.Fatal("expected nil markup")
	}
}

func TestInlineButtonsRows(t *testing.T) {
	m := InlineButtonsRows([]InlineBtn{{Text: "Pay", Unique: "pay", Data: "order_1"}}, nil)
	if len(m.InlineKeyboard) != 1 || m.InlineKeyboard[0][0].Unique != "pay" {
		t.Fatalf("unexpected keyboard %+v", m.InlineKeyboard)
	}
}
