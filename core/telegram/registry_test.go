package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", Command{Handler: noop, Description: "Main menu", Aliases: []string{"menu"}})
	reg.RegisterCommand("/tick", Command{Handler: noop, Description: "Run tracking tick", AdminOnly: true})
	reg.RegisterCommand("help", Command{Handler: noop, Description: "no slash"})
	reg.RegisterCommand("/start", Command{Handler: noop, Description: "duplicate"})
	reg.RegisterCommand("/empty", Command{Handler: noop})

	cmds := reg.Commands()
	if len(cmds) != 2 || cmds["/start"].Description != "Main menu" {
		t.Fatalf("commands = %+v", cmds)
	}
	menu := reg.MenuCommands()
	if len(menu) != 1 || menu[0].Text != "/start" {
		t.Fatalf("menu = %+v", menu)
	}
	if key, _, ok := reg.LookupCommand("/START@goroute_bot"); !ok || key != "/start" {
		t.Fatalf("lookup with bot suffix = %q %v", key, ok)
	}
	if key, _, ok := reg.LookupCommand("menu"); !ok || key != "/start" {
		t.Fatalf("alias lookup = %q %v", key, ok)
	}
	if key, cmd, ok := reg.LookupCommand("tick"); !ok || key != "/tick" || !cmd.AdminOnly {
		t.Fatalf("bare lookup = %q %v", key, ok)
	}
	if _, _, ok := reg.LookupCommand("/book"); ok {
		t.Fatal("unexpected match")
	}
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("say", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterCallback("say", noop); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.RegisterCallback("", noop); err == nil {
		t.Fatal("expected invalid key error")
	}
	if _, ok := reg.Callback("say"); !ok {
		t.Fatal("callback not found")
	}
	if reg.CallbackCount() != 1 {
		t.Fatalf("callbacks = %d", reg.CallbackCount())
	}
}
