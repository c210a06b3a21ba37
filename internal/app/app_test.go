package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	coretelegram "github.com/m3rciful/goroute/core/telegram"
	"github.com/m3rciful/goroute/internal/dialog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const memoryConfig = `telegram:
  token: t
storage:
  driver: Memory
reservation:
  hold_ttl: 10m
tracking:
  interval: 1m
  waypoints: [Lonavala, Pune Bypass]
http:
  addr: ":0"
  tick_token: secret
layouts:
  - name: 2x1
    columns: [A, B, C]
    pairs: [[A, B]]
`

func TestLoadConfigMemory(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, memoryConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StorageMemory {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Reservation.HoldTTL != 10*time.Minute {
		t.Fatalf("hold ttl = %v", cfg.Reservation.HoldTTL)
	}
	if len(cfg.Tracking.Waypoints) != 2 || len(cfg.Layouts) != 1 {
		t.Fatalf("tracking = %+v, layouts = %+v", cfg.Tracking, cfg.Layouts)
	}
	if cfg.CoreConfig().Telegram.RunMode != "longpoll" {
		t.Fatalf("run mode = %q", cfg.CoreConfig().Telegram.RunMode)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	cfg, err := LoadConfig(writeConfig(t, "telegram:\n  token: t\nstorage:\n  driver: postgres\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != StorageMemory {
		t.Fatalf("driver = %q, want env override", cfg.Storage.Driver)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"driver":   "telegram:\n  token: t\nstorage:\n  driver: mongo\n",
		"postgres": "telegram:\n  token: t\n",
		"secret":   "telegram:\n  token: t\nstorage:\n  driver: memory\npayment:\n  key_id: k\n  key_secret: s\n",
		"layout":   "telegram:\n  token: t\nstorage:\n  driver: memory\nlayouts:\n  - name: bad\n    columns: [A]\n    pairs: [[A, Z]]\n",
	}
	for name, body := range cases {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNewMemoryApp(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, memoryConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rr := httptest.NewRecorder()
	a.api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health = %d", rr.Code)
	}
	replies := a.engine.Handle(context.Background(), dialog.Inbound{UserID: 5, Text: "/start"})
	if len(replies) == 0 {
		t.Fatalf("no reply to /start")
	}
	if err := a.stop(context.Background(), coretelegram.Runtime{}); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestNotifierBeforeStart(t *testing.T) {
	n := &botNotifier{}
	if err := n.Notify(context.Background(), 1, "hi"); err == nil {
		t.Fatal("expected error without a bot")
	}
}

func TestRegistryExposesUserCommands(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, memoryConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	reg, err := a.registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	menu := reg.MenuCommands()
	if len(menu) != 2 || menu[0].Text != "/help" || menu[1].Text != "/start" {
		t.Fatalf("menu = %+v", menu)
	}
	if _, cmd, ok := reg.LookupCommand("/sweep"); !ok || !cmd.AdminOnly {
		t.Fatal("/sweep must be admin only")
	}
	if _, ok := reg.Callback(sayKey); !ok {
		t.Fatal("say callback missing")
	}
}
