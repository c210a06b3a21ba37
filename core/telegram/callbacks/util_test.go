package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		cb           *tele.Callback
		key, payload string
	}{
		{nil, "", ""},
		{&tele.Callback{Unique: "say", Data: "book seat"}, "say", "book seat"},
		{&tele.Callback{Data: "\fsay|show seats BUS1A2B3C4D"}, "say", "show seats BUS1A2B3C4D"},
		{&tele.Callback{Data: "\\fsay|1"}, "say", "1"},
		{&tele.Callback{Data: "noop"}, "noop", ""},
	}
	for _, tc := range cases {
		key, payload := ParseCallbackData(tc.cb)
		if key != tc.key || payload != tc.payload {
			t.Fatalf("ParseCallbackData(%+v) = %q,%q want %q,%q", tc.cb, key, payload, tc.key, tc.payload)
		}
	}
}
