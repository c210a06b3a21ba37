// Package messages holds reply and notification templates. Placeholders
// are written {name} and filled by Render.
package messages

import (
	"strings"
	"time"

	"github.com/m3rciful/goroute/core/telegram/format"
)

// Render fills {key} placeholders from alternating key/value pairs. Values
// are inserted verbatim; use Esc for user supplied text.
func Render(tpl string, kv ...string) string {
	if len(kv) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// Esc escapes text for the markdown mode replies are sent in.
func Esc(s string) string { return format.Escape(s) }

// DefaultZone is the time zone used in user facing timestamps.
const DefaultZone = "Asia/Kolkata"

// Zone loads name, falling back to a fixed +05:30 zone when the tz
// database is unavailable.
func Zone(name string) *time.Location {
	if name == "" {
		name = DefaultZone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+1800)
}

// Stamp renders t as "16/10/2026, 09:05:00 pm".
func Stamp(t time.Time, loc *time.Location) string {
	return strings.ToLower(t.In(loc).Format("2/1/2006, 03:04:05 PM"))
}

// Clock renders t as "09:05 PM".
func Clock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("03:04 PM")
}

// Seats joins seat numbers for display.
func Seats(nos []string) string {
	if len(nos) == 0 {
		return "-"
	}
	return strings.Join(nos, ", ")
}
