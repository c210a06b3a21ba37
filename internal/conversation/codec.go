package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/m3rciful/goroute/internal/domain"
)

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode serializes a payload with its kind tag. A nil payload encodes as
// an envelope with an empty kind.
func Encode(p Payload) ([]byte, error) {
	env := envelope{}
	if p != nil {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
		}
		env.Kind = p.Kind()
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode restores the payload stored for step and checks the tag matches it.
func Decode(step Step, raw []byte) (Payload, error) {
	want, ok := KindOf(step)
	if !ok {
		return nil, domain.StateInconsistency("unknown step %q", step)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, domain.Wrap(domain.KindStateInconsistency, err, "decode state envelope")
		}
	}
	if env.Kind != want {
		return nil, domain.StateInconsistency("step %s stored with %q payload", step, env.Kind)
	}

	switch want {
	case KindNone:
		return nil, nil
	case KindRegistration:
		return decodeInto[Registration](env.Data)
	case KindSearch:
		return decodeInto[Search](env.Data)
	case KindBooking:
		return decodeInto[Booking](env.Data)
	case KindPayment:
		return decodeInto[PaymentHold](env.Data)
	case KindBus:
		return decodeInto[BusDraft](env.Data)
	case KindTracking:
		return decodeInto[TrackingDraft](env.Data)
	case KindSync:
		return decodeInto[SyncDraft](env.Data)
	case KindSetting:
		return decodeInto[SettingDraft](env.Data)
	}
	return nil, domain.StateInconsistency("unsupported payload kind %q", want)
}

func decodeInto[T Payload](data json.RawMessage) (Payload, error) {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, domain.Wrap(domain.KindStateInconsistency, err, "decode %s payload", v.Kind())
		}
	}
	return v, nil
}
