package push

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
)

// EventStatusChanged is emitted by the service after every accepted status update
const EventStatusChanged = "estado_changed"

// socketIOEvent is the Socket.IO message prefix for an event packet on the default namespace
const socketIOEvent = "42"

var (
	// ErrIgnored is returned for frames that carry no status change
	ErrIgnored = errors.New("frame ignored")

	// ErrMalformed is returned for frames that cannot be decoded
	ErrMalformed = errors.New("malformed push frame")
)

// Event is a status change made by any operator
type Event struct {
	ID     int64
	Status attendance.Status
}

// Decode parses a push frame. Both the JSON envelope {"event":..., "data":{...}} and the
// Socket.IO text form 42["event",{...}] are accepted.
func Decode(frame []byte) (Event, error) {
	text := strings.TrimSpace(string(frame))

	var name, payload gjson.Result
	switch {
	case strings.HasPrefix(text, socketIOEvent+"["):
		body := strings.TrimPrefix(text, socketIOEvent)
		if !gjson.Valid(body) {
			return Event{}, ErrMalformed
		}
		packet := gjson.Parse(body)
		name, payload = packet.Get("0"), packet.Get("1")
	case strings.HasPrefix(text, "{"):
		if !gjson.Valid(text) {
			return Event{}, ErrMalformed
		}
		name, payload = gjson.Get(text, "event"), gjson.Get(text, "data")
	default:
		// Engine.IO control packets and anything else
		return Event{}, ErrIgnored
	}

	if name.String() != EventStatusChanged {
		return Event{}, fmt.Errorf("%w: event %q", ErrIgnored, name.String())
	}

	id := payload.Get("id")
	if id.Type != gjson.Number {
		return Event{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	status, err := attendance.ParseStatus(payload.Get("estado").String())
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return Event{ID: id.Int(), Status: status}, nil
}
