package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/internal/domain/types"
)

// eventSubIDHeader carries the EventSub message id when the relay forwards
// Twitch notifications untouched.
const eventSubIDHeader = "Twitch-Eventsub-Message-Id"

// envelope accepts both the flat relay shape and a raw EventSub
// channel.raid notification.
type envelope struct {
	types.RelayEvent
	Event *eventSubRaid `json:"event"`
}

type eventSubRaid struct {
	FromLogin string `json:"from_broadcaster_user_login"`
	ToLogin   string `json:"to_broadcaster_user_login"`
	Viewers   int    `json:"viewers"`
}

// decodeMessage turns one Kafka message into a source event. Messages without
// an id fall back to the EventSub header, then to topic/partition/offset so
// redelivery of the same offset stays idempotent.
func decodeMessage(msg kafka.Message, src model.Source) (model.SourceEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(msg.Value))
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return model.SourceEvent{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	wire := env.RelayEvent
	if env.Event != nil && wire.Raider == "" {
		// A batched raid still counts once; viewers are not raids.
		wire.Raider = env.Event.FromLogin
		wire.Target = env.Event.ToLogin
		wire.Count = 1
	}
	if strings.TrimSpace(wire.ID) == "" {
		wire.ID = headerValue(msg, eventSubIDHeader)
	}
	if strings.TrimSpace(wire.ID) == "" {
		wire.ID = msg.Topic + ":" + strconv.Itoa(msg.Partition) + ":" + strconv.FormatInt(msg.Offset, 10)
	}
	if wire.Date == "" {
		t := msg.Time
		if t.IsZero() {
			t = time.Now()
		}
		wire.Date = t.UTC().Format(time.RFC3339)
	}

	ev, err := wire.SourceEvent(src)
	if err != nil {
		return model.SourceEvent{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return ev, nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}
