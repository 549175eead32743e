package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/raidstats/internal/adapters/mq/queue"
	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/pkg/logger"
)

type fakeFetcher struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}

type fakeSink struct {
	events []model.SourceEvent
	seen   map[string]bool
	full   int
	closed bool
}

func (s *fakeSink) Submit(_ context.Context, e model.SourceEvent) (bool, error) {
	if s.closed {
		return false, queue.ErrClosed
	}
	if s.full > 0 {
		s.full--
		return false, queue.ErrFull
	}
	if s.seen[e.ID] {
		return false, nil
	}
	s.seen[e.ID] = true
	s.events = append(s.events, e)
	return true, nil
}

func TestDecodeMessage(t *testing.T) {
	Convey("Given relay messages", t, func() {
		at := time.Date(2025, 10, 3, 21, 0, 0, 0, time.UTC)

		Convey("When the flat relay shape carries every field", func() {
			ev, err := decodeMessage(kafka.Message{
				Value: []byte(`{"id":"d-1","source":"discord","raider":"Alice","target":"Bob","count":2,"date":"2025-10-03"}`),
			}, model.SourceTwitch)

			So(err, ShouldBeNil)
			So(ev.ID, ShouldEqual, "d-1")
			So(ev.Source, ShouldEqual, model.SourceDiscord)
			So(ev.Count, ShouldEqual, 2)
		})

		Convey("When a raw EventSub notification is forwarded", func() {
			ev, err := decodeMessage(kafka.Message{
				Topic:   "raids.twitch",
				Time:    at,
				Headers: []kafka.Header{{Key: "twitch-eventsub-message-id", Value: []byte("es-9")}},
				Value: []byte(`{"subscription":{"type":"channel.raid"},"event":{` +
					`"from_broadcaster_user_login":"alice","to_broadcaster_user_login":"bob","viewers":42}}`),
			}, model.SourceTwitch)

			Convey("Then the topic source, header id and message time are used", func() {
				So(err, ShouldBeNil)
				So(ev.ID, ShouldEqual, "es-9")
				So(ev.Source, ShouldEqual, model.SourceTwitch)
				So(ev.Raider, ShouldEqual, "alice")
				So(ev.Target, ShouldEqual, "bob")
				So(ev.Count, ShouldEqual, 1)
				So(ev.Date, ShouldEqual, at)
			})
		})

		Convey("When no id is present anywhere", func() {
			ev, err := decodeMessage(kafka.Message{
				Topic: "raids.discord", Partition: 2, Offset: 17, Time: at,
				Value: []byte(`{"raider":"a","target":"b"}`),
			}, model.SourceDiscord)

			So(err, ShouldBeNil)
			So(ev.ID, ShouldEqual, "raids.discord:2:17")
		})

		Convey("When the payload is not json or misses a side", func() {
			_, err := decodeMessage(kafka.Message{Value: []byte(`not json`)}, model.SourceDiscord)
			So(errors.Is(err, ErrDecode), ShouldBeTrue)

			_, err = decodeMessage(kafka.Message{Time: at, Value: []byte(`{"id":"x","raider":"a"}`)}, model.SourceDiscord)
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})
	})
}

func TestConsumer(t *testing.T) {
	_ = logger.Init()

	Convey("Given a consumer over a fake reader", t, func() {
		at := time.Date(2025, 10, 3, 21, 0, 0, 0, time.UTC)
		f := &fakeFetcher{msgs: []kafka.Message{
			{Offset: 1, Time: at, Value: []byte(`{"id":"e1","raider":"a","target":"b"}`)},
			{Offset: 2, Time: at, Value: []byte(`garbage`)},
			{Offset: 3, Time: at, Value: []byte(`{"id":"e1","raider":"a","target":"b"}`)},
			{Offset: 4, Time: at, Value: []byte(`{"id":"e2","raider":"c","target":"d"}`)},
		}}
		sink := &fakeSink{seen: map[string]bool{}, full: 2}
		cfg := Config{Brokers: []string{"localhost:9092"}, Topic: "raids.twitch", GroupID: "g", Source: model.SourceTwitch}

		c, err := NewConsumer(cfg, sink, withFetcher(f), WithRetryDelay(time.Millisecond), WithPollTimeout(time.Second))
		So(err, ShouldBeNil)

		Convey("When it runs until the reader is exhausted", func() {
			So(c.Run(context.Background()), ShouldBeNil)

			Convey("Then duplicates and garbage are dropped and every offset committed", func() {
				So(sink.events, ShouldHaveLength, 2)
				So(sink.events[0].ID, ShouldEqual, "e1")
				So(sink.events[1].ID, ShouldEqual, "e2")
				So(f.committed, ShouldResemble, []int64{1, 2, 3, 4})
			})

			Convey("Then Close reaches the reader", func() {
				So(c.Close(), ShouldBeNil)
				So(f.closed, ShouldBeTrue)
			})
		})

		Convey("When the sink has been stopped", func() {
			sink.closed = true
			err := c.Run(context.Background())

			Convey("Then the consumer stops without committing", func() {
				So(errors.Is(err, queue.ErrClosed), ShouldBeTrue)
				So(f.committed, ShouldBeEmpty)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			So(errors.Is(c.Run(ctx), context.Canceled), ShouldBeTrue)
			So(f.committed, ShouldBeEmpty)
		})
	})

	Convey("Given invalid consumer settings", t, func() {
		sink := &fakeSink{seen: map[string]bool{}}
		for _, cfg := range []Config{
			{Topic: "t", GroupID: "g", Source: model.SourceTwitch},
			{Brokers: []string{"b"}, GroupID: "g", Source: model.SourceTwitch},
			{Brokers: []string{"b"}, Topic: "t", Source: model.SourceTwitch},
			{Brokers: []string{"b"}, Topic: "t", GroupID: "g", Source: "youtube"},
		} {
			_, err := NewConsumer(cfg, sink)
			So(errors.Is(err, ErrConfig), ShouldBeTrue)
		}
	})
}
