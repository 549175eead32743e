package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/raidstats/internal/adapters/repository"
	service "github.com/okian/raidstats/internal/app"
	"github.com/okian/raidstats/internal/domain/aggregate"
	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/internal/domain/stats"
	"github.com/okian/raidstats/internal/domain/types"
	"github.com/okian/raidstats/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	now    = time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC)
	roster = []model.Member{
		{ID: "m1", TwitchLogin: "Alice", DisplayName: "Alice W", IsActive: true},
		{ID: "m2", TwitchLogin: "Bob", DiscordUsername: "bobby", IsActive: true},
		{ID: "m3", TwitchLogin: "Alicia", IsActive: false},
	}
	errStoreDown = errors.New("store down")
)

const paste = "01/10/2025 20:00\n" +
	"@Alice raid @Bob\n" +
	"@Alice a raid @Ghost et @Bob vers @Alice\n" +
	"oups @x raid @y\n" +
	"@Alice raid @alice"

// flakyStore fails selected operations of an embedded MemoryStore.
type flakyStore struct {
	*repository.MemoryStore
	failMembers bool
	failIgnored bool
	failAppend  bool
}

func (f *flakyStore) Members(ctx context.Context) ([]model.Member, error) {
	if f.failMembers {
		return nil, errStoreDown
	}
	return f.MemoryStore.Members(ctx)
}

func (f *flakyStore) LoadIgnored(ctx context.Context, month string) ([]model.IgnoredRaidKey, error) {
	if f.failIgnored {
		return nil, errStoreDown
	}
	return f.MemoryStore.LoadIgnored(ctx, month)
}

func (f *flakyStore) AppendAccepted(ctx context.Context, month string, raids ...model.AcceptedRaid) error {
	if f.failAppend {
		return errStoreDown
	}
	return f.MemoryStore.AppendAccepted(ctx, month, raids...)
}

// slowStore delays every accepted-raid write.
type slowStore struct {
	*repository.MemoryStore
	delay time.Duration
}

func (s *slowStore) AppendAccepted(ctx context.Context, month string, raids ...model.AcceptedRaid) error {
	time.Sleep(s.delay)
	return s.MemoryStore.AppendAccepted(ctx, month, raids...)
}

func newService(store repository.Store, opts ...service.Option) *service.Service {
	ids := 0
	base := []service.Option{
		service.WithStore(store),
		service.WithClock(func() time.Time { return now }),
		service.WithLocation(time.UTC),
		service.WithIDGenerator(func() string { ids++; return fmt.Sprintf("id-%d", ids) }),
		service.WithWorkerCount(2),
	}
	return service.New(append(base, opts...)...)
}

func TestService_Analyze(t *testing.T) {
	Convey("Given a service with a roster", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithMembers(roster))
		svc := newService(store)

		Convey("When a paste is analyzed", func() {
			res, err := svc.Analyze(ctx, types.AnalyzeRequest{Month: "2025-10", Text: paste})

			Convey("Then every raid candidate gets a row", func() {
				So(err, ShouldBeNil)
				So(res.Month, ShouldEqual, "2025-10")
				So(res.Summary, ShouldResemble, types.Summary{Lines: 5, Total: 3, OK: 2, Unknown: 1})
				So(res.Rows, ShouldHaveLength, 3)

				So(res.Rows[0].LineNumber, ShouldEqual, 2)
				So(res.Rows[0].Status, ShouldEqual, model.StatusOK)
				So(res.Rows[0].MatchedTarget.ID, ShouldEqual, "m2")
				So(res.Rows[0].Date, ShouldEqual, time.Date(2025, 10, 1, 20, 0, 0, 0, time.UTC))

				So(res.Rows[1].LineNumber, ShouldEqual, 3)
				So(res.Rows[1].TargetKey, ShouldEqual, "ghost")
				So(res.Rows[1].Status, ShouldEqual, model.StatusUnknown)
				So(res.Rows[1].Reason, ShouldEqual, aggregate.ReasonTargetNotFound)
				So(res.Rows[1].TargetMissing, ShouldBeTrue)

				So(res.Rows[2].RaiderKey, ShouldEqual, "bob")
				So(res.Rows[2].Status, ShouldEqual, model.StatusOK)
			})
		})

		Convey("When the month is empty", func() {
			res, err := svc.Analyze(ctx, types.AnalyzeRequest{Text: "@Alice raid @Bob"})

			Convey("Then the current month and time are used", func() {
				So(err, ShouldBeNil)
				So(res.Month, ShouldEqual, "2025-10")
				So(res.Rows[0].Date, ShouldEqual, now)
			})
		})

		Convey("When an unknown row is ignored and the paste re-analyzed", func() {
			added, err := svc.Ignore(ctx, types.IgnoreRequest{Month: "2025-10", RaiderKey: "alice", TargetKey: "Ghost", RawText: "@Alice a raid @Ghost"})
			So(err, ShouldBeNil)
			So(added, ShouldBeTrue)

			again, err := svc.Ignore(ctx, types.IgnoreRequest{Month: "2025-10", RaiderKey: "alice", TargetKey: "ghost"})
			So(err, ShouldBeNil)
			So(again, ShouldBeFalse)

			res, err := svc.Analyze(ctx, types.AnalyzeRequest{Month: "2025-10", Text: paste})

			Convey("Then the pair is ignored for that month only", func() {
				So(err, ShouldBeNil)
				So(res.Rows[1].Status, ShouldEqual, model.StatusIgnored)
				So(res.Summary.Ignored, ShouldEqual, 1)

				next, err := svc.Analyze(ctx, types.AnalyzeRequest{Month: "2025-11", Text: paste})
				So(err, ShouldBeNil)
				So(next.Rows[1].Status, ShouldEqual, model.StatusUnknown)
			})
		})

		Convey("When an override binds the unknown handle", func() {
			res, err := svc.Analyze(ctx, types.AnalyzeRequest{
				Month: "2025-10", Text: paste, Overrides: map[string]string{"@Ghost": "m2"},
			})

			So(err, ShouldBeNil)
			So(res.Rows[1].Status, ShouldEqual, model.StatusOK)
			So(res.Rows[1].MatchedTarget.ID, ShouldEqual, "m2")
		})

		Convey("When a paste is dated in another month", func() {
			res, err := svc.Analyze(ctx, types.AnalyzeRequest{
				Month: "2025-01", Text: "15/03/2025 20:00\n@Alice raid @Bob\n@Alice raid @Ghost",
			})

			Convey("Then matched rows are not counted as ok for the requested month", func() {
				So(err, ShouldBeNil)
				So(res.Rows, ShouldHaveLength, 2)
				So(res.Rows[0].Status, ShouldEqual, model.StatusUnknown)
				So(res.Rows[0].Reason, ShouldEqual, aggregate.ReasonOutsideMonth)
				So(res.Rows[1].Reason, ShouldEqual, aggregate.ReasonTargetNotFound)
				So(res.Summary.OK, ShouldEqual, 0)
			})
		})

		Convey("When the request is invalid", func() {
			_, err := svc.Analyze(ctx, types.AnalyzeRequest{Month: "2025-13", Text: paste})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)

			_, err = svc.Analyze(ctx, types.AnalyzeRequest{Text: paste, Overrides: map[string]string{"ghost": "m3"}})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)

			_, err = svc.Ignore(ctx, types.IgnoreRequest{Month: "2025-10", RaiderKey: " ", TargetKey: "bob"})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)

			small := newService(store, service.WithMaxPasteBytes(8))
			_, err = small.Analyze(ctx, types.AnalyzeRequest{Text: paste})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})
	})

	Convey("Given a store that cannot load", t, func() {
		ctx := context.Background()
		store := &flakyStore{MemoryStore: repository.NewMemoryStore(repository.WithMembers(roster))}

		Convey("When the roster fails", func() {
			store.failMembers = true
			_, err := newService(store).Analyze(ctx, types.AnalyzeRequest{Text: paste})
			So(errors.Is(err, errStoreDown), ShouldBeTrue)
		})

		Convey("When the ignore-list fails", func() {
			store.failIgnored = true
			_, err := newService(store).Analyze(ctx, types.AnalyzeRequest{Text: paste})
			So(errors.Is(err, errStoreDown), ShouldBeTrue)
		})
	})
}

func TestService_AcceptAndMonthlyView(t *testing.T) {
	Convey("Given accepted raids for October", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithMembers(roster))
		svc := newService(store)

		day := time.Date(2025, 10, 2, 21, 0, 0, 0, time.UTC)
		rows := []types.AcceptedRow{
			{Raider: "Alice", Target: "Bob", Date: day},
			{Raider: "alice", Target: "@bob", Date: day},
			{Raider: "Alice W", Target: "bobby", Date: day},
			{Raider: "Ghost", RaiderID: "m1", Target: "Bob", Date: day},
			{Raider: "Bob", Target: "Alice", Date: day, Count: 3, Source: model.SourceTwitch},
			{Raider: "Bob", Target: "Nobody", Date: day, Source: model.SourceDiscord},
		}
		n, err := svc.Accept(ctx, types.AcceptRequest{Month: "2025-10", Raids: rows})
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 6)

		Convey("When the view includes every source", func() {
			view, err := svc.MonthlyView(ctx, "2025-10", aggregate.AllSources())

			Convey("Then totals, tops and alerts follow the accepted raids", func() {
				So(err, ShouldBeNil)
				So(view.Stats.TotalDone, ShouldEqual, 7)
				So(view.Stats.TotalReceived, ShouldEqual, 5)
				So(view.Stats.TopRaider.Key, ShouldEqual, "alice")
				So(view.Stats.TopTarget.Key, ShouldEqual, "bob")
				So(view.Stats.Alerts, ShouldResemble, []stats.Alert{{Raider: "alice", Target: "bob", Count: 4}})
				So(view.Index.Unknown, ShouldEqual, 1)
				So(view.Index.BySource[model.SourceTwitch], ShouldEqual, 1)
				So(view.Index.Members["alice"].Done, ShouldEqual, 4)
			})
		})

		Convey("When twitch is filtered out", func() {
			view, err := svc.MonthlyView(ctx, "2025-10", aggregate.Filters{Discord: true, Manual: true})

			So(err, ShouldBeNil)
			So(view.Stats.TotalDone, ShouldEqual, 4)
			So(view.Stats.ActiveRaidersCount, ShouldEqual, 1)
			So(view.Index.Unknown, ShouldEqual, 1)
		})

		Convey("When a pair is ignored after acceptance", func() {
			_, err := svc.Ignore(ctx, types.IgnoreRequest{Month: "2025-10", RaiderKey: "bob", TargetKey: "alice"})
			So(err, ShouldBeNil)

			view, err := svc.MonthlyView(ctx, "2025-10", aggregate.AllSources())

			So(err, ShouldBeNil)
			So(view.Index.Ignored, ShouldEqual, 1)
			So(view.Stats.TotalDone, ShouldEqual, 4)
		})

		Convey("When another month is viewed", func() {
			view, err := svc.MonthlyView(ctx, "2025-09", aggregate.AllSources())

			So(err, ShouldBeNil)
			So(view.Stats.TotalDone, ShouldEqual, 0)
			So(view.Stats.Alerts, ShouldBeEmpty)
		})

		Convey("When accept input is invalid", func() {
			_, err := svc.Accept(ctx, types.AcceptRequest{Month: "2025-10", Raids: []types.AcceptedRow{{Raider: "a"}}})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)

			_, err = svc.Accept(ctx, types.AcceptRequest{Raids: []types.AcceptedRow{{Raider: "a", Target: "b", Source: "youtube"}}})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)

			_, err = svc.Accept(ctx, types.AcceptRequest{Raids: []types.AcceptedRow{{Raider: "a", Target: "b", TargetID: "m3"}}})
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)

			_, err = svc.MonthlyView(ctx, "october", aggregate.AllSources())
			So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
		})

		Convey("When rows are dated outside the request month", func() {
			march := time.Date(2025, 3, 15, 20, 0, 0, 0, time.UTC)
			n, err := svc.Accept(ctx, types.AcceptRequest{Month: "2025-01", Raids: []types.AcceptedRow{
				{Raider: "Alice", Target: "Bob", Date: march},
				{Raider: "Bob", Target: "Alice"},
			}})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			Convey("Then each raid is indexed under the month of its date", func() {
				mar, err := svc.MonthlyView(ctx, "2025-03", aggregate.AllSources())
				So(err, ShouldBeNil)
				So(mar.Stats.TotalDone, ShouldEqual, 1)
				So(mar.Index.Members["alice"].Done, ShouldEqual, 1)

				jan, err := svc.MonthlyView(ctx, "2025-01", aggregate.AllSources())
				So(err, ShouldBeNil)
				So(jan.Stats.TotalDone, ShouldEqual, 1)
				So(jan.Index.Members["bob"].Done, ShouldEqual, 1)

				stored, err := store.LoadAccepted(ctx, "2025-01")
				So(err, ShouldBeNil)
				So(stored, ShouldHaveLength, 1)
				So(stored[0].Date, ShouldEqual, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
			})
		})

		Convey("When the store rejects the write", func() {
			flaky := &flakyStore{MemoryStore: repository.NewMemoryStore(), failAppend: true}
			_, err := newService(flaky).Accept(ctx, types.AcceptRequest{Raids: rows[:1]})
			So(errors.Is(err, errStoreDown), ShouldBeTrue)
		})
	})
}

func TestService_SearchMembers(t *testing.T) {
	Convey("Given a roster with an inactive member", t, func() {
		svc := newService(repository.NewMemoryStore(repository.WithMembers(roster)))

		Convey("When searching a shared prefix", func() {
			res, err := svc.SearchMembers(context.Background(), "ALI")

			So(err, ShouldBeNil)
			So(res.Members, ShouldHaveLength, 1)
			So(res.Members[0].ID, ShouldEqual, "m1")
		})

		Convey("When the query is blank", func() {
			res, err := svc.SearchMembers(context.Background(), "  ")

			So(err, ShouldBeNil)
			So(res.Members, ShouldBeEmpty)
		})
	})
}

func TestService_Relay(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithMembers(roster))
		svc := newService(store)
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		ev := model.SourceEvent{
			ID: "tw-1", Source: model.SourceTwitch, Raider: "alice", Target: "bob", Count: 1,
			Date: time.Date(2025, 10, 5, 20, 0, 0, 0, time.UTC),
		}

		Convey("When the same event is submitted twice and the service stops", func() {
			ok, err := svc.Submit(ctx, ev)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			dup, err := svc.Submit(ctx, ev)
			So(err, ShouldBeNil)
			So(dup, ShouldBeFalse)

			svc.Stop()

			Convey("Then one raid lands in its month", func() {
				accepted, err := store.LoadAccepted(ctx, "2025-10")
				So(err, ShouldBeNil)
				So(accepted, ShouldHaveLength, 1)
				So(accepted[0].Source, ShouldEqual, model.SourceTwitch)

				view, err := svc.MonthlyView(ctx, "2025-10", aggregate.AllSources())
				So(err, ShouldBeNil)
				So(view.Index.BySource[model.SourceTwitch], ShouldEqual, 1)
			})

			Convey("Then later submits are refused", func() {
				ev.ID = "tw-2"
				_, err := svc.Submit(ctx, ev)
				So(errors.Is(err, service.ErrStopped), ShouldBeTrue)
				So(errors.Is(svc.Start(ctx), service.ErrStopped), ShouldBeTrue)
			})
		})

		Reset(func() { svc.Stop() })
	})

	Convey("Given a started service with one worker and a slow store", t, func() {
		store := &slowStore{MemoryStore: repository.NewMemoryStore(), delay: 5 * time.Millisecond}
		svc := newService(store, service.WithWorkerCount(1))
		runCtx, cancel := context.WithCancel(context.Background())
		So(svc.Start(runCtx), ShouldBeNil)

		Convey("When the start context is cancelled before the queue drains", func() {
			ctx := context.Background()
			for i := 0; i < 20; i++ {
				ok, err := svc.Submit(ctx, model.SourceEvent{
					ID: fmt.Sprintf("d-%d", i), Source: model.SourceDiscord, Raider: "a", Target: "b", Count: 1,
					Date: time.Date(2025, 10, 5, 20, 0, 0, 0, time.UTC),
				})
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
			}
			cancel()
			svc.Stop()

			Convey("Then every accepted event is persisted", func() {
				accepted, err := store.LoadAccepted(ctx, "2025-10")
				So(err, ShouldBeNil)
				So(accepted, ShouldHaveLength, 20)
			})
		})

		Reset(func() {
			cancel()
			svc.Stop()
		})
	})

	Convey("Given a service whose queue holds one event", t, func() {
		ctx := context.Background()
		svc := newService(repository.NewMemoryStore(), service.WithQueueSize(1))
		ev := model.SourceEvent{ID: "d-1", Source: model.SourceDiscord, Raider: "a", Target: "b", Date: now}

		Convey("When a second event arrives before any worker runs", func() {
			_, err := svc.Submit(ctx, ev)
			So(err, ShouldBeNil)

			ev.ID = "d-2"
			_, err = svc.Submit(ctx, ev)
			So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)

			Convey("Then the rejected id is not remembered", func() {
				_, err := svc.Submit(ctx, ev)
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
				So(svc.GetStats()["queueLength"], ShouldEqual, 1)
			})
		})
	})

	Convey("Given a store that rejects relay writes", t, func() {
		ctx := context.Background()
		flaky := &flakyStore{MemoryStore: repository.NewMemoryStore(), failAppend: true}
		svc := newService(flaky)
		ev := model.SourceEvent{ID: "d-9", Source: model.SourceDiscord, Raider: "a", Target: "b", Date: now}

		Convey("When ingest fails", func() {
			ok, err := svc.Submit(ctx, ev)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(errors.Is(svc.Ingest(ctx, ev), errStoreDown), ShouldBeTrue)

			Convey("Then the same id can be submitted again", func() {
				again, err := svc.Submit(ctx, ev)
				So(err, ShouldBeNil)
				So(again, ShouldBeTrue)
			})
		})
	})
}

func TestService_Health(t *testing.T) {
	Convey("Given a memory-backed service", t, func() {
		svc := newService(repository.NewMemoryStore())

		So(svc.Health(context.Background()), ShouldBeNil)
		st := svc.GetStats()
		So(st["started"], ShouldBeFalse)
		So(st["workerCount"], ShouldEqual, 2)
		So(st["timezone"], ShouldEqual, "UTC")
	})
}
