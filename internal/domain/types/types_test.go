package types_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/raidstats/internal/domain/aggregate"
	"github.com/okian/raidstats/internal/domain/model"
	types "github.com/okian/raidstats/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAnalysisRow(t *testing.T) {
	Convey("Given a classified raid event", t, func() {
		ts := time.Date(2025, 10, 3, 21, 0, 0, 0, time.UTC)
		alice := &model.Member{ID: "m1", TwitchLogin: "Alice", IsActive: true}
		ev := model.NewRaidEvent("Alice", "Ghost", ts, model.SourceManual, 1)
		ev.MatchedRaider = alice
		ev.Status = model.StatusUnknown

		Convey("When rendering an unknown row", func() {
			row := types.NewAnalysisRow(4, "@Alice raid @Ghost", ev)

			Convey("Then the missing side and reason are reported", func() {
				So(row.LineNumber, ShouldEqual, 4)
				So(row.RaiderKey, ShouldEqual, "alice")
				So(row.TargetKey, ShouldEqual, "ghost")
				So(row.Date, ShouldEqual, ts)
				So(row.Reason, ShouldEqual, aggregate.ReasonTargetNotFound)
				So(row.RaiderMissing, ShouldBeFalse)
				So(row.TargetMissing, ShouldBeTrue)
				So(row.MatchedRaider.ID, ShouldEqual, "m1")
				So(row.MatchedTarget, ShouldBeNil)
			})
		})

		Convey("When rendering an ignored row", func() {
			ev.Status = model.StatusIgnored
			row := types.NewAnalysisRow(1, "x", ev)

			Convey("Then no reason is attached", func() {
				So(row.Reason, ShouldEqual, "")
				So(row.TargetMissing, ShouldBeFalse)
			})
		})
	})
}

func TestSummary(t *testing.T) {
	Convey("Given an empty summary", t, func() {
		var s types.Summary

		Convey("When rows of each status are added", func() {
			s.Add(model.StatusOK)
			s.Add(model.StatusOK)
			s.Add(model.StatusUnknown)
			s.Add(model.StatusIgnored)

			Convey("Then counts follow", func() {
				So(s.Total, ShouldEqual, 4)
				So(s.OK, ShouldEqual, 2)
				So(s.Unknown, ShouldEqual, 1)
				So(s.Ignored, ShouldEqual, 1)
			})
		})
	})
}

func TestRelayEvent(t *testing.T) {
	Convey("Given relay events on the wire", t, func() {
		Convey("When the payload is complete", func() {
			ev, err := types.RelayEvent{
				ID: "e1", Source: "Twitch", Raider: "Alice", Target: "Bob", Count: 0, Date: "2025-10-03T21:00:00Z",
			}.SourceEvent("")

			Convey("Then it converts with a normalized count", func() {
				So(err, ShouldBeNil)
				So(ev.Source, ShouldEqual, model.SourceTwitch)
				So(ev.Count, ShouldEqual, 1)
				So(ev.Date, ShouldEqual, time.Date(2025, 10, 3, 21, 0, 0, 0, time.UTC))
			})
		})

		Convey("When the source is implied by the topic and the date is date-only", func() {
			ev, err := types.RelayEvent{ID: "e2", Raider: "a", Target: "b", Count: 5, Date: "2025-10-04"}.SourceEvent(model.SourceDiscord)

			So(err, ShouldBeNil)
			So(ev.Source, ShouldEqual, model.SourceDiscord)
			So(ev.Count, ShouldEqual, 5)
			So(model.MonthOf(ev.Date), ShouldEqual, "2025-10")
		})

		Convey("When the payload is invalid", func() {
			bad := []types.RelayEvent{
				{Source: "twitch", Raider: "a", Target: "b", Date: "2025-10-04"},
				{ID: "x", Source: "youtube", Raider: "a", Target: "b", Date: "2025-10-04"},
				{ID: "x", Raider: "a", Target: "b", Date: "2025-10-04"},
				{ID: "x", Source: "twitch", Raider: " ", Target: "b", Date: "2025-10-04"},
				{ID: "x", Source: "twitch", Raider: "a", Target: "b", Date: "04/10/2025"},
			}

			Convey("Then every one is rejected as an invalid event", func() {
				for _, e := range bad {
					_, err := e.SourceEvent("")
					So(errors.Is(err, types.ErrInvalidEvent), ShouldBeTrue)
				}
			})
		})
	})
}
