package ignore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/raidstats/internal/domain/ignore"
	"github.com/okian/raidstats/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	recs    []model.IgnoredRaidKey
	loadErr error
	addErr  error
}

func (f *fakeStore) LoadIgnored(_ context.Context, month string) ([]model.IgnoredRaidKey, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	var out []model.IgnoredRaidKey
	for _, r := range f.recs {
		if r.Month == month {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) AddIgnored(_ context.Context, rec model.IgnoredRaidKey) (bool, error) {
	if f.addErr != nil {
		return false, f.addErr
	}
	for _, r := range f.recs {
		if r.Month == rec.Month && r.RaiderKey == rec.RaiderKey && r.TargetKey == rec.TargetKey {
			return false, nil
		}
	}
	f.recs = append(f.recs, rec)
	return true, nil
}

func TestSet(t *testing.T) {
	Convey("Given a set loaded for January", t, func() {
		s := ignore.NewSet("2025-01", []model.IgnoredRaidKey{
			{Month: "2025-01", RaiderKey: "a", TargetKey: "b"},
			{Month: "2025-02", RaiderKey: "c", TargetKey: "d"},
		})

		Convey("Then only January pairs are ignored, in January only", func() {
			So(s.Len(), ShouldEqual, 1)
			So(s.IsIgnored("2025-01", "a", "b"), ShouldBeTrue)
			So(s.IsIgnored("2025-01", "b", "a"), ShouldBeFalse)
			So(s.IsIgnored("2025-02", "a", "b"), ShouldBeFalse)
			So(s.IsIgnored("2025-01", "c", "d"), ShouldBeFalse)
		})

		Convey("When adding twice", func() {
			So(s.Add("x", "y"), ShouldBeTrue)
			So(s.Add("x", "y"), ShouldBeFalse)
			So(s.Len(), ShouldEqual, 2)
		})

		Convey("When the set is nil", func() {
			var empty *ignore.Set
			So(empty.IsIgnored("2025-01", "a", "b"), ShouldBeFalse)
		})
	})
}

func TestManager(t *testing.T) {
	Convey("Given a manager over a store", t, func() {
		ctx := context.Background()
		store := &fakeStore{}
		fixed := time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC)
		m := ignore.NewManager(store,
			ignore.WithClock(func() time.Time { return fixed }),
			ignore.WithIDGenerator(func() string { return "id-1" }),
		)

		Convey("When ignoring a pair", func() {
			added, err := m.Ignore(ctx, "2025-01", "a", "b", "@A raid @B")
			So(err, ShouldBeNil)
			So(added, ShouldBeTrue)

			Convey("Then the record carries audit data", func() {
				So(len(store.recs), ShouldEqual, 1)
				So(store.recs[0].ID, ShouldEqual, "id-1")
				So(store.recs[0].RawText, ShouldEqual, "@A raid @B")
				So(store.recs[0].CreatedAt.Equal(fixed), ShouldBeTrue)
			})

			Convey("And ignoring again is a no-op", func() {
				added, err := m.Ignore(ctx, "2025-01", "a", "b", "again")
				So(err, ShouldBeNil)
				So(added, ShouldBeFalse)
				So(len(store.recs), ShouldEqual, 1)
			})

			Convey("And a fresh load sees it", func() {
				set, err := m.Load(ctx, "2025-01")
				So(err, ShouldBeNil)
				So(set.IsIgnored("2025-01", "a", "b"), ShouldBeTrue)
				So(set.Month(), ShouldEqual, "2025-01")
			})
		})

		Convey("When the input is invalid", func() {
			_, err := m.Ignore(ctx, "2025-01", "", "b", "")
			So(errors.Is(err, ignore.ErrEmptyKey), ShouldBeTrue)
			_, err = m.Ignore(ctx, "jan", "a", "b", "")
			So(errors.Is(err, model.ErrInvalidMonth), ShouldBeTrue)
			_, err = m.Load(ctx, "jan")
			So(errors.Is(err, model.ErrInvalidMonth), ShouldBeTrue)
		})

		Convey("When the store fails", func() {
			boom := errors.New("store down")
			store.loadErr = boom
			store.addErr = boom
			_, err := m.Load(ctx, "2025-01")
			So(errors.Is(err, boom), ShouldBeTrue)
			_, err = m.Ignore(ctx, "2025-01", "a", "b", "")
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})
}
