package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/raidstats/pkg/metrics"
)

func TestErrorKind(t *testing.T) {
	Convey("Given error statuses", t, func() {
		for status, want := range map[int]string{
			http.StatusBadRequest:          "bad_request",
			http.StatusNotFound:            "not_found",
			http.StatusMethodNotAllowed:    "method_not_allowed",
			http.StatusTooManyRequests:     "backpressure",
			http.StatusServiceUnavailable:  "unavailable",
			http.StatusInternalServerError: "internal_error",
			http.StatusConflict:            "client_error",
		} {
			So(errorKind(status), ShouldEqual, want)
		}
		So(severity(http.StatusTooManyRequests), ShouldEqual, "low")
		So(severity(http.StatusBadRequest), ShouldEqual, "medium")
		So(severity(http.StatusServiceUnavailable), ShouldEqual, "high")
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a wrapped handler that rejects requests", t, func() {
		h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.WriteHeader(http.StatusOK)
		}, "middleware_test")

		before, err := testutil.GatherAndCount(metrics.GetRegistry())
		So(err, ShouldBeNil)
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/x", nil))

		Convey("Then the first status is kept and new series are registered", func() {
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			after, err := testutil.GatherAndCount(metrics.GetRegistry())
			So(err, ShouldBeNil)
			So(after, ShouldBeGreaterThan, before)
		})
	})
}
