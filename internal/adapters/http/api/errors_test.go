package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/okian/spms/internal/adapters/http/auth"
	"github.com/okian/spms/internal/domain/winners"
	. "github.com/smartystreets/goconvey/convey"
)

func TestError(t *testing.T) {
	Convey("Given API errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kind and cause are both matchable", func() {
			err := WrapKind("api.op", ErrBadRequest, cause)
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then Wrap and NewKind format without the missing part", func() {
			So(Wrap("api.op", cause).Error(), ShouldEqual, "api.op: boom")
			So(NewKind("api.op", ErrBackpressure).Error(), ShouldEqual, "api.op: backpressure")
		})
	})
}

func TestStatusFor(t *testing.T) {
	Convey("Given wrapped domain errors", t, func() {
		cases := []struct {
			err    error
			status int
		}{
			{WrapKind("op", ErrBadRequest, errors.New("x")), http.StatusBadRequest},
			{auth.ErrMissingToken, http.StatusUnauthorized},
			{fmt.Errorf("%w: expired", auth.ErrInvalidToken), http.StatusUnauthorized},
			{auth.ErrForbidden, http.StatusForbidden},
			{Wrap("op", fmt.Errorf("%w: 1", winners.ErrQuarterNotFound)), http.StatusNotFound},
			{winners.ErrWinnerNotFound, http.StatusNotFound},
			{winners.ErrNoWinnersAvailable, http.StatusConflict},
			{winners.ErrPrizeNotFound, http.StatusConflict},
			{errors.New("other"), http.StatusInternalServerError},
		}

		Convey("Then each maps to its status", func() {
			for _, c := range cases {
				status, _ := statusFor(c.err)
				So(status, ShouldEqual, c.status)
			}
		})
	})
}

func TestParams(t *testing.T) {
	Convey("Given query and path parameters", t, func() {
		q := url.Values{"quarter_range_id": {"4"}, "limit": {"bad"}, "grade": {"13"}}

		Convey("Then ids, integers and grades are validated", func() {
			id, err := requireInt64(q, "quarter_range_id")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 4)

			_, err = requireInt64(q, "student_id")
			So(err, ShouldNotBeNil)

			_, err = queryInt(q, "limit", 0)
			So(err, ShouldNotBeNil)

			def, err := queryInt(q, "offset", 7)
			So(err, ShouldBeNil)
			So(def, ShouldEqual, 7)

			_, err = queryGrade(q)
			So(err, ShouldNotBeNil)
		})

		Convey("Then path ids must be a single positive segment", func() {
			id, err := pathID("/student-winners/12", winnersPrefix)
			So(err, ShouldBeNil)
			So(id, ShouldEqual, 12)

			for _, p := range []string{"/student-winners/", "/student-winners/0", "/student-winners/1/2"} {
				_, err := pathID(p, winnersPrefix)
				So(err, ShouldNotBeNil)
			}
		})

		Convey("Then request bodies validate their ids", func() {
			So(quarterRequest{QuarterID: 1}.validate(), ShouldBeNil)
			So(quarterRequest{}.validate(), ShouldNotBeNil)
			So(prizeRequest{PrizeID: -2}.validate(), ShouldNotBeNil)
		})
	})
}
