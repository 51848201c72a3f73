package model_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	model "github.com/okian/vnclub/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestPeriod(t *testing.T) {
	convey.Convey("Given period strings", t, func() {
		convey.Convey("When parsing well-formed periods", func() {
			p, err := model.ParsePeriod("2025-02")

			convey.Convey("Then they should be accepted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p, convey.ShouldEqual, model.Period("2025-02"))
				convey.So(p.Valid(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When parsing malformed periods", func() {
			for _, s := range []string{"", "2025-2", "2025-13", "25-01", "2025/01", "2025-01-01", "abcd-ef"} {
				_, err := model.ParsePeriod(s)
				convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When checking windows", func() {
			convey.So(model.Period("2025-02").Within("2025-01", "2025-03"), convey.ShouldBeTrue)
			convey.So(model.Period("2025-01").Within("2025-01", "2025-03"), convey.ShouldBeTrue)
			convey.So(model.Period("2025-03").Within("2025-01", "2025-03"), convey.ShouldBeTrue)
			convey.So(model.Period("2025-04").Within("2025-01", "2025-03"), convey.ShouldBeFalse)
			convey.So(model.Period("2024-12").Within("2025-01", "2025-03"), convey.ShouldBeFalse)
		})

		convey.Convey("When stepping across a year boundary", func() {
			convey.So(model.Period("2024-12").Next(), convey.ShouldEqual, model.Period("2025-01"))
			convey.So(model.Period("2025-01").Prev(), convey.ShouldEqual, model.Period("2024-12"))
		})

		convey.Convey("When deriving a period from a time", func() {
			ts := time.Date(2025, time.March, 31, 23, 30, 0, 0, time.FixedZone("JST", 9*3600))
			convey.So(model.PeriodOf(ts), convey.ShouldEqual, model.Period("2025-03"))
		})
	})
}

func TestTitleEntryValidate(t *testing.T) {
	convey.Convey("Given catalog entries", t, func() {
		valid := model.TitleEntry{ID: "v17", StartPeriod: "2025-01", EndPeriod: "2025-03", Points: 10}

		convey.Convey("Then a well-formed entry validates", func() {
			convey.So(valid.Validate(), convey.ShouldBeNil)
			convey.So(valid.Active("2025-02"), convey.ShouldBeTrue)
			convey.So(valid.Active("2025-04"), convey.ShouldBeFalse)
		})

		convey.Convey("Then a reversed window is rejected", func() {
			e := valid
			e.StartPeriod, e.EndPeriod = "2025-04", "2025-03"
			convey.So(errors.Is(e.Validate(), model.ErrValidation), convey.ShouldBeTrue)
		})

		convey.Convey("Then non-positive points are rejected", func() {
			e := valid
			e.Points = 0
			convey.So(errors.Is(e.Validate(), model.ErrValidation), convey.ShouldBeTrue)
		})

		convey.Convey("Then a missing id is rejected", func() {
			e := valid
			e.ID = " "
			convey.So(errors.Is(e.Validate(), model.ErrValidation), convey.ShouldBeTrue)
		})
	})
}

func TestCompletionValidation(t *testing.T) {
	convey.Convey("Given ratings and comments", t, func() {
		convey.So(model.ValidateRating(nil), convey.ShouldBeNil)
		convey.So(model.ValidateRating(model.IntPtr(1)), convey.ShouldBeNil)
		convey.So(model.ValidateRating(model.IntPtr(5)), convey.ShouldBeNil)
		convey.So(errors.Is(model.ValidateRating(model.IntPtr(0)), model.ErrValidation), convey.ShouldBeTrue)
		convey.So(errors.Is(model.ValidateRating(model.IntPtr(6)), model.ErrValidation), convey.ShouldBeTrue)

		convey.So(model.ValidateComment(strings.Repeat("あ", model.MaxCommentLength)), convey.ShouldBeNil)
		convey.So(errors.Is(model.ValidateComment(strings.Repeat("a", model.MaxCommentLength+1)), model.ErrValidation), convey.ShouldBeTrue)
	})

	convey.Convey("Given title ids", t, func() {
		convey.So(model.NormalizeTitleID("17"), convey.ShouldEqual, "v17")
		convey.So(model.NormalizeTitleID("v17"), convey.ShouldEqual, "v17")
		convey.So(model.NormalizeTitleID(" 42 "), convey.ShouldEqual, "v42")
		convey.So(model.NormalizeTitleID("V17"), convey.ShouldEqual, "v17")

		id, err := model.ParseTitleID("V17")
		convey.So(err, convey.ShouldBeNil)
		convey.So(id, convey.ShouldEqual, "v17")

		for _, bad := range []string{"", " ", "v", "abc", "v17a", "vv17", "17v"} {
			_, err := model.ParseTitleID(bad)
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
		}
	})

	convey.Convey("Given metadata display names", t, func() {
		convey.So(model.MetadataEntry{ID: "v1", TitleEN: "Ever17", TitleJA: "エバーセブンティーン"}.DisplayName(), convey.ShouldEqual, "エバーセブンティーン")
		convey.So(model.MetadataEntry{ID: "v1", TitleEN: "Ever17"}.DisplayName(), convey.ShouldEqual, "Ever17")
		convey.So(model.MetadataEntry{ID: "v1"}.DisplayName(), convey.ShouldEqual, "v1")
	})

	convey.Convey("Given ledger filters", t, func() {
		community := "g1"
		e := model.CompletionEvent{Period: "2024-03", CommunityID: &community}

		convey.So(model.Filter{}.Match(e), convey.ShouldBeTrue)
		convey.So(model.Filter{Period: "2024-03"}.Match(e), convey.ShouldBeTrue)
		convey.So(model.Filter{Period: "2024-04"}.Match(e), convey.ShouldBeFalse)
		convey.So(model.Filter{CommunityID: "g1"}.Match(e), convey.ShouldBeTrue)
		convey.So(model.Filter{CommunityID: "g2"}.Match(e), convey.ShouldBeFalse)
		convey.So(model.Filter{CommunityID: "g1"}.Match(model.CompletionEvent{}), convey.ShouldBeFalse)
	})
}
