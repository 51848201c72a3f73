package tier_test

import (
	"errors"
	"testing"

	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/internal/domain/tier"
	. "github.com/smartystreets/goconvey/convey"
)

func ladder() tier.Rules {
	rs, err := tier.NewRules([]tier.Rule{
		{Threshold: 100, RoleID: "dekiru"},
		{Threshold: 1, RoleID: "bronze"},
		{Threshold: 50, RoleID: "jouzu"},
	})
	So(err, ShouldBeNil)
	return rs
}

func TestNewRules(t *testing.T) {
	Convey("NewRules sorts by threshold", t, func() {
		rs := ladder()
		So(rs[0].RoleID, ShouldEqual, "bronze")
		So(rs[2].RoleID, ShouldEqual, "dekiru")
		So(rs.Roles(), ShouldResemble, []string{"bronze", "jouzu", "dekiru"})
	})

	Convey("NewRules rejects negative and duplicate thresholds", t, func() {
		_, err := tier.NewRules([]tier.Rule{{Threshold: -1, RoleID: "x"}})
		So(errors.Is(err, model.ErrValidation), ShouldBeTrue)

		_, err = tier.NewRules([]tier.Rule{{Threshold: 5, RoleID: "x"}, {Threshold: 5, RoleID: "y"}})
		So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
	})
}

func TestSelect(t *testing.T) {
	Convey("Given the bronze/jouzu/dekiru ladder", t, func() {
		rs := ladder()

		Convey("A total below every threshold selects nothing", func() {
			_, ok := rs.Select(0)
			So(ok, ShouldBeFalse)
		})

		Convey("Thresholds are inclusive", func() {
			r, ok := rs.Select(50)
			So(ok, ShouldBeTrue)
			So(r.RoleID, ShouldEqual, "jouzu")

			r, _ = rs.Select(49)
			So(r.RoleID, ShouldEqual, "bronze")

			r, _ = rs.Select(1000)
			So(r.RoleID, ShouldEqual, "dekiru")
		})
	})
}

func TestDiff(t *testing.T) {
	Convey("Given the bronze/jouzu/dekiru ladder", t, func() {
		rs := ladder()

		Convey("A member at 60 holding bronze moves to jouzu", func() {
			plan := rs.Diff(60, []string{"bronze", "unrelated"})
			So(plan.Grant, ShouldEqual, "jouzu")
			So(plan.Revoke, ShouldResemble, []string{"bronze"})
		})

		Convey("A member already holding exactly the target is a no-op", func() {
			plan := rs.Diff(60, []string{"jouzu"})
			So(plan.Empty(), ShouldBeTrue)
		})

		Convey("A member holding several tiers keeps only the target", func() {
			plan := rs.Diff(120, []string{"bronze", "jouzu", "dekiru"})
			So(plan.Grant, ShouldEqual, "")
			So(plan.Revoke, ShouldResemble, []string{"bronze", "jouzu"})
		})

		Convey("A member below every threshold loses all tier roles", func() {
			plan := rs.Diff(0, []string{"bronze"})
			So(plan.Grant, ShouldEqual, "")
			So(plan.Revoke, ShouldResemble, []string{"bronze"})
		})
	})

	Convey("Given a ladder with an explicit none tier", t, func() {
		rs, err := tier.NewRules([]tier.Rule{
			{Threshold: 0, RoleID: ""},
			{Threshold: 10, RoleID: "reader"},
		})
		So(err, ShouldBeNil)

		Convey("Selecting none revokes the held tier role", func() {
			plan := rs.Diff(5, []string{"reader"})
			So(plan.Grant, ShouldEqual, "")
			So(plan.Revoke, ShouldResemble, []string{"reader"})
		})

		Convey("Selecting none with no tier role held is a no-op", func() {
			So(rs.Diff(5, nil).Empty(), ShouldBeTrue)
		})
	})
}
