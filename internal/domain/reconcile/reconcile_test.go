package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/vnclub/internal/adapters/membership"
	"github.com/okian/vnclub/internal/adapters/repository"
	"github.com/okian/vnclub/internal/domain/ledger"
	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/internal/domain/ranking"
	"github.com/okian/vnclub/internal/domain/reconcile"
	"github.com/okian/vnclub/internal/domain/tier"
	. "github.com/smartystreets/goconvey/convey"
)

// flaky fails every call for one member.
type flaky struct {
	*membership.Memory
	broken string
}

func (f *flaky) Roles(ctx context.Context, communityID, memberID string) ([]string, error) {
	if memberID == f.broken {
		return nil, errors.New("gateway timeout")
	}
	return f.Memory.Roles(ctx, communityID, memberID)
}

func ladder() tier.Rules {
	rs, err := tier.NewRules([]tier.Rule{
		{Threshold: 0, RoleID: ""},
		{Threshold: 1, RoleID: "bronze"},
		{Threshold: 50, RoleID: "jouzu"},
		{Threshold: 100, RoleID: "dekiru"},
	})
	So(err, ShouldBeNil)
	return rs
}

func grant(l *ledger.Ledger, user, community string, points int) {
	_, err := l.Record(context.Background(), ledger.RecordInput{
		UserID:      user,
		Reason:      model.ReasonManual,
		Period:      "2024-03",
		Points:      points,
		CommunityID: community,
	})
	So(err, ShouldBeNil)
}

func TestRunOnce(t *testing.T) {
	Convey("Given a member with 49 points in g1", t, func() {
		ctx := context.Background()
		l := ledger.New(repository.NewMemoryStore())
		members := membership.NewMemory()
		members.Join("g1", "alice", "unrelated")
		grant(l, "alice", "g1", 49)

		r := reconcile.New(ranking.New(l), members, map[string]tier.Rules{"g1": ladder()})

		Convey("When the first tick runs", func() {
			report, err := r.RunOnce(ctx)
			So(err, ShouldBeNil)

			Convey("Then bronze is granted", func() {
				So(report.Granted, ShouldEqual, 1)
				So(report.Revoked, ShouldEqual, 0)
				So(report.ID, ShouldNotBeEmpty)
				roles, _ := members.Roles(ctx, "g1", "alice")
				So(roles, ShouldResemble, []string{"unrelated", "bronze"})
			})

			Convey("Then reaching 50 swaps bronze for jouzu on the next tick", func() {
				grant(l, "alice", "g1", 1)
				report, err := r.RunOnce(ctx)
				So(err, ShouldBeNil)
				So(report.Granted, ShouldEqual, 1)
				So(report.Revoked, ShouldEqual, 1)
				roles, _ := members.Roles(ctx, "g1", "alice")
				So(roles, ShouldResemble, []string{"unrelated", "jouzu"})

				Convey("And a further tick changes nothing", func() {
					report, err := r.RunOnce(ctx)
					So(err, ShouldBeNil)
					So(report.Granted, ShouldEqual, 0)
					So(report.Revoked, ShouldEqual, 0)
					So(report.Members, ShouldEqual, 1)
				})
			})

			Convey("Then falling back to zero selects none and revokes bronze", func() {
				grant(l, "alice", "g1", -49)
				report, err := r.RunOnce(ctx)
				So(err, ShouldBeNil)
				So(report.Revoked, ShouldEqual, 1)
				So(report.Granted, ShouldEqual, 0)
				roles, _ := members.Roles(ctx, "g1", "alice")
				So(roles, ShouldResemble, []string{"unrelated"})
			})
		})
	})

	Convey("Given totals split across communities", t, func() {
		ctx := context.Background()
		l := ledger.New(repository.NewMemoryStore())
		members := membership.NewMemory()
		members.Join("g1", "bob")
		members.Join("g2", "bob")
		grant(l, "bob", "g1", 120)
		grant(l, "bob", "g2", 30)

		r := reconcile.New(ranking.New(l), members, map[string]tier.Rules{"g1": ladder(), "g2": ladder()})
		_, err := r.RunOnce(ctx)
		So(err, ShouldBeNil)

		Convey("Then each community uses its own total", func() {
			g1, _ := members.Roles(ctx, "g1", "bob")
			g2, _ := members.Roles(ctx, "g2", "bob")
			So(g1, ShouldResemble, []string{"dekiru"})
			So(g2, ShouldResemble, []string{"bronze"})
		})
	})

	Convey("Given a member who is not in the community", t, func() {
		ctx := context.Background()
		l := ledger.New(repository.NewMemoryStore())
		grant(l, "ghost", "g1", 10)

		r := reconcile.New(ranking.New(l), membership.NewMemory(), map[string]tier.Rules{"g1": ladder()})
		report, err := r.RunOnce(ctx)

		Convey("Then the member is skipped", func() {
			So(err, ShouldBeNil)
			So(report.Skipped, ShouldEqual, 1)
			So(report.Failed, ShouldEqual, 0)
		})
	})

	Convey("Given a collaborator that fails for one member", t, func() {
		ctx := context.Background()
		l := ledger.New(repository.NewMemoryStore())
		mem := membership.NewMemory()
		for _, u := range []string{"a", "b", "c"} {
			mem.Join("g1", u)
			grant(l, u, "g1", 60)
		}
		members := &flaky{Memory: mem, broken: "b"}

		r := reconcile.New(ranking.New(l), members, map[string]tier.Rules{"g1": ladder()})
		report, err := r.RunOnce(ctx)

		Convey("Then the rest of the batch still runs", func() {
			So(err, ShouldBeNil)
			So(report.Failed, ShouldEqual, 1)
			So(report.Granted, ShouldEqual, 2)
			a, _ := mem.Roles(ctx, "g1", "a")
			c, _ := mem.Roles(ctx, "g1", "c")
			So(a, ShouldResemble, []string{"jouzu"})
			So(c, ShouldResemble, []string{"jouzu"})
		})
	})

	Convey("Given a dry-run reconciler and a member due for promotion", t, func() {
		ctx := context.Background()
		l := ledger.New(repository.NewMemoryStore())
		members := membership.NewMemory()
		members.Join("g1", "alice", "bronze")
		grant(l, "alice", "g1", 60)

		r := reconcile.New(ranking.New(l), members, map[string]tier.Rules{"g1": ladder()}, reconcile.WithDryRun(true))
		report, err := r.RunOnce(ctx)

		Convey("Then the planned changes are counted but not applied", func() {
			So(err, ShouldBeNil)
			So(report.DryRun, ShouldBeTrue)
			So(report.Started.IsZero(), ShouldBeFalse)
			So(report.Members, ShouldEqual, 1)
			So(report.Granted, ShouldEqual, 1)
			So(report.Revoked, ShouldEqual, 1)

			roles, _ := members.Roles(ctx, "g1", "alice")
			So(roles, ShouldResemble, []string{"bronze"})
		})

		Convey("Then a live run on the same reconciler applies them", func() {
			report, err := r.Run(ctx, false)
			So(err, ShouldBeNil)
			So(report.DryRun, ShouldBeFalse)
			So(report.Granted, ShouldEqual, 1)
			So(report.Revoked, ShouldEqual, 1)

			roles, _ := members.Roles(ctx, "g1", "alice")
			So(roles, ShouldResemble, []string{"jouzu"})
		})
	})
}
