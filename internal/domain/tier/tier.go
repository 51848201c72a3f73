// Package tier maps point totals to community tier roles.
package tier

import (
	"fmt"
	"slices"
	"sort"

	"github.com/okian/vnclub/internal/domain/model"
)

// Rule grants RoleID to members whose total reaches Threshold.
// An empty RoleID is the "none" tier: members in it hold no tier role.
type Rule struct {
	Threshold int    `json:"threshold" koanf:"threshold"`
	RoleID    string `json:"role" koanf:"role"`
}

// None reports whether the rule is the explicit no-role tier.
func (r Rule) None() bool { return r.RoleID == "" }

// Rules is the ordered tier ladder of one community.
type Rules []Rule

// NewRules validates rules and returns them sorted by ascending threshold.
func NewRules(rules []Rule) (Rules, error) {
	out := make(Rules, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Threshold < out[j].Threshold })

	for i, r := range out {
		if r.Threshold < 0 {
			return nil, fmt.Errorf("%w: tier threshold %d is negative", model.ErrValidation, r.Threshold)
		}
		if i > 0 && out[i-1].Threshold == r.Threshold {
			return nil, fmt.Errorf("%w: duplicate tier threshold %d", model.ErrValidation, r.Threshold)
		}
	}
	return out, nil
}

// Select returns the highest rule whose threshold is at most total.
// ok is false when total is below every threshold.
func (rs Rules) Select(total int) (Rule, bool) {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i].Threshold <= total {
			return rs[i], true
		}
	}
	return Rule{}, false
}

// Roles returns every non-empty role ID managed by the ladder.
func (rs Rules) Roles() []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		if !r.None() && !slices.Contains(out, r.RoleID) {
			out = append(out, r.RoleID)
		}
	}
	return out
}

// Plan is the set of role changes that brings a member to a target tier.
type Plan struct {
	Grant  string
	Revoke []string
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool { return p.Grant == "" && len(p.Revoke) == 0 }

// Diff computes the plan for a member holding memberRoles whose total is
// total. Only roles managed by the ladder are considered; other roles the
// member holds are left alone. A total below every threshold is treated like
// the "none" tier.
func (rs Rules) Diff(total int, memberRoles []string) Plan {
	target := ""
	if r, ok := rs.Select(total); ok {
		target = r.RoleID
	}

	var plan Plan
	held := false
	for _, role := range rs.Roles() {
		if !slices.Contains(memberRoles, role) {
			continue
		}
		if role == target {
			held = true
			continue
		}
		plan.Revoke = append(plan.Revoke, role)
	}
	if target != "" && !held {
		plan.Grant = target
	}
	return plan
}
