package service

import (
	"fmt"
	"time"

	"github.com/99minutos/seedboard/internal/core/domain"
)

// RoleStyle is the name colour and suffix shown for every member of a role.
type RoleStyle struct {
	Color  string `yaml:"color"  json:"color"`
	Suffix string `yaml:"suffix" json:"suffix"`
}

// Policy is the data-driven permission table: which role each command needs,
// how far above a role an actor must rank to grant or revoke it, how roles
// render, and which tiers the posting restrictions hold back.
type Policy struct {
	// Commands maps a command token (without the slash) to its minimum role.
	Commands map[string]domain.Role `yaml:"commands"`
	// GrantMargins is the rank gap an actor needs over a role to grant or
	// revoke it. Roles absent from the table use a margin of 1.
	GrantMargins map[domain.Role]int `yaml:"grant_margins"`
	// RoleStyles decorates posts by the author's role.
	RoleStyles map[domain.Role]RoleStyle `yaml:"role_styles"`

	PreventBelow  domain.Role `yaml:"prevent_below"`
	RestrictBelow domain.Role `yaml:"restrict_below"`
	TimedBelow    domain.Role `yaml:"timed_below"`

	StopDuration       time.Duration `yaml:"stop_duration"`
	MaxProhibitMinutes int           `yaml:"max_prohibit_minutes"`
	MaxPostsLimit      int           `yaml:"max_posts_limit"`
	SuffixColor        string        `yaml:"suffix_color"`
	MaxSuffixLength    int           `yaml:"max_suffix_length"`
	MaxTopicLength     int           `yaml:"max_topic_length"`
}

// DefaultPolicy returns the reference permission table.
func DefaultPolicy() Policy {
	return Policy{
		Commands: map[string]domain.Role{
			"del":      domain.RoleManager,
			"clear":    domain.RoleModerator,
			"destroy":  domain.RoleManager,
			"topic":    domain.RoleManager,
			"add":      domain.RoleSpeaker,
			"color":    domain.RoleSpeaker,
			"ng":       domain.RoleModerator,
			"ok":       domain.RoleModerator,
			"prevent":  domain.RoleManager,
			"permit":   domain.RoleManager,
			"restrict": domain.RoleManager,
			"stop":     domain.RoleModerator,
			"prohibit": domain.RoleModerator,
			"release":  domain.RoleManager,
			"max":      domain.RoleManager,
			"disself":  domain.RoleDefault,
		},
		GrantMargins: map[domain.Role]int{
			domain.RoleSpeaker:   1,
			domain.RoleManager:   2,
			domain.RoleModerator: 1,
			domain.RoleSummit:    1,
		},
		RoleStyles: map[domain.Role]RoleStyle{
			domain.RoleBlueID:    {Color: "#1e5aff"},
			domain.RoleSpeaker:   {Color: "#2e9e44", Suffix: "(speaker)"},
			domain.RoleManager:   {Color: "#d97706", Suffix: "(manager)"},
			domain.RoleModerator: {Color: "#dc2626", Suffix: "(moderator)"},
			domain.RoleSummit:    {Color: "#7c3aed", Suffix: "(summit)"},
			domain.RoleOperator:  {Color: "#000000", Suffix: "(operator)"},
		},
		PreventBelow:       domain.RoleManager,
		RestrictBelow:      domain.RoleSpeaker,
		TimedBelow:         domain.RoleSpeaker,
		StopDuration:       3 * time.Minute,
		MaxProhibitMinutes: 24 * 60,
		MaxPostsLimit:      10000,
		SuffixColor:        "#ff8c00",
		MaxSuffixLength:    32,
		MaxTopicLength:     200,
	}
}

// RequiredToManage returns the minimum actor role allowed to grant or revoke
// target. Operator is never grantable; the result saturates at operator.
func (p Policy) RequiredToManage(target domain.Role) domain.Role {
	margin, ok := p.GrantMargins[target]
	if !ok || margin < 1 {
		margin = 1
	}
	rank := target.Rank() + margin
	if rank > domain.RoleOperator.Rank() {
		rank = domain.RoleOperator.Rank()
	}
	return domain.Role(rank)
}

// Style returns the role style for r.
func (p Policy) Style(r domain.Role) RoleStyle {
	return p.RoleStyles[r]
}

// CheckPlainPost decides whether a plain post from role is allowed under the
// current restrictions. Commands are never gated here.
func (p Policy) CheckPlainPost(role domain.Role, r domain.Restrictions, now time.Time) error {
	if r.Prevent && !domain.HasPermission(role, p.PreventBelow) {
		return fmt.Errorf("%w: posting is limited to %s and above", domain.ErrContentRejected, p.PreventBelow)
	}
	if r.Restrict && !domain.HasPermission(role, p.RestrictBelow) {
		return fmt.Errorf("%w: posting is limited to %s and above", domain.ErrContentRejected, p.RestrictBelow)
	}
	if r.TimedBlockActive(now) && !domain.HasPermission(role, p.TimedBelow) {
		left := r.BlockedUntil.Sub(now).Round(time.Second)
		return fmt.Errorf("%w: posting is paused for another %s", domain.ErrContentRejected, left)
	}
	return nil
}
