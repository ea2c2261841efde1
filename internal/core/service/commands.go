package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/99minutos/seedboard/internal/core/domain"
)

// invocation carries one parsed command through permission check and effect.
type invocation struct {
	ctx   context.Context
	actor domain.Identity
	role  domain.Role
	arg   string
	now   time.Time
}

type commandHandler func(s *BoardService, inv *invocation) (reply string, events []domain.Event, err error)

// Command is one entry of the dispatch table.
type Command struct {
	Name    string
	MinRole domain.Role
	handler commandHandler
}

// CommandRegistry maps a case-folded command token to its required role and handler.
type CommandRegistry struct {
	commands map[string]Command
}

// NewCommandRegistry builds the dispatch table from policy. Grant and demote
// commands are generated for every mutable role.
func NewCommandRegistry(policy Policy) *CommandRegistry {
	handlers := map[string]commandHandler{
		"del":      (*BoardService).cmdDelete,
		"clear":    (*BoardService).cmdClear,
		"destroy":  (*BoardService).cmdDestroy,
		"topic":    (*BoardService).cmdTopic,
		"add":      (*BoardService).cmdAddSuffix,
		"color":    (*BoardService).cmdColor,
		"ng":       (*BoardService).cmdNGAdd,
		"ok":       (*BoardService).cmdNGRemove,
		"prevent":  restrictionCommand(func(r *domain.Restrictions, _ Policy, _ time.Time, _ int) { r.Prevent = true }),
		"permit":   restrictionCommand(func(r *domain.Restrictions, _ Policy, _ time.Time, _ int) { r.Prevent = false }),
		"restrict": restrictionCommand(func(r *domain.Restrictions, _ Policy, _ time.Time, _ int) { r.Restrict = true }),
		"release":  restrictionCommand(func(r *domain.Restrictions, _ Policy, _ time.Time, _ int) { *r = domain.Restrictions{} }),
		"stop":     restrictionCommand(func(r *domain.Restrictions, p Policy, now time.Time, _ int) { r.BlockedUntil = now.Add(p.StopDuration).UTC() }),
		"prohibit": (*BoardService).cmdProhibit,
		"max":      (*BoardService).cmdMax,
		"disself":  (*BoardService).cmdDisself,
	}

	reg := &CommandRegistry{commands: make(map[string]Command)}
	for name, h := range handlers {
		minRole, ok := policy.Commands[name]
		if !ok {
			minRole = domain.RoleOperator
		}
		reg.commands[name] = Command{Name: name, MinRole: minRole, handler: h}
	}
	for _, r := range domain.MutableRoles {
		required := policy.RequiredToManage(r)
		reg.commands[r.String()] = Command{Name: r.String(), MinRole: required, handler: grantCommand(r)}
		reg.commands["dis"+r.String()] = Command{Name: "dis" + r.String(), MinRole: required, handler: demoteCommand(r)}
	}
	return reg
}

// Lookup returns the command registered under name.
func (r *CommandRegistry) Lookup(name string) (Command, bool) {
	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// Dispatch parses message, enforces the command's minimum role and runs it.
// It returns the parsed command name even when it fails.
func (r *CommandRegistry) Dispatch(s *BoardService, inv *invocation, message string) (string, string, []domain.Event, error) {
	name, arg := ParseCommand(message)
	cmd, ok := r.commands[name]
	if !ok {
		return name, "", nil, fmt.Errorf("%w: /%s", domain.ErrUnknownCommand, name)
	}
	if !domain.HasPermission(inv.role, cmd.MinRole) {
		return name, "", nil, fmt.Errorf("%w: /%s requires %s", domain.ErrPermission, name, cmd.MinRole)
	}
	inv.arg = arg
	reply, events, err := cmd.handler(s, inv)
	return name, reply, events, err
}

// ParseCommand splits "/name rest of line" into a case-folded name and the
// trimmed raw remainder.
func ParseCommand(message string) (name, arg string) {
	body := strings.TrimPrefix(strings.TrimSpace(message), "/")
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		return strings.ToLower(body[:i]), strings.TrimSpace(body[i:])
	}
	return strings.ToLower(body), ""
}

// ---------------------------------------------------------------------------
// Post moderation
// ---------------------------------------------------------------------------

func (s *BoardService) cmdDelete(inv *invocation) (string, []domain.Event, error) {
	fields := strings.FieldsFunc(inv.arg, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: usage: /del <id> [id...]", domain.ErrValidation)
	}
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil || id < 1 {
			return "", nil, fmt.Errorf("%w: %q is not a post id", domain.ErrValidation, f)
		}
		ids = append(ids, id)
	}

	deleted, missing, err := s.board.Delete(inv.ctx, ids)
	if err != nil {
		return "", nil, err
	}
	if len(deleted) == 0 {
		return "", nil, fmt.Errorf("%w: post %s", domain.ErrNotFound, joinInts(missing))
	}

	reply := "deleted post " + joinInts(deleted)
	if len(missing) > 0 {
		reply += "; not found: " + joinInts(missing)
	}
	return reply, []domain.Event{
		domain.NewEvent(domain.EventPostDeleted, domain.PostDeletedData{IDs: deleted}),
	}, nil
}

func (s *BoardService) cmdClear(inv *invocation) (string, []domain.Event, error) {
	n, err := s.board.Clear(inv.ctx)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("cleared %d posts", n), []domain.Event{
		domain.NewEvent(domain.EventPostsCleared, nil),
	}, nil
}

func (s *BoardService) cmdDestroy(inv *invocation) (string, []domain.Event, error) {
	if inv.arg == "" {
		return "", nil, fmt.Errorf("%w: usage: /destroy <text>", domain.ErrValidation)
	}
	deleted, err := s.board.DeleteMatching(inv.ctx, inv.arg)
	if err != nil {
		return "", nil, err
	}
	if len(deleted) == 0 {
		return "", nil, fmt.Errorf("%w: no post contains %q", domain.ErrNotFound, inv.arg)
	}
	return fmt.Sprintf("destroyed %d posts", len(deleted)), []domain.Event{
		domain.NewEvent(domain.EventPostDeleted, domain.PostDeletedData{IDs: deleted}),
	}, nil
}

func (s *BoardService) cmdTopic(inv *invocation) (string, []domain.Event, error) {
	if inv.arg == "" {
		return "", nil, fmt.Errorf("%w: usage: /topic <text>", domain.ErrValidation)
	}
	if utf8.RuneCountInString(inv.arg) > s.policy.MaxTopicLength {
		return "", nil, fmt.Errorf("%w: topic is longer than %d characters", domain.ErrValidation, s.policy.MaxTopicLength)
	}
	if err := s.board.SetTopic(inv.ctx, inv.arg); err != nil {
		return "", nil, err
	}
	return "topic updated", []domain.Event{
		domain.NewEvent(domain.EventTopicUpdated, domain.TopicUpdatedData{Topic: inv.arg}),
	}, nil
}

func (s *BoardService) cmdMax(inv *invocation) (string, []domain.Event, error) {
	n, err := strconv.Atoi(inv.arg)
	if err != nil || n < 1 || n > s.policy.MaxPostsLimit {
		return "", nil, fmt.Errorf("%w: usage: /max <1-%d>", domain.ErrValidation, s.policy.MaxPostsLimit)
	}
	evicted, err := s.board.SetMax(inv.ctx, n)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("maximum set to %d, %d posts removed", n, len(evicted)), []domain.Event{
		domain.NewEvent(domain.EventRequestPostsUpdate, nil),
	}, nil
}

// ---------------------------------------------------------------------------
// Decorations
// ---------------------------------------------------------------------------

func (s *BoardService) cmdAddSuffix(inv *invocation) (string, []domain.Event, error) {
	if inv.arg == "" {
		return "", nil, fmt.Errorf("%w: usage: /add <text>", domain.ErrValidation)
	}
	if utf8.RuneCountInString(inv.arg) > s.policy.MaxSuffixLength {
		return "", nil, fmt.Errorf("%w: suffix is longer than %d characters", domain.ErrValidation, s.policy.MaxSuffixLength)
	}
	d, err := s.board.UpdateDecoration(inv.ctx, inv.actor, func(d *domain.Decoration) {
		d.Suffix = inv.arg
		d.SuffixColor = s.policy.SuffixColor
	})
	if err != nil {
		return "", nil, err
	}
	return "suffix updated", []domain.Event{
		domain.NewEvent(domain.EventUserSuffixUpdated, domain.UserSuffixUpdatedData{
			Identity: inv.actor,
			Text:     d.Suffix,
			Color:    d.SuffixColor,
		}),
	}, nil
}

func (s *BoardService) cmdColor(inv *invocation) (string, []domain.Event, error) {
	fields := strings.Fields(inv.arg)
	if len(fields) == 0 || len(fields) > 2 {
		return "", nil, fmt.Errorf("%w: usage: /color <#rrggbb> [id]", domain.ErrValidation)
	}
	color, ok := NormalizeColor(fields[0])
	if !ok {
		return "", nil, fmt.Errorf("%w: %q is not a colour code", domain.ErrValidation, fields[0])
	}

	target := inv.actor
	if len(fields) == 2 {
		target = domain.Identity(strings.ToLower(fields[1]))
		if !target.Valid() {
			return "", nil, fmt.Errorf("%w: %q is not an identity", domain.ErrValidation, fields[1])
		}
	}
	if target != inv.actor {
		if targetRole := s.roles.RoleOf(target); inv.role.Rank() <= targetRole.Rank() {
			return "", nil, fmt.Errorf("%w: you must outrank %s to recolour them", domain.ErrPermission, targetRole)
		}
	}

	if _, err := s.board.UpdateDecoration(inv.ctx, target, func(d *domain.Decoration) { d.NameColor = color }); err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("name colour of %s set to %s", target, color), []domain.Event{
		domain.NewEvent(domain.EventRequestPostsUpdate, nil),
	}, nil
}

// NormalizeColor accepts #rgb, #rrggbb and the same without '#', and returns
// the lower-case #rrggbb form.
func NormalizeColor(code string) (string, bool) {
	hex := strings.ToLower(strings.TrimPrefix(code, "#"))
	for _, c := range hex {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", false
		}
	}
	switch len(hex) {
	case 3:
		return "#" + string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]}), true
	case 6:
		return "#" + hex, true
	default:
		return "", false
	}
}

// ---------------------------------------------------------------------------
// NG words and restrictions
// ---------------------------------------------------------------------------

func (s *BoardService) cmdNGAdd(inv *invocation) (string, []domain.Event, error) {
	if inv.arg == "" {
		return "", nil, fmt.Errorf("%w: usage: /NG <word>", domain.ErrValidation)
	}
	n, err := s.board.AddNGWord(inv.ctx, inv.arg)
	if err != nil {
		return "", nil, err
	}
	return "NG word added", []domain.Event{
		domain.NewEvent(domain.EventNGWordsUpdated, domain.NGWordsUpdatedData{Count: n}),
	}, nil
}

func (s *BoardService) cmdNGRemove(inv *invocation) (string, []domain.Event, error) {
	if inv.arg == "" {
		return "", nil, fmt.Errorf("%w: usage: /OK <word>", domain.ErrValidation)
	}
	n, err := s.board.RemoveNGWord(inv.ctx, inv.arg)
	if err != nil {
		return "", nil, err
	}
	return "NG word removed", []domain.Event{
		domain.NewEvent(domain.EventNGWordsUpdated, domain.NGWordsUpdatedData{Count: n}),
	}, nil
}

type restrictionChange func(r *domain.Restrictions, p Policy, now time.Time, minutes int)

func restrictionCommand(change restrictionChange) commandHandler {
	return func(s *BoardService, inv *invocation) (string, []domain.Event, error) {
		return s.applyRestriction(inv, change, 0)
	}
}

func (s *BoardService) cmdProhibit(inv *invocation) (string, []domain.Event, error) {
	minutes, err := strconv.Atoi(inv.arg)
	if err != nil || minutes < 1 || minutes > s.policy.MaxProhibitMinutes {
		return "", nil, fmt.Errorf("%w: usage: /prohibit <1-%d minutes>", domain.ErrValidation, s.policy.MaxProhibitMinutes)
	}
	return s.applyRestriction(inv, func(r *domain.Restrictions, _ Policy, now time.Time, m int) {
		r.BlockedUntil = now.Add(time.Duration(m) * time.Minute).UTC()
	}, minutes)
}

func (s *BoardService) applyRestriction(inv *invocation, change restrictionChange, minutes int) (string, []domain.Event, error) {
	r, err := s.board.UpdateRestrictions(inv.ctx, func(r *domain.Restrictions) {
		change(r, s.policy, inv.now, minutes)
	})
	if err != nil {
		return "", nil, err
	}
	return describeRestrictions(r, inv.now), []domain.Event{
		domain.NewEvent(domain.EventRestrictionsUpdated, domain.RestrictionsUpdatedData{
			Prevent:      r.Prevent,
			Restrict:     r.Restrict,
			BlockedUntil: r.BlockedUntil,
		}),
	}, nil
}

func describeRestrictions(r domain.Restrictions, now time.Time) string {
	var parts []string
	if r.Prevent {
		parts = append(parts, "prevent")
	}
	if r.Restrict {
		parts = append(parts, "restrict")
	}
	if r.TimedBlockActive(now) {
		parts = append(parts, "paused until "+r.BlockedUntil.Format(time.RFC3339))
	}
	if len(parts) == 0 {
		return "restrictions released"
	}
	return "restrictions: " + strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

func parseTarget(arg, usage string) (domain.Identity, error) {
	fields := strings.Fields(arg)
	if len(fields) != 1 {
		return "", fmt.Errorf("%w: usage: %s", domain.ErrValidation, usage)
	}
	id := domain.Identity(strings.ToLower(fields[0]))
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q is not an identity", domain.ErrValidation, fields[0])
	}
	return id, nil
}

func grantCommand(role domain.Role) commandHandler {
	return func(s *BoardService, inv *invocation) (string, []domain.Event, error) {
		target, err := parseTarget(inv.arg, "/"+role.String()+" <id>")
		if err != nil {
			return "", nil, err
		}
		if target == inv.actor {
			return "", nil, fmt.Errorf("%w: cannot grant a role to yourself", domain.ErrPermission)
		}
		// Granting moves the target out of its current role, which is a
		// revocation of that role as well.
		current := s.roles.RoleOf(target)
		if current.IsMutable() {
			if need := s.policy.RequiredToManage(current); !domain.HasPermission(inv.role, need) {
				return "", nil, fmt.Errorf("%w: changing a %s requires %s", domain.ErrPermission, current, need)
			}
		}
		if err := s.roles.Grant(inv.ctx, target, role); err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s is now %s", target, role), []domain.Event{
			domain.NewEvent(domain.EventRolesUpdated, domain.RolesUpdatedData{Identity: target, Role: role.String()}),
		}, nil
	}
}

func demoteCommand(role domain.Role) commandHandler {
	return func(s *BoardService, inv *invocation) (string, []domain.Event, error) {
		target, err := parseTarget(inv.arg, "/dis"+role.String()+" <id>")
		if err != nil {
			return "", nil, err
		}
		next, err := s.roles.Demote(inv.ctx, target, role)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s is now %s", target, next), []domain.Event{
			domain.NewEvent(domain.EventRolesUpdated, domain.RolesUpdatedData{Identity: target, Role: next.String()}),
		}, nil
	}
}

func (s *BoardService) cmdDisself(inv *invocation) (string, []domain.Event, error) {
	if err := s.roles.RevokeToDefault(inv.ctx, inv.actor); err != nil {
		return "", nil, err
	}
	role := s.roles.RoleOf(inv.actor)
	return "you are now " + role.String(), []domain.Event{
		domain.NewEvent(domain.EventRolesUpdated, domain.RolesUpdatedData{Identity: inv.actor, Role: role.String()}),
	}, nil
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
