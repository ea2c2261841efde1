package domain

import (
	"strings"
	"time"
)

// DefaultMaxPosts is the retained post count when none is configured.
const DefaultMaxPosts = 100

// Post is a single accepted plain message.
type Post struct {
	ID        int       `json:"id" bson:"id"`
	Author    Identity  `json:"author" bson:"author"`
	Name      string    `json:"name" bson:"name"`
	Body      string    `json:"body" bson:"body"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// DisplayName renders the poster as "name@identity".
func (p Post) DisplayName() string {
	return p.Name + "@" + string(p.Author)
}

// Decoration is the cosmetic per-identity styling set through /add and /color.
type Decoration struct {
	Suffix      string `json:"suffix,omitempty" bson:"suffix,omitempty"`
	SuffixColor string `json:"suffix_color,omitempty" bson:"suffix_color,omitempty"`
	NameColor   string `json:"name_color,omitempty" bson:"name_color,omitempty"`
}

// IsZero reports whether d carries no styling at all.
func (d Decoration) IsZero() bool {
	return d == Decoration{}
}

// Restrictions gates plain posts. BlockedUntil is zero when no timed block is active.
type Restrictions struct {
	Prevent      bool      `json:"prevent" bson:"prevent"`
	Restrict     bool      `json:"restrict" bson:"restrict"`
	BlockedUntil time.Time `json:"blocked_until" bson:"blocked_until"`
}

// TimedBlockActive reports whether the timed block still applies at now.
func (r Restrictions) TimedBlockActive(now time.Time) bool {
	return !r.BlockedUntil.IsZero() && now.Before(r.BlockedUntil)
}

// BoardSnapshot is the whole persisted board: the unit every backend reads and
// rewrites.
type BoardSnapshot struct {
	Posts        []Post                  `json:"posts" bson:"posts"`
	LastID       int                     `json:"last_id" bson:"last_id"`
	Topic        string                  `json:"topic" bson:"topic"`
	MaxPosts     int                     `json:"max_posts" bson:"max_posts"`
	Decorations  map[Identity]Decoration `json:"decorations" bson:"decorations"`
	NGWords      []string                `json:"ng_words" bson:"ng_words"`
	Restrictions Restrictions            `json:"restrictions" bson:"restrictions"`
}

// Clone returns a deep copy of s.
func (s BoardSnapshot) Clone() BoardSnapshot {
	out := s
	out.Posts = append([]Post(nil), s.Posts...)
	out.NGWords = append([]string(nil), s.NGWords...)
	out.Decorations = make(map[Identity]Decoration, len(s.Decorations))
	for k, v := range s.Decorations {
		out.Decorations[k] = v
	}
	return out
}

// MatchNGWord returns the first NG word contained in text.
func (s BoardSnapshot) MatchNGWord(text string) (string, bool) {
	for _, w := range s.NGWords {
		if w != "" && strings.Contains(text, w) {
			return w, true
		}
	}
	return "", false
}

// RoleSnapshot maps each mutable role to its member identities. The
// configured operator allow-list is never part of it.
type RoleSnapshot struct {
	Scheme int                 `json:"scheme"`
	Roles  map[Role][]Identity `json:"roles"`
}

// Clone returns a deep copy of s.
func (s RoleSnapshot) Clone() RoleSnapshot {
	out := RoleSnapshot{Scheme: s.Scheme, Roles: make(map[Role][]Identity, len(s.Roles))}
	for r, ids := range s.Roles {
		out.Roles[r] = append([]Identity(nil), ids...)
	}
	return out
}
