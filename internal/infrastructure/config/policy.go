package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/99minutos/seedboard/internal/core/domain"
	"github.com/99minutos/seedboard/internal/core/service"
)

// LoadPolicy overlays the YAML file at path onto base. Keys absent from the
// file keep their base value; map entries are merged per key. An empty path
// returns base unchanged.
func LoadPolicy(path string, base service.Policy) (service.Policy, error) {
	if path == "" {
		return base, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read policy %s: %w", path, err)
	}
	return ParsePolicy(b, base)
}

// ParsePolicy overlays YAML document b onto base.
func ParsePolicy(b []byte, base service.Policy) (service.Policy, error) {
	p := clonePolicy(base)
	if err := yaml.Unmarshal(b, &p); err != nil {
		return base, fmt.Errorf("parse policy: %w", err)
	}
	if err := validatePolicy(p); err != nil {
		return base, err
	}
	return p, nil
}

func validatePolicy(p service.Policy) error {
	for r, m := range p.GrantMargins {
		if !r.IsMutable() {
			return fmt.Errorf("policy: grant margin for non-mutable role %s", r)
		}
		if m < 1 {
			return fmt.Errorf("policy: grant margin for %s must be at least 1", r)
		}
	}
	if p.StopDuration <= 0 {
		return fmt.Errorf("policy: stop_duration must be positive")
	}
	if p.MaxProhibitMinutes < 1 {
		return fmt.Errorf("policy: max_prohibit_minutes must be at least 1")
	}
	if p.MaxPostsLimit < 1 {
		return fmt.Errorf("policy: max_posts_limit must be at least 1")
	}
	return nil
}

// clonePolicy copies the maps so decoding into the result leaves base intact.
func clonePolicy(base service.Policy) service.Policy {
	p := base
	p.Commands = make(map[string]domain.Role, len(base.Commands))
	for k, v := range base.Commands {
		p.Commands[k] = v
	}
	p.GrantMargins = make(map[domain.Role]int, len(base.GrantMargins))
	for k, v := range base.GrantMargins {
		p.GrantMargins[k] = v
	}
	p.RoleStyles = make(map[domain.Role]service.RoleStyle, len(base.RoleStyles))
	for k, v := range base.RoleStyles {
		p.RoleStyles[k] = v
	}
	return p
}
