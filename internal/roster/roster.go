package roster

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Role marks whether a roster member is a regular starter or a designated substitute.
type Role string

const (
	RoleStarter Role = "starter"
	RoleSub     Role = "sub"
)

// ParseRole accepts "starter", "sub" or "substitute"; empty means starter.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "starter":
		return RoleStarter, nil
	case "sub", "substitute":
		return RoleSub, nil
	default:
		return "", errors.Newf("unknown role %q", s)
	}
}

// Member is one configured player, identified by Riot ID (gameName#tagLine).
type Member struct {
	Name string `yaml:"name" validate:"required"`
	Tag  string `yaml:"tag" validate:"required"`
	Role Role   `yaml:"role" validate:"omitempty,oneof=starter sub"`
}

// RiotID returns "Name#TAG".
func (m Member) RiotID() string {
	return m.Name + "#" + m.Tag
}

func (m Member) IsSubstitute() bool {
	return m.Role == RoleSub
}

// Roster is the ordered member list. It implements envconfig.Decoder so it can be
// read straight from ROSTER="Name#TAG[:sub],Other#NA1".
type Roster []Member

func (r *Roster) Decode(value string) error {
	parsed, err := Parse(value)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Parse reads a comma separated list of Name#TAG entries, each optionally suffixed
// with :starter or :sub. Names may contain spaces.
func Parse(value string) (Roster, error) {
	var out Roster
	for _, raw := range strings.Split(value, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		role := RoleStarter
		if idx := strings.LastIndex(entry, ":"); idx >= 0 {
			parsed, err := ParseRole(entry[idx+1:])
			if err != nil {
				return nil, errors.Wrapf(err, "roster entry %q", entry)
			}
			role = parsed
			entry = entry[:idx]
		}

		parts := strings.SplitN(entry, "#", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, errors.Newf("invalid roster entry %q, expected Name#TAG", raw)
		}

		out = append(out, Member{
			Name: strings.TrimSpace(parts[0]),
			Tag:  strings.TrimSpace(parts[1]),
			Role: role,
		})
	}
	return out, nil
}

func (r Roster) String() string {
	ids := make([]string, 0, len(r))
	for _, m := range r {
		ids = append(ids, fmt.Sprintf("%s:%s", m.RiotID(), m.Role))
	}
	return strings.Join(ids, ",")
}
