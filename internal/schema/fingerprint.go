// Package schema fingerprints match-v5 detail payloads and detects upstream contract drift.
package schema

import (
	"sort"

	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
)

// Section prefixes, in fingerprint order.
const (
	SectionTop         = "top"
	SectionInfo        = "info"
	SectionParticipant = "participant"
	SectionChallenges  = "challenges"
	SectionTeam        = "team"
	SectionObjectives  = "objectives"
)

// Fingerprint is the ordered list of section-qualified key names sampled from a payload,
// e.g. "info.gameDuration" or "challenges.kda". Comparison is by set.
type Fingerprint []string

type object map[string]json.RawMessage

// ErrIncompletePayload means the payload lacks info, info.participants or info.teams.
var ErrIncompletePayload = errors.New("match payload is missing required sections")

// Validate checks that payload is an object with an info object holding participants
// and teams arrays. Empty arrays are accepted.
func Validate(payload []byte) error {
	var top object
	if err := json.Unmarshal(payload, &top); err != nil {
		return errors.Wrap(err, "payload is not a JSON object")
	}
	info := child(top, "info")
	if info == nil {
		return errors.Wrap(ErrIncompletePayload, "missing info")
	}
	for _, key := range []string{"participants", "teams"} {
		var items []json.RawMessage
		if err := json.Unmarshal(info[key], &items); err != nil || items == nil {
			return errors.Wrapf(ErrIncompletePayload, "missing info.%s", key)
		}
	}
	return nil
}

// Compute samples keys from the top level, info, the first participant and its
// challenges, and the first team and its objectives. Sections missing from the payload
// contribute nothing; only a non-object payload is an error.
func Compute(payload []byte) (Fingerprint, error) {
	var top object
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, errors.Wrap(err, "payload is not a JSON object")
	}

	var fp Fingerprint
	fp = appendKeys(fp, SectionTop, top)

	info := child(top, "info")
	fp = appendKeys(fp, SectionInfo, info)

	participant := firstElement(info, "participants")
	fp = appendKeys(fp, SectionParticipant, participant)
	fp = appendKeys(fp, SectionChallenges, child(participant, "challenges"))

	team := firstElement(info, "teams")
	fp = appendKeys(fp, SectionTeam, team)
	fp = appendKeys(fp, SectionObjectives, child(team, "objectives"))

	return fp, nil
}

func appendKeys(fp Fingerprint, section string, obj object) Fingerprint {
	if len(obj) == 0 {
		return fp
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, section+"."+k)
	}
	sort.Strings(keys)
	return append(fp, keys...)
}

// child decodes obj[key] as an object, or returns nil.
func child(obj object, key string) object {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	var out object
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// firstElement decodes the first element of the array obj[key] as an object, or returns nil.
func firstElement(obj object, key string) object {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil
	}
	var out object
	if err := json.Unmarshal(items[0], &out); err != nil {
		return nil
	}
	return out
}

// Drift is the set difference between a reference and a current fingerprint.
type Drift struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

func (d Drift) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Diff returns keys present now but not in the reference (Added) and keys in the
// reference but gone now (Removed), both sorted.
func Diff(reference, current Fingerprint) Drift {
	ref := toSet(reference)
	cur := toSet(current)

	var d Drift
	for k := range cur {
		if _, ok := ref[k]; !ok {
			d.Added = append(d.Added, k)
		}
	}
	for k := range ref {
		if _, ok := cur[k]; !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	return d
}

func toSet(fp Fingerprint) map[string]struct{} {
	set := make(map[string]struct{}, len(fp))
	for _, k := range fp {
		set[k] = struct{}{}
	}
	return set
}
