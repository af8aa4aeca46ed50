// Package filter decides which actions need a lock based on include and
// exclude lists of action names. Names are compared case-insensitively.
package filter

import "strings"

// IsLockRequired reports whether action must be guarded. An action needs a
// lock unless it is excluded, and an included action always needs one:
//
//	required = !(action in exclude) || (action in include)
//
// An empty include list therefore means every action not excluded is locked.
func IsLockRequired(action string, include, exclude []string) bool {
	return NewPolicy(include, exclude).Requires(action)
}

// Policy is a normalised include/exclude pair
type Policy struct {
	include map[string]struct{}
	exclude map[string]struct{}
}

// NewPolicy builds a Policy from raw action name lists
func NewPolicy(include, exclude []string) Policy {
	return Policy{
		include: toSet(include),
		exclude: toSet(exclude),
	}
}

// Requires reports whether action must be guarded
func (p Policy) Requires(action string) bool {
	name := normalize(action)
	_, excluded := p.exclude[name]
	_, included := p.include[name]
	return !excluded || included
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[normalize(n)] = struct{}{}
	}
	return set
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
