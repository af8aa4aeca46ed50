package lock

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode is a combination of advisory lock flags. The numeric values follow
// flock(2) so configuration files can use either the names or the numbers.
type Mode uint8

// Lock mode flags
const (
	// Shared requests a shared (reader) lock
	Shared Mode = 1 << iota
	// Exclusive requests an exclusive (writer) lock
	Exclusive
	// NonBlocking makes acquisition fail immediately instead of waiting
	NonBlocking
	// Unlock requests no advisory lock at all
	Unlock

	allFlags = Shared | Exclusive | NonBlocking | Unlock
)

// DefaultMode is used when no mode is configured
const DefaultMode = Exclusive | NonBlocking

var modeNames = []struct {
	flag Mode
	name string
}{
	{Shared, "shared"},
	{Exclusive, "exclusive"},
	{NonBlocking, "nonblocking"},
	{Unlock, "unlock"},
}

var modeAliases = map[string]Mode{
	"shared":       Shared,
	"sh":           Shared,
	"lock_sh":      Shared,
	"exclusive":    Exclusive,
	"ex":           Exclusive,
	"lock_ex":      Exclusive,
	"nonblocking":  NonBlocking,
	"non-blocking": NonBlocking,
	"nb":           NonBlocking,
	"lock_nb":      NonBlocking,
	"unlock":       Unlock,
	"un":           Unlock,
	"lock_un":      Unlock,
}

// Validate reports whether m only contains known flags
func (m Mode) Validate() error {
	if m&^allFlags != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMode, uint(m))
	}
	return nil
}

// Has reports whether every flag in f is set in m
func (m Mode) Has(f Mode) bool {
	return f != 0 && m&f == f
}

// String renders the mode in the symbolic form accepted by ParseMode.
func (m Mode) String() string {
	if m == 0 {
		return "0"
	}

	var parts []string
	for _, n := range modeNames {
		if m&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := m &^ allFlags; rest != 0 {
		parts = append(parts, strconv.Itoa(int(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseMode parses either a decimal bitmask ("6") or flag names joined
// with '|' ("exclusive|nonblocking", "LOCK_EX|LOCK_NB"). Names are
// case-insensitive. An empty string yields DefaultMode.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultMode, nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > int(allFlags) {
			return 0, fmt.Errorf("%w: %d", ErrInvalidMode, n)
		}
		return Mode(n), nil
	}

	var m Mode
	for _, part := range strings.Split(s, "|") {
		name := strings.ToLower(strings.TrimSpace(part))
		flag, ok := modeAliases[name]
		if !ok {
			return 0, fmt.Errorf("%w: unknown flag %q", ErrInvalidMode, part)
		}
		m |= flag
	}
	return m, nil
}
