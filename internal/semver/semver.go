// Package semver parses and totally orders semantic version strings per the
// Semantic Versioning 2.0.0 precedence rules: numeric major/minor/patch,
// identifier-by-identifier pre-release comparison, build metadata ignored.
package semver

import (
	"strconv"
	"strings"

	"relwatch/internal/domain/entity"
)

// Components is the decomposed form of a semantic version string. It is
// derived on demand and never persisted.
type Components struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease []string
	Build      string
}

// Parse decomposes a version string of the form
// MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD]. It returns a *entity.ParseError
// when the string does not satisfy the grammar.
func Parse(s string) (Components, error) {
	var c Components

	rest := s

	// Split off build metadata first; it is syntax-checked but otherwise
	// ignored for ordering.
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		c.Build = rest[i+1:]
		rest = rest[:i]
		if !validDotSeparated(c.Build, false) {
			return Components{}, &entity.ParseError{Input: s, Message: "invalid build metadata"}
		}
	}

	if i := strings.IndexByte(rest, '-'); i >= 0 {
		pre := rest[i+1:]
		rest = rest[:i]
		if !validDotSeparated(pre, true) {
			return Components{}, &entity.ParseError{Input: s, Message: "invalid pre-release"}
		}
		c.Prerelease = strings.Split(pre, ".")
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return Components{}, &entity.ParseError{Input: s, Message: "expected MAJOR.MINOR.PATCH"}
	}

	nums := make([]uint64, 3)
	for i, p := range parts {
		n, ok := parseNumeric(p)
		if !ok {
			return Components{}, &entity.ParseError{Input: s, Message: "invalid numeric component " + strconv.Quote(p)}
		}
		nums[i] = n
	}
	c.Major, c.Minor, c.Patch = nums[0], nums[1], nums[2]

	return c, nil
}

// IsValid reports whether s is a well-formed semantic version.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Compare totally orders two version strings, returning -1, 0 or 1. It
// fails with a *entity.ParseError when either input is invalid.
func Compare(a, b string) (int, error) {
	ca, err := Parse(a)
	if err != nil {
		return 0, err
	}
	cb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return ca.Compare(cb), nil
}

// IsNewer reports whether a has strictly higher precedence than b.
func IsNewer(a, b string) (bool, error) {
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Compare orders c against o per semver precedence. Build metadata never
// participates.
func (c Components) Compare(o Components) int {
	if r := compareUint(c.Major, o.Major); r != 0 {
		return r
	}
	if r := compareUint(c.Minor, o.Minor); r != 0 {
		return r
	}
	if r := compareUint(c.Patch, o.Patch); r != 0 {
		return r
	}
	return comparePrerelease(c.Prerelease, o.Prerelease)
}

// comparePrerelease orders two pre-release identifier sequences. An absent
// sequence outranks any present one; otherwise identifiers are compared
// pairwise, with a shorter sequence losing when all shared identifiers tie.
func comparePrerelease(a, b []string) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1
	}
	if len(b) == 0 {
		return -1
	}

	for i := 0; i < len(a) && i < len(b); i++ {
		if r := compareIdentifier(a[i], b[i]); r != 0 {
			return r
		}
	}

	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// compareIdentifier orders a single pre-release identifier pair. Numeric
// identifiers compare numerically and always rank below alphanumeric ones;
// alphanumeric identifiers compare in ASCII code-point order.
func compareIdentifier(a, b string) int {
	na, aNum := parseNumeric(a)
	nb, bNum := parseNumeric(b)

	switch {
	case aNum && bNum:
		return compareUint(na, nb)
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(a, b)
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// parseNumeric parses an identifier as a non-negative integer with no
// leading zeros (the literal "0" excepted).
func parseNumeric(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// validDotSeparated checks a dot-separated sequence of alphanumeric/hyphen
// identifiers. When numericNoLeadingZeros is set, purely numeric identifiers
// must not carry leading zeros (the pre-release rule; build metadata allows
// them).
func validDotSeparated(s string, numericNoLeadingZeros bool) bool {
	if s == "" {
		return false
	}
	for _, id := range strings.Split(s, ".") {
		if id == "" {
			return false
		}
		numeric := true
		for i := 0; i < len(id); i++ {
			c := id[i]
			switch {
			case c >= '0' && c <= '9':
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-':
				numeric = false
			default:
				return false
			}
		}
		if numericNoLeadingZeros && numeric && len(id) > 1 && id[0] == '0' {
			return false
		}
	}
	return true
}
