// Package vercmp implements package version parsing, ordering and
// dependency pattern matching.
//
// Version tokens are compared component-wise: runs of digits compare
// numerically, separators (`.` and `_`) are neutral, the pre-release
// words alpha/beta/pre/rc order below the release they precede, and a
// bare letter orders above the same version without it. An optional
// `epoch:` prefix dominates everything after it. Revision suffixes
// (`_N`) are ordinary components, so `1.0_2` sorts above `1.0_1`.
package vercmp

import (
	"strings"
)

// modifier values for the pre-release words. A missing component pads
// as 0, which places alpha/beta/pre/rc below the bare release and `pl`
// equal to it.
const (
	modAlpha = -3
	modBeta  = -2
	modPre   = -1
	modRC    = -1
	modPatch = 0
)

var modifiers = []struct {
	word  string
	value int
}{
	{"alpha", modAlpha},
	{"beta", modBeta},
	{"pre", modPre},
	{"rc", modRC},
	{"pl", modPatch},
}

// parse splits a version token into an epoch and a component vector.
func parse(v string) (epoch int, comps []int) {
	if i := strings.IndexByte(v, ':'); i > 0 && allDigits(v[:i]) {
		epoch = atoi(v[:i])
		v = v[i+1:]
	}
	for i := 0; i < len(v); {
		c := v[i]
		switch {
		case c >= '0' && c <= '9':
			j := i
			for j < len(v) && v[j] >= '0' && v[j] <= '9' {
				j++
			}
			comps = append(comps, atoi(v[i:j]))
			i = j
		case c == '.' || c == '_':
			comps = append(comps, 0)
			i++
		default:
			if mod, n := matchModifier(v[i:]); n > 0 {
				comps = append(comps, mod)
				i += n
				continue
			}
			// A lone letter counts as a fractional step above the
			// version it follows: `1.0a` > `1.0`.
			comps = append(comps, 0, int(lower(c)-'a')+1)
			i++
		}
	}
	return epoch, comps
}

// Cmp compares two version tokens and returns -1, 0 or +1. It is a
// strict weak order; tokens that only differ in separators compare
// equal.
func Cmp(va, vb string) int {
	ea, ca := parse(va)
	eb, cb := parse(vb)
	if ea != eb {
		if ea < eb {
			return -1
		}
		return 1
	}
	n := len(ca)
	if len(cb) > n {
		n = len(cb)
	}
	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(ca) {
			a = ca[i]
		}
		if i < len(cb) {
			b = cb[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

func matchModifier(s string) (int, int) {
	ls := strings.ToLower(s)
	for _, m := range modifiers {
		if strings.HasPrefix(ls, m.word) {
			return m.value, len(m.word)
		}
	}
	return 0, 0
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
