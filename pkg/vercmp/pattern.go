package vercmp

import (
	"strings"

	xerrors "github.com/ajxudir/xpkg/pkg/errors"
)

// Op is a version comparison operator inside a dependency pattern.
type Op string

// Pattern operators, in the order they are probed (two-character
// operators first so `>=` is never read as `>`).
const (
	OpLT Op = "<"
	OpLE Op = "<="
	OpEQ Op = "="
	OpGE Op = ">="
	OpGT Op = ">"
)

var opProbe = []Op{OpLE, OpGE, OpLT, OpGT, OpEQ}

// PatternName extracts the package name from a dependency pattern such
// as `foo>=1.2`. A pattern with no operator is just a name.
func PatternName(pattern string) (string, error) {
	i := strings.IndexAny(pattern, "<>=")
	if i == 0 {
		return "", &xerrors.PatternError{Pattern: pattern}
	}
	if i < 0 {
		if pattern == "" {
			return "", &xerrors.PatternError{Pattern: pattern}
		}
		return pattern, nil
	}
	return pattern[:i], nil
}

// PatternVersion extracts the operator and version from a dependency
// pattern. For a bare name it returns ok=false with no error.
func PatternVersion(pattern string) (op Op, version string, ok bool, err error) {
	i := strings.IndexAny(pattern, "<>=")
	if i < 0 {
		if pattern == "" {
			return "", "", false, &xerrors.PatternError{Pattern: pattern}
		}
		return "", "", false, nil
	}
	if i == 0 {
		return "", "", false, &xerrors.PatternError{Pattern: pattern}
	}
	rest := pattern[i:]
	for _, probe := range opProbe {
		if strings.HasPrefix(rest, string(probe)) {
			version = rest[len(probe):]
			if version == "" {
				return "", "", false, &xerrors.PatternError{Pattern: pattern}
			}
			return probe, version, true, nil
		}
	}
	return "", "", false, &xerrors.PatternError{Pattern: pattern}
}

// Match reports whether a concrete version satisfies a dependency
// pattern's version constraint. The caller is responsible for checking
// that the pattern names the right package; a pattern without an
// operator matches any version.
func Match(version, pattern string) (bool, error) {
	op, want, ok, err := PatternVersion(pattern)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	c := Cmp(version, want)
	switch op {
	case OpLT:
		return c < 0, nil
	case OpLE:
		return c <= 0, nil
	case OpEQ:
		return c == 0, nil
	case OpGE:
		return c >= 0, nil
	case OpGT:
		return c > 0, nil
	}
	return false, &xerrors.PatternError{Pattern: pattern}
}

// MatchPkgver matches a `name-version` pkgver against a pattern,
// checking both the name and the version constraint.
func MatchPkgver(pkgver, pattern string) (bool, error) {
	name, version, err := SplitPkgver(pkgver)
	if err != nil {
		return false, err
	}
	pname, err := PatternName(pattern)
	if err != nil {
		return false, err
	}
	if name != pname {
		return false, nil
	}
	return Match(version, pattern)
}

// SplitPkgver splits `name-version` at the last dash that is followed
// by a digit. Package names may themselves contain dashes.
func SplitPkgver(pkgver string) (name, version string, err error) {
	for i := len(pkgver) - 2; i > 0; i-- {
		if pkgver[i] == '-' && pkgver[i+1] >= '0' && pkgver[i+1] <= '9' {
			return pkgver[:i], pkgver[i+1:], nil
		}
	}
	return "", "", &xerrors.PatternError{Pattern: pkgver}
}
