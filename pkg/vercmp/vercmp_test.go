package vercmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/ajxudir/xpkg/pkg/errors"
)

// TestCmpCorpus fixes the comparator contract against the distribution
// comparator. Every triple is (va, vb, expected sign).
func TestCmpCorpus(t *testing.T) {
	corpus := []struct {
		va, vb string
		want   int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.1", "1.0", 1},
		{"2.0", "1.9", 1},
		{"1.10", "1.9", 1},
		{"10", "9", 1},
		{"1.0", "1.0.0", 0},
		{"1.0_1", "1.0", 1},
		{"1.0_2", "1.0_1", 1},
		{"1.0_10", "1.0_9", 1},
		{"2.32_1", "2.32_1", 0},
		{"1.0alpha", "1.0", -1},
		{"1.0alpha", "1.0beta", -1},
		{"1.0beta", "1.0rc1", -1},
		{"1.0rc1", "1.0rc2", -1},
		{"1.0rc2", "1.0", -1},
		{"1.0pre1", "1.0", -1},
		{"1.0pl1", "1.0.1", 0},
		{"1.0a", "1.0", 1},
		{"1.0b", "1.0a", 1},
		{"1.0A", "1.0a", 0},
		{"1:1.0", "2.0", 1},
		{"1:1.0", "1:0.9", 1},
		{"2:0.1", "1:9.9", 1},
		{"1.2.3", "1.2.3", 0},
		{"0.19.4", "0.19.10", -1},
	}
	for _, tc := range corpus {
		assert.Equal(t, tc.want, Cmp(tc.va, tc.vb), "Cmp(%q, %q)", tc.va, tc.vb)
		assert.Equal(t, -tc.want, Cmp(tc.vb, tc.va), "Cmp(%q, %q)", tc.vb, tc.va)
	}
}

func TestPatternName(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
		wantErr bool
	}{
		{"foo", "foo", false},
		{"foo>=1.0", "foo", false},
		{"foo<2", "foo", false},
		{"foo=1.0_1", "foo", false},
		{"libfoo-devel>=1.0", "libfoo-devel", false},
		{">=1.0", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := PatternName(tc.pattern)
		if tc.wantErr {
			var perr *xerrors.PatternError
			require.ErrorAs(t, err, &perr, "PatternName(%q)", tc.pattern)
			continue
		}
		require.NoError(t, err, "PatternName(%q)", tc.pattern)
		assert.Equal(t, tc.want, got)
	}
}

func TestPatternVersion(t *testing.T) {
	op, ver, ok, err := PatternVersion("foo>=1.2_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, OpGE, op)
	assert.Equal(t, "1.2_1", ver)

	_, _, ok, err = PatternVersion("foo")
	require.NoError(t, err)
	assert.False(t, ok, "bare name has no version constraint")

	_, _, _, err = PatternVersion("foo>=")
	var perr *xerrors.PatternError
	require.ErrorAs(t, err, &perr, "operator without version is malformed")
}

func TestMatch(t *testing.T) {
	tests := []struct {
		version string
		pattern string
		want    bool
	}{
		{"1.0_1", "foo", true},
		{"1.0_1", "foo>=1.0", true},
		{"1.0_1", "foo>1.0", true},
		{"1.0", "foo>1.0", false},
		{"1.0", "foo>=1.0", true},
		{"0.9", "foo>=1.0", false},
		{"1.0", "foo=1.0", true},
		{"1.0_1", "foo=1.0", false},
		{"2.0", "foo<2.0", false},
		{"1.9", "foo<2.0", true},
		{"2.0", "foo<=2.0", true},
	}
	for _, tc := range tests {
		got, err := Match(tc.version, tc.pattern)
		require.NoError(t, err, "Match(%q, %q)", tc.version, tc.pattern)
		assert.Equal(t, tc.want, got, "Match(%q, %q)", tc.version, tc.pattern)
	}
}

// Malformed patterns must surface as a distinct error, never as a
// silent non-match.
func TestMatchMalformed(t *testing.T) {
	_, err := Match("1.0", "")
	var perr *xerrors.PatternError
	require.ErrorAs(t, err, &perr)
}

func TestMatchPkgver(t *testing.T) {
	ok, err := MatchPkgver("foo-1.0_1", "foo>=1.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MatchPkgver("foobar-1.0_1", "foo>=1.0")
	require.NoError(t, err)
	assert.False(t, ok, "name mismatch never matches")

	ok, err = MatchPkgver("libfoo-devel-2.1_1", "libfoo-devel<3")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSplitPkgver(t *testing.T) {
	name, version, err := SplitPkgver("libfoo-devel-1.0_1")
	require.NoError(t, err)
	assert.Equal(t, "libfoo-devel", name)
	assert.Equal(t, "1.0_1", version)

	_, _, err = SplitPkgver("noversion")
	var perr *xerrors.PatternError
	require.ErrorAs(t, err, &perr)
}
