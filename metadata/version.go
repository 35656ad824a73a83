package metadata

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions orders two version strings. Both are parsed as (possibly
// partial) semantic versions when possible; if either does not parse, the
// comparison falls back to plain lexical ordering so arbitrary version
// schemes still sort deterministically.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}

// MatchesConstraint reports whether version satisfies a semver constraint
// expression such as ">= 1.0, < 2.0". Versions or constraints that do not
// parse never match.
func MatchesConstraint(version, constraint string) bool {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return c.Check(v)
}
