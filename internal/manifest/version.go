package manifest

import (
	"strconv"
	"strings"
)

// CompareBranches compares two flatpak branch versions such as "22.08" and
// "23.08", or "5.15-22.08" and "6.6".
// Returns: -1 if a < b, 0 if a == b, 1 if a > b.
//
// Segments are split on "." and "-". Two numeric segments compare
// numerically, anything else lexically, so "23.08" beats "5.15" while
// named branches like "stable" keep plain string ordering.
func CompareBranches(a, b string) int {
	if a == b {
		return 0
	}

	segsA := splitBranch(a)
	segsB := splitBranch(b)

	maxLen := len(segsA)
	if len(segsB) > maxLen {
		maxLen = len(segsB)
	}

	for i := 0; i < maxLen; i++ {
		var sa, sb string
		if i < len(segsA) {
			sa = segsA[i]
		}
		if i < len(segsB) {
			sb = segsB[i]
		}

		if cmp := compareSegment(sa, sb); cmp != 0 {
			return cmp
		}
	}
	return 0
}

// NewerBranch reports whether candidate is strictly newer than current.
func NewerBranch(candidate, current string) bool {
	if candidate == "" {
		return false
	}
	if current == "" {
		return true
	}
	return CompareBranches(candidate, current) > 0
}

// MajorBranch returns the leading numeric component of a branch,
// e.g. "5" for "5.15-22.08". Used for KDE major-version pinning.
func MajorBranch(branch string) string {
	segs := splitBranch(branch)
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

func splitBranch(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '.' || r == '-'
	})
}

func compareSegment(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)

	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}

	// A missing segment sorts before a present one: "22" < "22.08"
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	return strings.Compare(a, b)
}
