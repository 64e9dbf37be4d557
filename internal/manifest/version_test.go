package manifest

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCompareBranches(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"23.08", "22.08", 1},
		{"22.08", "23.08", -1},
		{"22.08", "22.08", 0},
		{"45", "44", 1},
		{"6", "5", 1},
		{"23.08", "5.15", 1},   // numeric, not lexical
		{"5.15-22.08", "5.15-21.08", 1},
		{"6.6", "5.15-22.08", 1},
		{"22.08", "22.08.1", -1},
		{"stable", "stable", 0},
		{"1", "1.0", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			if got := CompareBranches(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareBranches(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNewerBranch(t *testing.T) {
	tests := []struct {
		candidate, current string
		want               bool
	}{
		{"23.08", "22.08", true},
		{"22.08", "23.08", false},
		{"22.08", "22.08", false},
		{"", "22.08", false},
		{"23.08", "", true},
	}

	for _, tt := range tests {
		if got := NewerBranch(tt.candidate, tt.current); got != tt.want {
			t.Errorf("NewerBranch(%q, %q) = %v, want %v", tt.candidate, tt.current, got, tt.want)
		}
	}
}

func TestMajorBranch(t *testing.T) {
	tests := []struct {
		branch string
		want   string
	}{
		{"5.15-22.08", "5"},
		{"6.6", "6"},
		{"45", "45"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := MajorBranch(tt.branch); got != tt.want {
			t.Errorf("MajorBranch(%q) = %q, want %q", tt.branch, got, tt.want)
		}
	}
}

func TestCompareBranchesProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	branchGen := gen.OneConstOf(
		"21.08", "22.08", "23.08", "24.08",
		"5.15-21.08", "5.15-22.08", "6.6", "6.7",
		"44", "45", "46", "stable", "master", "",
	)

	properties.Property("comparison is antisymmetric", prop.ForAll(
		func(a, b string) bool {
			return CompareBranches(a, b) == -CompareBranches(b, a)
		},
		branchGen, branchGen,
	))

	properties.Property("comparison is reflexive", prop.ForAll(
		func(a string) bool {
			return CompareBranches(a, a) == 0
		},
		branchGen,
	))

	properties.Property("NewerBranch is a strict ordering", prop.ForAll(
		func(a, b string) bool {
			// Both directions can never be newer at once
			return !(NewerBranch(a, b) && NewerBranch(b, a))
		},
		branchGen, branchGen,
	))

	properties.TestingRun(t)
}
