package keywords

import (
	"reflect"
	"testing"
)

func TestTargetCount(t *testing.T) {
	cases := map[int]int{1: 2, 5: 3, 10: 5, 15: 7, 30: 10, 60: 15, 0: 3, 7: 3, -1: 3}
	for minutes, want := range cases {
		if got := TargetCount(minutes); got != want {
			t.Fatalf("TargetCount(%d) = %d, want %d", minutes, got, want)
		}
	}
}

func TestPrioritizeAllIncludedWhenUnderTarget(t *testing.T) {
	got := Prioritize([]string{"market size", "team", "ask"}, nil, 5)
	want := []string{"market size", "team", "ask"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPrioritizeKeepsOriginalOrder(t *testing.T) {
	got := Prioritize([]string{"a", "b", "c", "d", "e"}, []string{"d"}, 1)
	want := []string{"a", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPrioritizeNeverDropsFlags(t *testing.T) {
	words := []string{"a", "b", "c", "d", "e"}
	flagged := []string{"e", "c", "a"}
	got := Prioritize(words, flagged, 1)
	want := []string{"a", "c", "e"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPrioritizeFlagsMatchCaseInsensitively(t *testing.T) {
	got := Prioritize([]string{"Alpha", "Beta", "Gamma"}, []string{"gamma"}, 1)
	want := []string{"Alpha", "Gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPrioritizeEmpty(t *testing.T) {
	got := Prioritize(nil, []string{"x"}, 10)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}

func TestPrioritizeProperties(t *testing.T) {
	words := []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8", "k9", "k10", "k11", "k12"}
	flagSets := [][]string{
		nil,
		{"k12"},
		{"k3", "k7"},
		{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8"},
		words,
	}
	for _, flagged := range flagSets {
		for _, minutes := range []int{1, 5, 10, 15, 30, 60, 2} {
			first := Prioritize(words, flagged, minutes)
			second := Prioritize(words, flagged, minutes)
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("not deterministic for flags %v minutes %d", flagged, minutes)
			}
			for _, f := range flagged {
				if indexOf(first, f) < 0 {
					t.Fatalf("flagged %q missing from %v", f, first)
				}
			}
			if !isSubsequence(first, words) {
				t.Fatalf("%v is not a subsequence of %v", first, words)
			}
			wantLen := TargetCount(minutes)
			if len(flagged) > wantLen {
				wantLen = len(flagged)
			}
			if wantLen > len(words) {
				wantLen = len(words)
			}
			if len(first) != wantLen {
				t.Fatalf("flags %v minutes %d: expected %d keywords, got %d", flagged, minutes, wantLen, len(first))
			}
		}
	}
}

func isSubsequence(sub, full []string) bool {
	j := 0
	for _, w := range full {
		if j < len(sub) && sub[j] == w {
			j++
		}
	}
	return j == len(sub)
}
