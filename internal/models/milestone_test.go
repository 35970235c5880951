package models

import "testing"

func TestFreeRevisionsLeft(t *testing.T) {
	cases := []struct {
		name string
		free int
		used int
		want bool
	}{
		{"untouched quota", 2, 0, true},
		{"one left", 2, 1, true},
		{"quota exhausted", 2, 2, false},
		{"over quota", 1, 3, false},
		{"no free revisions", 0, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &Milestone{FreeRevisions: tc.free, UsedRevisions: tc.used}
			if got := m.FreeRevisionsLeft(); got != tc.want {
				t.Fatalf("FreeRevisionsLeft() = %v, want %v (free=%d used=%d)", got, tc.want, tc.free, tc.used)
			}
		})
	}
}
