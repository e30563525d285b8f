package authz

import "testing"

func TestCanMutate(t *testing.T) {
	cases := []struct {
		name      string
		principal string
		owner     string
		elevated  bool
		allow     bool
	}{
		{name: "owner not elevated", principal: "user-a", owner: "user-a", elevated: false, allow: true},
		{name: "owner elevated", principal: "user-a", owner: "user-a", elevated: true, allow: true},
		{name: "non-owner not elevated", principal: "user-b", owner: "user-a", elevated: false, allow: false},
		{name: "non-owner elevated", principal: "user-b", owner: "user-a", elevated: true, allow: true},
		{name: "empty principal", principal: "", owner: "", elevated: false, allow: false},
		{name: "empty principal elevated", principal: "", owner: "user-a", elevated: true, allow: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanMutate(tc.principal, tc.owner, tc.elevated); got != tc.allow {
				t.Fatalf("CanMutate(%q, %q, %v) = %v, want %v", tc.principal, tc.owner, tc.elevated, got, tc.allow)
			}
		})
	}
}

func TestCanMutateAll(t *testing.T) {
	owners := []string{"user-a", "user-b"}

	if CanMutateAll("user-a", owners, false) {
		t.Fatal("expected mixed ownership to be rejected for non-elevated principal")
	}
	if !CanMutateAll("user-a", owners, true) {
		t.Fatal("expected elevated principal to pass for any selection")
	}
	if !CanMutateAll("user-a", []string{"user-a", "user-a"}, false) {
		t.Fatal("expected owner-only selection to pass")
	}
	if !CanMutateAll("user-b", nil, false) {
		t.Fatal("expected empty selection to pass")
	}
}
