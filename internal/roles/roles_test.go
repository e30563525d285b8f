package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeGrantStore struct {
	granted bool
	err     error
	calls   int
}

func (f *fakeGrantStore) HasAdminRole(ctx context.Context, userID string) (bool, error) {
	f.calls++
	return f.granted, f.err
}

func TestIsAdmin(t *testing.T) {
	cases := []struct {
		name    string
		granted bool
		err     error
		want    bool
	}{
		{name: "grant present", granted: true, want: true},
		{name: "grant absent", granted: false, want: false},
		{name: "lookup failure", granted: true, err: errors.New("store down"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := NewResolver(&fakeGrantStore{granted: tc.granted, err: tc.err}, zerolog.Nop())
			if got := resolver.IsAdmin(context.Background(), "user-1"); got != tc.want {
				t.Fatalf("IsAdmin() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsAdminEmptyPrincipal(t *testing.T) {
	grants := &fakeGrantStore{granted: true}
	resolver := NewResolver(grants, zerolog.Nop())
	if resolver.IsAdmin(context.Background(), "") {
		t.Fatal("expected empty principal to resolve to false")
	}
	if grants.calls != 0 {
		t.Fatal("expected no store lookup for empty principal")
	}
}
