package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeRouter struct{ configured, healthy bool }

func (f fakeRouter) Configured() bool { return f.configured }
func (f fakeRouter) Healthy() bool    { return f.healthy }

func TestMemoryStoreChecker(t *testing.T) {
	t.Parallel()

	if err := MemoryStore(nil).Check(t.Context()); err != nil {
		t.Fatalf("nil store check = %v, want nil (in-process backend)", err)
	}
	if err := MemoryStore(fakePinger{}).Check(t.Context()); err != nil {
		t.Fatalf("healthy store check = %v, want nil", err)
	}
	want := errors.New("connection refused")
	if err := MemoryStore(fakePinger{err: want}).Check(t.Context()); !errors.Is(err, want) {
		t.Fatalf("failing store check = %v, want ping error", err)
	}
}

func TestProvidersChecker(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		router  fakeRouter
		wantErr bool
	}{
		{"demo mode is ready", fakeRouter{configured: false}, false},
		{"healthy backends", fakeRouter{configured: true, healthy: true}, false},
		{"all breakers open", fakeRouter{configured: true, healthy: false}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Providers(tc.router).Check(t.Context())
			if (err != nil) != tc.wantErr {
				t.Fatalf("Check() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
