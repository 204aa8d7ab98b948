package health

import (
	"context"
	"errors"
)

// Pinger is implemented by storage backends that can probe their connection.
// The Postgres memory store satisfies it; the in-process store has nothing to
// probe and is represented by a nil Pinger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryStore returns a readiness checker for the conversation memory
// backend. A nil store means the in-process backend is in use, which is
// always ready.
func MemoryStore(store Pinger) Checker {
	return Checker{
		Name: "memory",
		Check: func(ctx context.Context) error {
			if store == nil {
				return nil
			}
			return store.Ping(ctx)
		},
	}
}

// Router is the subset of the LLM router the providers checker needs.
type Router interface {
	Configured() bool
	Healthy() bool
}

// Providers returns a readiness checker for the LLM backends. A server with
// no configured providers runs in demo mode and is considered ready; a
// server whose configured backends all have open circuit breakers is not.
func Providers(r Router) Checker {
	return Checker{
		Name: "providers",
		Check: func(context.Context) error {
			if !r.Configured() {
				return nil
			}
			if !r.Healthy() {
				return errors.New("all LLM backends unavailable")
			}
			return nil
		},
	}
}
