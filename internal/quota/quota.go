// Package quota limits how many LLM-backed searches one client may start.
package quota

import "context"

// Limiter decides whether the client identified by key may run another
// search now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Unlimited lets every search through.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) {
	return true, nil
}
