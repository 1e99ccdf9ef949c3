package requests

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Mutation describes one optimistic state change. Apply runs immediately,
// Persist confirms it against the backend, Revert undoes Apply when Persist
// fails. Key identifies one specific action, not just its target; concurrent
// triggers of the same action share a key and collapse into a single attempt,
// while distinct actions must carry distinct keys so both persist. Result,
// when set, produces the value handed to every collapsed trigger after a
// successful persist.
type Mutation struct {
	Key     string
	Apply   func()
	Revert  func()
	Persist func(ctx context.Context) error
	Result  func() any
}

// Mutator runs optimistic mutations. Zero value is ready to use.
type Mutator struct {
	group singleflight.Group
}

// Do applies the mutation locally, persists it, and rolls back on failure.
// The returned error is classified per the package taxonomy; a conflict means
// the local state has already been restored to its pre-mutation value.
// Duplicate triggers for the same Key while a persist is settling join the
// in-flight attempt instead of applying a second change, and all of them
// observe the winning attempt's Result value.
func (m *Mutator) Do(ctx context.Context, mut Mutation) (any, error) {
	if mut.Persist == nil {
		return nil, fmt.Errorf("%w: mutation without persist", ErrValidation)
	}
	key := mut.Key
	if key == "" {
		key = "mutation"
	}
	value, err, _ := m.group.Do(key, func() (any, error) {
		if mut.Apply != nil {
			mut.Apply()
		}
		if err := mut.Persist(ctx); err != nil {
			if mut.Revert != nil {
				mut.Revert()
			}
			return nil, Classify(err)
		}
		if mut.Result != nil {
			return mut.Result(), nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
