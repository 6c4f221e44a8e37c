package avatar

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Observer receives load lifecycle signals. Methods are called from the
// loading goroutines and must be safe for concurrent use.
type Observer interface {
	LoadStarted(a *Avatar)
	LoadProgress(a *Avatar, loaded, total int64)
	LoadDone(a *Avatar)
	LoadFailed(a *Avatar, err error)
}

// NopObserver ignores every signal.
type NopObserver struct{}

func (NopObserver) LoadStarted(*Avatar)                {}
func (NopObserver) LoadProgress(*Avatar, int64, int64) {}
func (NopObserver) LoadDone(*Avatar)                   {}
func (NopObserver) LoadFailed(*Avatar, error)          {}

// LoadAll loads avatars concurrently, at most limit at a time (no limit when
// limit <= 0), and waits for every load to settle. A failed load never
// cancels the others. The returned slice holds each avatar's error at its
// index.
func LoadAll(ctx context.Context, avatars []*Avatar, obs Observer, limit int) []error {
	if obs == nil {
		obs = NopObserver{}
	}
	errs := make([]error, len(avatars))

	// A plain Group: a failing load must not cancel its siblings
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, a := range avatars {
		g.Go(func() error {
			obs.LoadStarted(a)
			err := a.LoadWithProgress(ctx, func(loaded, total int64) {
				obs.LoadProgress(a, loaded, total)
			})
			if err != nil {
				errs[i] = err
				obs.LoadFailed(a, err)
				return nil
			}
			obs.LoadDone(a)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
