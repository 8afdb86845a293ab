// Package limiter wraps a container store and limits the bandwidth of the
// data it returns.
package limiter

import (
	"context"

	"github.com/fdl66/chongshan/internal/dedup"

	"golang.org/x/time/rate"
)

// Limits represents configured bandwidth limits in KiB/s.
type Limits struct {
	DownloadKb int
}

// LimitStore wraps s and delays every read until the token bucket allows the
// number of bytes returned. A zero download limit returns s unchanged.
func LimitStore(s dedup.ContainerStore, l Limits) dedup.ContainerStore {
	if l.DownloadKb <= 0 {
		return s
	}
	return &rateLimitedStore{
		ContainerStore: s,
		limiter:        rate.NewLimiter(rate.Limit(toByteRate(l.DownloadKb)), toByteRate(l.DownloadKb)),
	}
}

func toByteRate(val int) int {
	return val * 1024
}

type rateLimitedStore struct {
	dedup.ContainerStore
	limiter *rate.Limiter
}

// wait consumes n tokens, in portions no larger than the bucket.
func (r *rateLimitedStore) wait(ctx context.Context, n int) error {
	burst := r.limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := r.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

func (r *rateLimitedStore) FetchContainer(ctx context.Context, id dedup.ContainerID) (*dedup.Container, error) {
	con, err := r.ContainerStore.FetchContainer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.wait(ctx, len(con.Data)); err != nil {
		return nil, err
	}
	return con, nil
}

func (r *rateLimitedStore) ReadRange(ctx context.Context, id dedup.ContainerID, offset int64, buf []byte) error {
	if err := r.ContainerStore.ReadRange(ctx, id, offset, buf); err != nil {
		return err
	}
	return r.wait(ctx, len(buf))
}

func (r *rateLimitedStore) Unwrap() dedup.ContainerStore { return r.ContainerStore }
