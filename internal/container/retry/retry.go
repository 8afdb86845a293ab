// Package retry wraps a container store and retries failed reads with an
// exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/fdl66/chongshan/internal/container"
	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"

	"github.com/cenkalti/backoff/v4"
)

// Store retries operations on the wrapped store in case of an error.
type Store struct {
	dedup.ContainerStore
	MaxElapsedTime time.Duration
	MaxRetries     uint64
	Report         func(string, error, time.Duration)
	Success        func(string, int)
}

// statically ensure that Store implements dedup.ContainerStore.
var _ dedup.ContainerStore = &Store{}

// New wraps s. report is called with a description and the error for every
// failed attempt; success is called with the number of retries before an
// operation succeeded after failing at least once.
func New(s dedup.ContainerStore, maxElapsedTime time.Duration, report func(string, error, time.Duration), success func(string, int)) *Store {
	return &Store{
		ContainerStore: s,
		MaxElapsedTime: maxElapsedTime,
		MaxRetries:     10,
		Report:         report,
		Success:        success,
	}
}

// IsPermanentError reports whether retrying err is pointless.
func IsPermanentError(err error) bool {
	return container.IsNotFound(err) || container.IsShortRead(err) || errors.IsConsistency(err)
}

var fastRetries = false

func (s *Store) retry(ctx context.Context, msg string, f func() error) error {
	// a canceled context never reaches the store
	if ctx.Err() != nil {
		return ctx.Err()
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.MaxElapsedTime
	if fastRetries {
		bo.InitialInterval = 1 * time.Millisecond
		bo.MaxInterval = 5 * time.Millisecond
	}

	retries := 0
	err := backoff.RetryNotify(
		func() error {
			err := f()
			if err != nil {
				retries++
				if IsPermanentError(err) || ctx.Err() != nil {
					return backoff.Permanent(err)
				}
				return err
			}
			if retries > 0 && s.Success != nil {
				s.Success(msg, retries)
			}
			return nil
		},
		backoff.WithContext(backoff.WithMaxRetries(bo, s.MaxRetries), ctx),
		func(err error, d time.Duration) {
			debug.Log("%v failed, retrying in %v: %v", msg, d, err)
			if s.Report != nil {
				s.Report(msg, err, d)
			}
		},
	)

	var perr *backoff.PermanentError
	if errors.As(err, &perr) {
		err = perr.Err
	}
	return err
}

// FetchContainer loads the container id.
func (s *Store) FetchContainer(ctx context.Context, id dedup.ContainerID) (con *dedup.Container, err error) {
	err = s.retry(ctx, fmt.Sprintf("FetchContainer(%v)", id), func() error {
		con, err = s.ContainerStore.FetchContainer(ctx, id)
		return err
	})
	return con, err
}

// FetchContainerMeta loads the metadata of container id.
func (s *Store) FetchContainerMeta(ctx context.Context, id dedup.ContainerID) (meta *dedup.ContainerMeta, err error) {
	err = s.retry(ctx, fmt.Sprintf("FetchContainerMeta(%v)", id), func() error {
		meta, err = s.ContainerStore.FetchContainerMeta(ctx, id)
		return err
	})
	return meta, err
}

// ReadRange reads a range of the data section of container id.
func (s *Store) ReadRange(ctx context.Context, id dedup.ContainerID, offset int64, buf []byte) error {
	return s.retry(ctx, fmt.Sprintf("ReadRange(%v, %d, %d)", id, offset, len(buf)), func() error {
		return s.ContainerStore.ReadRange(ctx, id, offset, buf)
	})
}

// Unwrap returns the wrapped store.
func (s *Store) Unwrap() dedup.ContainerStore {
	return s.ContainerStore
}
