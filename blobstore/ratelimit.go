package blobstore

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedStore wraps a BlobStore and throttles write throughput.
// Shipping event files to shared object storage from many producers can
// saturate a link; the limiter spreads uploads out in bytes per second.
// Reads are not throttled.
type RateLimitedStore struct {
	inner   BlobStore
	limiter *rate.Limiter
}

// NewRateLimitedStore creates a store limited to bytesPerSec of upload
// throughput with the given burst size. burst must be at least the largest
// single Write the caller issues; it defaults to bytesPerSec when zero.
func NewRateLimitedStore(inner BlobStore, bytesPerSec float64, burst int) *RateLimitedStore {
	if burst <= 0 {
		burst = int(bytesPerSec)
	}
	return &RateLimitedStore{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}
}

func (s *RateLimitedStore) Open(ctx context.Context, name string) (Blob, error) {
	return s.inner.Open(ctx, name)
}

func (s *RateLimitedStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &rateLimitedBlob{inner: w, limiter: s.limiter, ctx: ctx}, nil
}

func (s *RateLimitedStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.waitN(ctx, len(data)); err != nil {
		return err
	}
	return s.inner.Put(ctx, name, data)
}

func (s *RateLimitedStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

func (s *RateLimitedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// waitN blocks until n bytes of budget are available, splitting requests
// larger than the burst size.
func (s *RateLimitedStore) waitN(ctx context.Context, n int) error {
	for n > 0 {
		chunk := n
		if chunk > s.limiter.Burst() {
			chunk = s.limiter.Burst()
		}
		if err := s.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

type rateLimitedBlob struct {
	inner   WritableBlob
	limiter *rate.Limiter
	ctx     context.Context
}

func (b *rateLimitedBlob) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		chunk := len(p) - written
		if chunk > b.limiter.Burst() {
			chunk = b.limiter.Burst()
		}
		if err := b.limiter.WaitN(b.ctx, chunk); err != nil {
			return written, err
		}
		n, err := b.inner.Write(p[written : written+chunk])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (b *rateLimitedBlob) Sync() error {
	return b.inner.Sync()
}

func (b *rateLimitedBlob) Close() error {
	return b.inner.Close()
}
