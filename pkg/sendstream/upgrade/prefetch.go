package upgrade

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

// Prefetch runs the cache's single prefetcher loop: claim the next index,
// read one buffer's worth from src, insert it, repeat until src is
// exhausted. On a short final read it inserts the partial buffer and
// halts the cache with Done; on any other read error it halts with
// Aborted and returns the error.
func Prefetch(cache *ReadOnceBufferCache, src io.Reader) error {
	buf := make([]byte, cache.bufferSize)
	for {
		index, ok := cache.ClaimNext()
		if !ok {
			return nil
		}
		n, err := io.ReadFull(src, buf)
		switch {
		case err == nil:
			data := make([]byte, n)
			copy(data, buf[:n])
			cache.Insert(index, data)
		case err == io.ErrUnexpectedEOF || err == io.EOF:
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				cache.Insert(index, data)
			}
			cache.Halt(false)
			return nil
		default:
			cache.Halt(true)
			return err
		}
	}
}

// Consumer reads a disjoint byte range out of the cache through
// sequential ReadExact calls, tracking its own cursor across (bufferSize,
// index) boundaries.
type Consumer struct {
	cache  *ReadOnceBufferCache
	cursor int64 // absolute byte offset into the stream
}

// NewConsumer creates a Consumer starting at absolute byte offset start.
func NewConsumer(cache *ReadOnceBufferCache, start int64) *Consumer {
	return &Consumer{cache: cache, cursor: start}
}

// ReadExact fills dst completely from the cache, advancing the consumer's
// cursor, or returns an error (including ErrAborted or io.EOF-equivalent
// zero read on Done) if it cannot.
func (c *Consumer) ReadExact(dst []byte) (int, error) {
	total := 0
	for total < len(dst) {
		index := int(c.cursor) / c.cache.bufferSize
		within := int(c.cursor) % c.cache.bufferSize
		want := dst[total:]
		if max := c.cache.bufferSize - within; len(want) > max {
			want = want[:max]
		}
		n, err := c.cache.ReadExact(index, within, want)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
		c.cache.MarkConsumed(index, n)
		c.cursor += int64(n)
		total += n
	}
	return total, nil
}

// RunPrefetchAndConsume supervises one prefetcher goroutine reading from
// src into cache and the given consumer functions running concurrently
// against it, using errgroup so the first failure (from the prefetcher or
// any consumer) cancels the group and aborts the cache.
func RunPrefetchAndConsume(ctx context.Context, cache *ReadOnceBufferCache, src io.Reader, consumers []func(*Consumer) error) error {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		return Prefetch(cache, src)
	})
	for _, fn := range consumers {
		fn := fn
		g.Go(func() error {
			if err := fn(NewConsumer(cache, 0)); err != nil {
				cache.Halt(true)
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		cache.Halt(true)
	}
	return err
}
