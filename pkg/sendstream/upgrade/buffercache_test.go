package upgrade_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"sync"
	"testing"

	"stratum/pkg/sendstream/upgrade"
)

// TestBufferCache_AtMostOnceDelivery runs a single prefetcher against many
// concurrent consumers each reading a disjoint byte range, and checks that
// the union of everything read reconstructs the source exactly once per
// byte (invariant 6: buffer cache at-most-once).
func TestBufferCache_AtMostOnceDelivery(t *testing.T) {
	const bufferSize = 16
	const maxBuffers = 8
	const streamLen = bufferSize * 40

	src := make([]byte, streamLen)
	if _, err := rand.Read(src); err != nil {
		t.Fatalf("rand.Read() error = %v", err)
	}

	cache := upgrade.NewReadOnceBufferCache(bufferSize, maxBuffers)

	const regionSize = bufferSize * 4
	numRegions := streamLen / regionSize
	got := make([][]byte, numRegions)

	var wg sync.WaitGroup
	errs := make([]error, numRegions)
	for i := 0; i < numRegions; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := upgrade.NewConsumer(cache, int64(i*regionSize))
			buf := make([]byte, regionSize)
			_, err := c.ReadExact(buf)
			got[i] = buf
			errs[i] = err
		}()
	}

	if err := upgrade.Prefetch(cache, bytes.NewReader(src)); err != nil {
		t.Fatalf("Prefetch() error = %v", err)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("consumer %d ReadExact() error = %v", i, err)
		}
	}

	reassembled := make([]byte, 0, streamLen)
	for _, region := range got {
		reassembled = append(reassembled, region...)
	}
	if !bytes.Equal(reassembled, src) {
		t.Errorf("reassembled stream does not match source: every byte must be delivered exactly once")
	}
	if cache.State() != upgrade.Done {
		t.Errorf("cache.State() = %v, want Done", cache.State())
	}
}

func TestBufferCache_AbortUnblocksWaitingConsumer(t *testing.T) {
	cache := upgrade.NewReadOnceBufferCache(16, 2)

	errCh := make(chan error, 1)
	go func() {
		c := upgrade.NewConsumer(cache, 0)
		_, err := c.ReadExact(make([]byte, 16))
		errCh <- err
	}()

	cache.Halt(true)

	if err := <-errCh; err != upgrade.ErrAborted {
		t.Errorf("ReadExact() error = %v, want ErrAborted", err)
	}
}

func TestRunPrefetchAndConsume_PropagatesConsumerError(t *testing.T) {
	cache := upgrade.NewReadOnceBufferCache(16, 2)
	src := bytes.NewReader(make([]byte, 256))

	wantErr := context.Canceled
	err := upgrade.RunPrefetchAndConsume(context.Background(), cache, src, []func(*upgrade.Consumer) error{
		func(c *upgrade.Consumer) error {
			return wantErr
		},
	})
	if err != wantErr {
		t.Errorf("RunPrefetchAndConsume() error = %v, want %v", err, wantErr)
	}
}
