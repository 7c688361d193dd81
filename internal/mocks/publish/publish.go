// Package publish provides an in-memory publish.Uploader.
package publish

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

type Fake struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	inFlight int
	// MaxInFlight is the highest number of concurrent uploads seen.
	MaxInFlight int
	// Fail makes uploads of these keys fail.
	Fail map[string]bool
	// Delay is how long every upload takes.
	Delay time.Duration
}

func New() *Fake {
	return &Fake{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *Fake) Backend() string {
	return "fake"
}

func (f *Fake) Upload(ctx context.Context, key, filename, contentType string) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.MaxInFlight {
		f.MaxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.Fail[key] {
		return fmt.Errorf("access denied")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

// Keys returns the stored keys, sorted.
func (f *Fake) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *Fake) Object(key string) ([]byte, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key], f.types[key]
}
