package manifest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/baycat-io/baycat/pkg/blobstore"
)

// memStore is an in-memory blobstore.Client for store tests.
type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		objects:  map[string][]byte{},
		metadata: map[string]map[string]string{},
	}
}

func (s *memStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Head(ctx context.Context, key string) (*blobstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return &blobstore.ObjectInfo{
		Key:      key,
		Size:     int64(len(data)),
		Metadata: s.metadata[key],
	}, nil
}

func (s *memStore) Put(ctx context.Context, req *blobstore.PutRequest) error {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[req.Key] = data
	s.metadata[req.Key] = req.Metadata
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	delete(s.metadata, key)
	return nil
}

func (s *memStore) List(ctx context.Context, prefix string) ([]blobstore.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []blobstore.Object
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, blobstore.Object{
				Key:          key,
				Size:         int64(len(data)),
				LastModified: time.Now(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
