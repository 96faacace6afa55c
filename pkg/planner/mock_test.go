package planner

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

// fakeStore is an in-memory blobstore.Client that records Head calls.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	metadata  map[string]map[string]string
	headCalls []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  map[string][]byte{},
		metadata: map[string]map[string]string{},
	}
}

func (s *fakeStore) put(key, content string, metadata map[string]string) {
	s.objects[key] = []byte(content)
	s.metadata[key] = metadata
}

func (s *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) Head(ctx context.Context, key string) (*blobstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headCalls = append(s.headCalls, key)
	data, ok := s.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return &blobstore.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		LastModified: time.Unix(1700000000, 0),
		Metadata:     s.metadata[key],
	}, nil
}

func (s *fakeStore) Put(ctx context.Context, req *blobstore.PutRequest) error {
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

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) List(ctx context.Context, prefix string) ([]blobstore.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []blobstore.Object
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, blobstore.Object{
				Key:          key,
				Size:         int64(len(data)),
				LastModified: time.Unix(1700000000, 0),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
