package executor

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

// fakeStore is an in-memory blobstore.Client with per-key failure
// injection for Put and Delete.
type fakeStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	metadata    map[string]map[string]string
	failPuts    map[string]error
	failDeletes map[string]error
	putCalls    []string
	deleteCalls []string

	// putStarted, when set, runs at the top of every Put.
	putStarted func(key string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:     map[string][]byte{},
		metadata:    map[string]map[string]string{},
		failPuts:    map[string]error{},
		failDeletes: map[string]error{},
	}
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

func (s *fakeStore) Put(ctx context.Context, req *blobstore.PutRequest) error {
	if s.putStarted != nil {
		s.putStarted(req.Key)
	}
	s.mu.Lock()
	err := s.failPuts[req.Key]
	s.putCalls = append(s.putCalls, req.Key)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	data, rerr := io.ReadAll(req.Body)
	if rerr != nil {
		return rerr
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
	s.deleteCalls = append(s.deleteCalls, key)
	if err := s.failDeletes[key]; err != nil {
		return err
	}
	delete(s.objects, key)
	delete(s.metadata, key)
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
				LastModified: time.Now(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
