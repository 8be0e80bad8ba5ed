package test

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"sync"

	lib "sagekit/lib/sagemaker"
)

// FakeStorage is an in-memory lib.ObjectStore keyed by "bucket/key".
type FakeStorage struct {
	lock    sync.Mutex
	Objects map[string][]byte
}

var _ lib.ObjectStore = (*FakeStorage)(nil)

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{Objects: map[string][]byte{}}
}

func (f *FakeStorage) Upload(_ context.Context, body io.Reader, bucket, key string) error {
	data, err := ioutil.ReadAll(body)
	if err != nil {
		return err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Objects[bucket+"/"+key] = data
	return nil
}

func (f *FakeStorage) Download(_ context.Context, bucket, key string) ([]byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	data, ok := f.Objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s/%s", bucket, key)
	}
	return data, nil
}

func (f *FakeStorage) Delete(_ context.Context, bucket, key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.Objects, bucket+"/"+key)
	return nil
}

// Keys returns every stored "bucket/key", sorted.
func (f *FakeStorage) Keys() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	keys := make([]string, 0, len(f.Objects))
	for k := range f.Objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
