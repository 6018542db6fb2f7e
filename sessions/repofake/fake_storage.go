package repofake

import (
	"sync"

	"github.com/jrsteele09/go-console-session/sessions"
)

var _ sessions.Storage = (*FakeStorage)(nil)

// FakeStorage is an in-memory Storage. It is also the "memory" backend
// for sessions that do not need to survive a restart.
type FakeStorage struct {
	values  map[string]string
	failSet error
	lock    sync.RWMutex
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		values: make(map[string]string),
	}
}

func (fs *FakeStorage) Get(key string) (string, bool, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	value, ok := fs.values[key]
	return value, ok, nil
}

func (fs *FakeStorage) Set(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.failSet != nil {
		return fs.failSet
	}
	fs.values[key] = value
	return nil
}

func (fs *FakeStorage) Delete(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	delete(fs.values, key)
	return nil
}

// Keys returns a copy of the stored values
func (fs *FakeStorage) Keys() map[string]string {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	values := make(map[string]string, len(fs.values))
	for k, v := range fs.values {
		values[k] = v
	}
	return values
}

// FailSets makes every Set return err until called again with nil
func (fs *FakeStorage) FailSets(err error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.failSet = err
}
