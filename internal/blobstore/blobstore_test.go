package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data      map[string][]byte
	saveErr   error
	saveCalls int
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string][]byte{}} }

func (f *fakeStore) Save(ctx context.Context, id string, data []byte) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.data[id] = data
	return nil
}

func (f *fakeStore) Load(ctx context.Context, id string) ([]byte, error) {
	d, ok := f.data[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	delete(f.data, id)
	return nil
}

func TestLocalStore_SaveLoadDelete(t *testing.T) {
	s := NewLocal(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "ev-1", []byte("jpg")))
	data, err := s.Load(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpg"), data)

	require.NoError(t, s.Delete(ctx, "ev-1"))
	_, err = s.Load(ctx, "ev-1")
	assert.Error(t, err)
}

func TestLocalStore_DeleteMissingIsNotAnError(t *testing.T) {
	s := NewLocal(t.TempDir())
	assert.NoError(t, s.Delete(context.Background(), "never-existed"))
}

func TestMirroredStore_SaveFailsIfPrimaryFails(t *testing.T) {
	primary := newFakeStore()
	primary.saveErr = errors.New("disk full")
	secondary := newFakeStore()
	m := &MirroredStore{Primary: primary, Secondary: secondary}

	err := m.Save(context.Background(), "ev-1", []byte("jpg"))
	assert.Error(t, err)
	assert.Equal(t, 0, secondary.saveCalls, "the secondary must never be attempted once the primary fails")
}

func TestMirroredStore_SecondaryFailureDoesNotFailSave(t *testing.T) {
	primary := newFakeStore()
	secondary := newFakeStore()
	secondary.saveErr = errors.New("bucket unreachable")
	m := &MirroredStore{Primary: primary, Secondary: secondary}

	err := m.Save(context.Background(), "ev-1", []byte("jpg"))
	require.NoError(t, err)
	assert.Contains(t, primary.data, "ev-1")
}

func TestMirroredStore_NilSecondaryIsFine(t *testing.T) {
	primary := newFakeStore()
	m := &MirroredStore{Primary: primary}

	require.NoError(t, m.Save(context.Background(), "ev-1", []byte("jpg")))
	require.NoError(t, m.Delete(context.Background(), "ev-1"))
}

func TestMirroredStore_LoadReadsFromPrimaryOnly(t *testing.T) {
	primary := newFakeStore()
	primary.data["ev-1"] = []byte("from-primary")
	secondary := newFakeStore()
	secondary.data["ev-1"] = []byte("from-secondary")
	m := &MirroredStore{Primary: primary, Secondary: secondary}

	data, err := m.Load(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-primary"), data)
}
