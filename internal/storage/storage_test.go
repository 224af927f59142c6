package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Paths []string         `json:"paths"`
	Count int              `json:"count"`
	Seen  map[string]int64 `json:"seen,omitempty"`
}

func TestPutAndGet(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx := context.Background()

	in := snapshot{Paths: []string{"/a", "/b"}, Count: 2}
	require.NoError(t, s.Put(ctx, []string{"permission", "gate"}, in))

	assert.FileExists(t, filepath.Join(dir, "permission", "gate.json"))
	assert.Equal(t, filepath.Join(dir, "permission", "gate.json"), s.FilePath([]string{"permission", "gate"}))
	assert.NoFileExists(t, filepath.Join(dir, "permission", "gate.json.tmp"))

	var out snapshot
	require.NoError(t, s.Get(ctx, []string{"permission", "gate"}, &out))
	assert.Equal(t, in, out)
}

func TestGetNotFound(t *testing.T) {
	s := New(t.TempDir())

	var out snapshot
	err := s.Get(context.Background(), []string{"missing"}, &out)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644))

	var out snapshot
	err := s.Get(context.Background(), []string{"bad"}, &out)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestUpdateCreatesAndModifies(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	key := []string{"counter"}

	var first snapshot
	require.NoError(t, s.Update(ctx, key, &first, func() error {
		first.Count++
		return nil
	}))

	var second snapshot
	require.NoError(t, s.Update(ctx, key, &second, func() error {
		assert.Equal(t, 1, second.Count)
		second.Count++
		return nil
	}))

	var out snapshot
	require.NoError(t, s.Get(ctx, key, &out))
	assert.Equal(t, 2, out.Count)
}

func TestUpdateAbortsOnError(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	key := []string{"aborted"}

	var v snapshot
	err := s.Update(ctx, key, &v, func() error { return errors.New("nope") })
	assert.EqualError(t, err, "nope")
	assert.False(t, s.Exists(ctx, key))
}

func TestConcurrentUpdates(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	key := []string{"concurrent"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var v snapshot
			assert.NoError(t, s.Update(ctx, key, &v, func() error {
				v.Count++
				return nil
			}))
		}()
	}
	wg.Wait()

	var out snapshot
	require.NoError(t, s.Get(ctx, key, &out))
	assert.Equal(t, 20, out.Count)
}

func TestDelete(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()
	key := []string{"gone"}

	require.NoError(t, s.Put(ctx, key, snapshot{Count: 1}))
	assert.True(t, s.Exists(ctx, key))

	require.NoError(t, s.Delete(ctx, key))
	assert.False(t, s.Exists(ctx, key))

	assert.NoError(t, s.Delete(ctx, key))
}
