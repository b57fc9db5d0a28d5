package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashfind/flashfind/internal/pathindex"
)

func TestLoadMissingFileYieldsEmptyIndex(t *testing.T) {
	dir := t.TempDir()

	idx, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()

	idx := pathindex.New()
	var paths []string
	for i := 0; i < 10; i++ {
		p := fmt.Sprintf(`C:\test\file_%d.txt`, i)
		_, err := idx.Insert(p)
		require.NoError(t, err)
		paths = append(paths, p)
	}

	require.NoError(t, Save(dir, idx))

	reloaded, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, idx.Snapshot(), reloaded.Snapshot())

	for _, p := range paths {
		results := reloaded.Search(".txt")
		assert.Contains(t, results, p)
	}
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	idx := pathindex.New()
	_, _ = idx.Insert(`C:\test\a.txt`)

	require.NoError(t, Save(dir, idx))

	// No leftover temp file after a successful save.
	_, err := os.Stat(filepath.Join(dir, IndexFileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadVersionMismatch(t *testing.T) {
	dir := t.TempDir()

	snap := pathindex.Snapshot{
		Version:        pathindex.Version + 1,
		Pool:           []string{`C:\test\a.txt`},
		FilenameIndex:  map[string][]uint32{"a.txt": {0}},
		ExtensionIndex: map[string][]uint32{"txt": {0}},
	}
	data, err := cbor.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), data, 0o644))

	idx, err := Load(dir)
	require.Error(t, err)
	var mismatch *ErrVersionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, pathindex.Version+1, mismatch.Found)
	assert.Equal(t, 0, idx.Len())
}

func TestLoadCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFileName), []byte("not cbor"), 0o644))

	idx, err := Load(dir)
	require.Error(t, err)
	var corrupted *ErrCorrupted
	require.ErrorAs(t, err, &corrupted)
	assert.Equal(t, 0, idx.Len())
}
