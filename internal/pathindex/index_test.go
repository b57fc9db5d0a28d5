package pathindex

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicInsert(t *testing.T) {
	idx := New()

	res, err := idx.Insert(`C:\test\file.txt`)
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)
	assert.Equal(t, 1, idx.Len())

	res, err = idx.Insert(`C:\test\file.txt`)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, res)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, int64(1), idx.Stats().Duplicates)

	results := idx.Search("file")
	require.Len(t, results, 1)
	assert.Equal(t, `C:\test\file.txt`, results[0])
}

func TestExtensionSearch(t *testing.T) {
	idx := New()
	mustInsert(t, idx, `C:\test\doc.pdf`)
	mustInsert(t, idx, `C:\test\notes.txt`)

	results := idx.Search(".pdf")
	require.Len(t, results, 1)
	assert.Equal(t, `C:\test\doc.pdf`, results[0])
}

func TestSubstringSearch(t *testing.T) {
	idx := New()
	mustInsert(t, idx, `C:\test\budget_2024.xlsx`)
	mustInsert(t, idx, `C:\test\budget_report.pdf`)
	mustInsert(t, idx, `C:\test\invoice.pdf`)

	results := idx.Search("budget")
	require.Len(t, results, 2)
	assert.Equal(t, `C:\test\budget_2024.xlsx`, results[0])
	assert.Equal(t, `C:\test\budget_report.pdf`, results[1])
}

func TestCompoundExtension(t *testing.T) {
	idx := New()
	mustInsert(t, idx, `C:\test\archive.tar.gz`)

	results := idx.Search(".tar.gz")
	require.Len(t, results, 1)
	assert.Equal(t, `C:\test\archive.tar.gz`, results[0])

	results = idx.Search(".gz")
	require.Len(t, results, 1)
	assert.Equal(t, `C:\test\archive.tar.gz`, results[0])
}

func TestPersistRoundtripShape(t *testing.T) {
	idx := New()
	var inserted []string
	for i := 0; i < 10; i++ {
		p := fmt.Sprintf(`C:\test\file_%d.txt`, i)
		mustInsert(t, idx, p)
		inserted = append(inserted, p)
	}

	snap := idx.Snapshot()
	reloaded := FromSnapshot(snap)
	reloaded.RebuildCache()

	for _, p := range inserted {
		base := p[len(`C:\test\`):]
		name := base[:len(base)-len(".txt")]
		results := reloaded.Search(name)
		assert.Contains(t, results, p)
	}
}

func TestClearResetsEverything(t *testing.T) {
	idx := New()
	mustInsert(t, idx, `C:\test\a.txt`)
	res, err := idx.Insert(`C:\test\a.txt`)
	require.NoError(t, err)
	require.Equal(t, Duplicate, res)
	idx.Search("a")

	idx.Clear()

	assert.Equal(t, 0, idx.Len())
	stats := idx.Stats()
	assert.Zero(t, stats.Insertions)
	assert.Zero(t, stats.Duplicates)
	assert.Zero(t, stats.Searches)
}

func TestEmptyQueryDoesNotCountAsSearch(t *testing.T) {
	idx := New()
	mustInsert(t, idx, `C:\test\a.txt`)

	results := idx.Search("   ")
	assert.Empty(t, results)
	assert.Zero(t, idx.Stats().Searches)

	idx.Search("a")
	assert.Equal(t, int64(1), idx.Stats().Searches)
}

func TestUnknownExtensionReturnsEmpty(t *testing.T) {
	idx := New()
	mustInsert(t, idx, `C:\test\a.txt`)

	assert.Empty(t, idx.Search(".nope"))
}

func TestExtensionlessPathAbsentFromExtensionIndex(t *testing.T) {
	idx := New()
	mustInsert(t, idx, `C:\test\README`)

	assert.Empty(t, idx.Search(".README"))
	assert.Contains(t, idx.Search("readme"), `C:\test\README`)
}

func TestRemoveTombstonesWithoutCompaction(t *testing.T) {
	idx := New()
	mustInsert(t, idx, `C:\test\a.txt`)
	mustInsert(t, idx, `C:\test\b.txt`)

	require.Equal(t, Removed, idx.Remove(`C:\test\a.txt`))
	require.Equal(t, NotPresent, idx.Remove(`C:\test\a.txt`))

	// Pool length is unchanged — no compaction happens on remove.
	assert.Equal(t, 2, idx.Len())

	results := idx.Search("a")
	assert.NotContains(t, results, `C:\test\a.txt`)

	results = idx.Search("b")
	assert.Contains(t, results, `C:\test\b.txt`)
}

func TestInsertAtCapacityBoundary(t *testing.T) {
	idx := &Index{
		filenameIndex:  make(map[string][]uint32),
		extensionIndex: make(map[string][]uint32),
		seenPaths:      make(map[string]struct{}),
	}
	// Cheat the pool up to one below capacity without MaxEntries inserts.
	idx.pool = make([]string, MaxEntries-1)

	res, err := idx.Insert(`C:\test\last.txt`)
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)
	assert.Equal(t, MaxEntries, idx.Len())

	_, err = idx.Insert(`C:\test\overflow.txt`)
	assert.True(t, errors.Is(err, ErrFull))
	assert.Equal(t, MaxEntries, idx.Len())
}

func TestInvalidPathRejected(t *testing.T) {
	idx := New()
	_, err := idx.Insert(`/`)
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestParallelSubstringSearchMatchesSequential(t *testing.T) {
	idx := New()
	for i := 0; i < parallelSearchThreshold+500; i++ {
		mustInsert(t, idx, fmt.Sprintf(`C:\bulk\item_%05d.dat`, i))
	}
	mustInsert(t, idx, `C:\bulk\special_target.dat`)

	results := idx.Search("special_target")
	require.Len(t, results, 1)
	assert.Equal(t, `C:\bulk\special_target.dat`, results[0])
}

func mustInsert(t *testing.T, idx *Index, path string) {
	t.Helper()
	res, err := idx.Insert(path)
	require.NoError(t, err)
	require.Equal(t, Inserted, res)
}
