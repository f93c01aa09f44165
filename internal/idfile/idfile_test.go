package idfile

import (
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkm/granulesync/internal/catalog"
)

func batchSeq(batches ...catalog.Batch) iter.Seq2[catalog.Batch, error] {
	return func(yield func(catalog.Batch, error) bool) {
		for _, b := range batches {
			if !yield(b, nil) {
				return
			}
		}
	}
}

func TestWriteInBatches_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")

	count, err := WriteInBatches(batchSeq(
		catalog.Batch{Index: 0, IDs: []string{"a", "b"}},
		catalog.Batch{Index: 1, IDs: []string{"c"}},
		catalog.Batch{Index: 2, IDs: []string{"d", "e"}},
	), path, false)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Read back line by line: concatenation of all batches in request order.
	ids, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestWriteInBatches_EmptyBatchesAllowed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")

	count, err := WriteInBatches(batchSeq(
		catalog.Batch{Index: 0, IDs: nil},
		catalog.Batch{Index: 1, IDs: []string{"a"}},
	), path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWriteInBatches_DestinationExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous-run-id\n"), 0o644))

	consumed := false
	batches := func(yield func(catalog.Batch, error) bool) {
		consumed = true
		yield(catalog.Batch{IDs: []string{"new"}}, nil)
	}

	_, err := WriteInBatches(batches, path, false)

	var exists *DestinationExistsError
	require.ErrorAs(t, err, &exists)
	assert.False(t, consumed, "no batch may be requested when the destination is refused")

	// Prior content must be untouched.
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "previous-run-id\n", string(data))
}

func TestWriteInBatches_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	count, err := WriteInBatches(batchSeq(catalog.Batch{IDs: []string{"new"}}), path, true)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ids, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids)
}

func TestWriteInBatches_FailedBatchKeepsEarlierOnes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")

	boom := errors.New("catalog gave up")
	batches := func(yield func(catalog.Batch, error) bool) {
		if !yield(catalog.Batch{Index: 0, IDs: []string{"a", "b"}}, nil) {
			return
		}
		yield(catalog.Batch{Index: 1}, boom)
	}

	count, err := WriteInBatches(batches, path, false)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, count, "count must reflect the batches actually flushed")

	ids, readErr := Read(path)
	require.NoError(t, readErr)
	assert.Equal(t, []string{"a", "b"}, ids, "completed batches must survive a later failure")
}

func TestRead_TrimsAndSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("  a  \n\nb\n   \nc\n"), 0o644))

	ids, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}
