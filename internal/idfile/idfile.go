// Package idfile persists product identifier lists as append-only text
// files, one identifier per line, flushed batch by batch so that an
// interrupted run leaves every completed batch durably recorded.
package idfile

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/rkm/granulesync/internal/catalog"
)

// DestinationExistsError is returned when the destination already holds data
// and overwriting was not explicitly requested.
type DestinationExistsError struct {
	Path string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("destination %s already exists; pass overwrite to replace it", e.Path)
}

// WriteInBatches consumes the batch sequence and appends every identifier to
// path, one per line. The file is opened once; after each batch the file is
// synced before the next batch is requested, so a crash after batch k leaves
// exactly the first k batches on disk and never a partially counted batch.
//
// A pre-existing non-empty destination fails with *DestinationExistsError
// before anything is written, unless overwrite is set. The returned count is
// the number of identifiers durably flushed, even when a later batch fails.
func WriteInBatches(batches iter.Seq2[catalog.Batch, error], path string, overwrite bool) (int, error) {
	if !overwrite {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return 0, &DestinationExistsError{Path: path}
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open destination: %w", err)
	}
	defer f.Close()

	total := 0
	for batch, err := range batches {
		if err != nil {
			return total, fmt.Errorf("batch %d failed: %w", batch.Index, err)
		}

		w := bufio.NewWriter(f)
		for _, id := range batch.IDs {
			if _, err := fmt.Fprintln(w, id); err != nil {
				return total, fmt.Errorf("write batch %d: %w", batch.Index, err)
			}
		}
		if err := w.Flush(); err != nil {
			return total, fmt.Errorf("flush batch %d: %w", batch.Index, err)
		}
		// Durability barrier between batches.
		if err := f.Sync(); err != nil {
			return total, fmt.Errorf("sync batch %d: %w", batch.Index, err)
		}
		total += len(batch.IDs)
	}

	return total, nil
}

// Read loads identifiers from path, one per line, trimming surrounding
// whitespace and skipping blank lines.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identifier list: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			ids = append(ids, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read identifier list: %w", err)
	}

	return ids, nil
}
