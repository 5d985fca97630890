// Package archive exports and imports score history as zstd-compressed JSONL.
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/verte-zerg/emgscore/internal/model"
	"github.com/verte-zerg/emgscore/internal/store"
)

// Extension is the file suffix of history archives.
const Extension = ".jsonl.zst"

const maxLineBytes = 10 * 1024 * 1024

// DefaultPath returns a timestamped archive path inside dir.
func DefaultPath(dir string, now time.Time) string {
	return filepath.Join(dir, "scores-"+now.UTC().Format("20060102-150405")+Extension)
}

// Export writes one JSON score per line to path, zstd-compressed.
func Export(path string, scores []model.StoredScore) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	dest, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := dest.Close(); cerr != nil {
			// Best-effort close; encoder errors are reported below.
			_ = cerr
		}
	}()

	encoder, err := zstd.NewWriter(dest)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	enc := json.NewEncoder(encoder)
	for _, s := range scores {
		if err := enc.Encode(s); err != nil {
			_ = encoder.Close()
			return fmt.Errorf("encode score %s: %w", s.ScoreID, err)
		}
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}
	return dest.Sync()
}

// Import reads every score from an archive written by Export. A malformed
// line fails the whole import.
func Import(path string) ([]model.StoredScore, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			// Best-effort close for read-only input.
			_ = cerr
		}
	}()

	decoder, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	var scores []model.StoredScore
	scanner := bufio.NewScanner(decoder)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var s model.StoredScore
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if s.ScoreID == "" {
			return nil, fmt.Errorf("line %d: missing score_id", lineNum)
		}
		scores = append(scores, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return scores, nil
}

// Restore imports an archive into the store. Scores whose ID is already
// stored are skipped.
func Restore(ctx context.Context, st *store.Store, path string) (added, skipped int, err error) {
	scores, err := Import(path)
	if err != nil {
		return 0, 0, err
	}
	for _, s := range scores {
		if _, err := st.InsertScore(ctx, s); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				skipped++
				continue
			}
			return added, skipped, err
		}
		added++
	}
	return added, skipped, nil
}
