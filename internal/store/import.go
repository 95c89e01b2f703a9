package store

import (
	"encoding/json"
	"io"

	"github.com/rmaffei/rotafoto/internal/errors"
	"github.com/rmaffei/rotafoto/internal/logging"
	"github.com/rmaffei/rotafoto/internal/models"
)

// Import bulk-replaces the store from a backup JSON array. On a
// malformed payload the store is left untouched. Imported indices are
// kept verbatim when they already form a dense 0..N-1 range; duplicate
// or sparse indices are repaired to positional order so later Update
// and Remove calls cannot target the wrong record.
func (s *Store) Import(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, errors.Wrap(errors.ErrImportFailed, "reading backup", err)
	}

	var recs []*models.PhotoRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return 0, errors.Wrap(errors.ErrImportFailed, "parsing backup", err)
	}

	if !denseIndices(recs) {
		logging.Warn("backup indices are not dense, reindexing in file order", map[string]interface{}{
			"records": len(recs),
		})
		for i, rec := range recs {
			rec.Index = i
		}
	}

	s.ReplaceAll(recs)
	return len(recs), nil
}

// denseIndices reports whether every index in 0..N-1 appears exactly
// once.
func denseIndices(recs []*models.PhotoRecord) bool {
	seen := make([]bool, len(recs))
	for _, rec := range recs {
		if rec.Index < 0 || rec.Index >= len(recs) || seen[rec.Index] {
			return false
		}
		seen[rec.Index] = true
	}
	return true
}
