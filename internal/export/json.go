package export

import (
	"encoding/json"

	"github.com/rmaffei/rotafoto/internal/errors"
	"github.com/rmaffei/rotafoto/internal/logging"
	"github.com/rmaffei/rotafoto/internal/media"
)

// ExportJSON writes the backup file: every record, pretty-printed,
// with thumbnails shrunk to the document bound so the backup stays a
// reasonable size. A thumbnail that fails to resize is kept at full
// resolution rather than failing the backup.
func (s *Service) ExportJSON() (*Result, error) {
	records := s.sorted()

	out := make([]interface{}, 0, len(records))
	for _, rec := range records {
		clone := rec.Clone()
		if clone.Thumbnail != "" {
			resized, err := media.Resize(clone.Thumbnail, docMaxWidth, docMaxHeight)
			if err != nil {
				logging.Warn("keeping full-size thumbnail in backup", map[string]interface{}{
					"record": clone.Name,
					"cause":  err.Error(),
				})
			} else {
				clone.Thumbnail = resized
			}
		}
		out = append(out, clone)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "serializing backup", err)
	}

	return s.writeArtifact(datedName("backup", "json"), data, len(records))
}
