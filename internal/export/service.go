// Package export implements the five-format export pipeline: backup
// JSON, spreadsheet, word-processor document, printable report and
// geospatial package. Every exporter reads the store's sorted view,
// builds the whole artifact in memory and writes it in one atomic
// rename, so no half-written file is ever left behind.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rmaffei/rotafoto/internal/errors"
	"github.com/rmaffei/rotafoto/internal/logging"
	"github.com/rmaffei/rotafoto/internal/models"
	"github.com/rmaffei/rotafoto/internal/store"
)

// Thumbnail bounds per target format.
const (
	docMaxWidth  = 300
	docMaxHeight = 200

	reportMaxWidth  = 800
	reportMaxHeight = 600
)

// timeNow is swapped in tests to pin artifact names.
var timeNow = time.Now

// Service runs exports against one record store.
type Service struct {
	store  *store.Store
	outDir string
}

// NewService creates an export service writing artifacts into outDir.
func NewService(s *store.Store, outDir string) *Service {
	return &Service{store: s, outDir: outDir}
}

// Result describes one generated artifact.
type Result struct {
	Path      string
	SizeBytes int64
	Count     int
	// Fallback is set when the requested format failed and a
	// same-content alternative was written instead (HTML for PDF).
	Fallback bool
}

// Format names accepted by Export and the CLI.
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
	FormatDOCX = "docx"
	FormatPDF  = "pdf"
	FormatKMZ  = "kmz"
)

// Formats lists every supported format in pipeline order.
func Formats() []string {
	return []string{FormatJSON, FormatXLSX, FormatDOCX, FormatPDF, FormatKMZ}
}

// Export runs one exporter by format name.
func (s *Service) Export(format string) (*Result, error) {
	switch format {
	case FormatJSON:
		return s.ExportJSON()
	case FormatXLSX:
		return s.ExportXLSX()
	case FormatDOCX:
		return s.ExportDOCX()
	case FormatPDF:
		return s.ExportReport()
	case FormatKMZ:
		return s.ExportKMZ()
	}
	return nil, errors.New(errors.ErrInvalid, fmt.Sprintf("unknown export format %q", format))
}

// ExportAll runs every exporter, carrying on past per-format failures.
// The map holds one result per successful format; the error aggregates
// the failures, if any.
func (s *Service) ExportAll() (map[string]*Result, error) {
	results := make(map[string]*Result)
	var failed []string
	for _, format := range Formats() {
		res, err := s.Export(format)
		if err != nil {
			logging.Error("export failed", err, map[string]interface{}{"format": format})
			failed = append(failed, format)
			continue
		}
		results[format] = res
	}
	if len(failed) > 0 {
		return results, errors.New(errors.ErrExportFailed,
			fmt.Sprintf("export failed for: %v", failed))
	}
	return results, nil
}

// sorted returns the records in export order.
func (s *Service) sorted() []*models.PhotoRecord {
	return s.store.SortedView()
}

// datedName builds the artifact filename with the current date suffix,
// e.g. relatorio_2025-06-10.kmz.
func datedName(prefix, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, timeNow().Format("2006-01-02"), ext)
}

// writeArtifact stages the artifact beside its final path and renames
// it into place, so a failed write never leaves a partial file under
// the artifact's name.
func (s *Service) writeArtifact(name string, data []byte, count int) (*Result, error) {
	if s.outDir != "" {
		if err := os.MkdirAll(s.outDir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrExportFailed, "creating output directory", err)
		}
	}
	target := filepath.Join(s.outDir, name)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "writing artifact", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return nil, errors.Wrap(errors.ErrExportFailed, "finalizing artifact", err)
	}

	logging.Info("artifact written", map[string]interface{}{
		"path":    target,
		"size":    humanize.IBytes(uint64(len(data))),
		"records": count,
	})
	return &Result{Path: target, SizeBytes: int64(len(data)), Count: count}, nil
}

// coordNumbers coerces the coordinate union to plain numbers for
// formats that require strict numeric columns: absent coordinates
// become 0.
func coordNumbers(c models.Coordinate) (lat, lon float64) {
	if !c.Valid {
		return 0, 0
	}
	return c.Lat, c.Lon
}

// gpsText renders the raw GPS pair for label/value blocks.
func gpsText(c models.Coordinate) string {
	if !c.Valid {
		return fmt.Sprintf("%s, %s", models.Unavailable, models.Unavailable)
	}
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lon)
}
