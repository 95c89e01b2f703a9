// Package extract turns photo files into metadata records: EXIF GPS
// tags, file attributes and workflow defaults.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"

	"github.com/rmaffei/rotafoto/internal/errors"
	"github.com/rmaffei/rotafoto/internal/geo"
	"github.com/rmaffei/rotafoto/internal/logging"
	"github.com/rmaffei/rotafoto/internal/media"
	"github.com/rmaffei/rotafoto/internal/models"
)

func init() {
	// Maker note parsers improve GPS coverage for common cameras.
	exif.RegisterParsers(mknote.All...)
}

// defaultPredictionDays is how many business days a fresh record gets
// before its prediction date.
const defaultPredictionDays = 7

// timeNow is swapped in tests.
var timeNow = time.Now

// Extract reads one photo file and assembles a complete record.
// Missing or malformed GPS data never fails the operation: the record
// is produced with an absent coordinate. Only an unreadable file is an
// error, and even then Batch absorbs it into a stub record.
func Extract(path string, index int) (*models.PhotoRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrExtractFailed, "reading file", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrExtractFailed, "reading file attributes", err)
	}

	rec := newRecord(filepath.Base(path), index, int64(len(data)), info.ModTime())
	rec.FileType = mimetype.Detect(data).String()
	rec.Coordinate = gpsCoordinate(data, path)

	// The capture-time thumbnail is the full-resolution image; exporters
	// shrink it per target. Files Go cannot decode (e.g. HEIC) keep their
	// record but carry no preview.
	if _, _, err := media.Dimensions(data); err == nil {
		rec.Thumbnail = media.EncodeDataURI(data, rec.FileType)
	} else {
		logging.Warn("no preview for undecodable image", map[string]interface{}{
			"file": path,
			"mime": rec.FileType,
		})
	}

	return rec, nil
}

// newRecord fills the workflow defaults shared by every new record.
func newRecord(name string, index int, sizeBytes int64, modTime time.Time) *models.PhotoRecord {
	return &models.PhotoRecord{
		Index:          index,
		Name:           name,
		Status:         models.StatusPending,
		Description:    "",
		FileSize:       fmt.Sprintf("%.2f KB", float64(sizeBytes)/1024),
		Date:           modTime.Format(models.DateLayout),
		PredictionDate: AddBusinessDays(timeNow(), defaultPredictionDays).Format(models.PredictionDateLayout),
	}
}

// gpsCoordinate pulls the GPS tags out of the EXIF block, converting
// the degrees/minutes/seconds rationals through the coordinate engine.
// Any failure along the way yields an absent coordinate.
func gpsCoordinate(data []byte, path string) models.Coordinate {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		logging.Debug("EXIF decode failed", map[string]interface{}{
			"file":  path,
			"cause": err.Error(),
		})
		return models.Coordinate{}
	}

	lat, okLat := dmsTag(x, exif.GPSLatitude, exif.GPSLatitudeRef, "S")
	lon, okLon := dmsTag(x, exif.GPSLongitude, exif.GPSLongitudeRef, "W")
	if okLat && okLon {
		return models.NewCoordinate(lat, lon)
	}

	// Some maker notes store coordinates in non-standard fields that
	// goexif resolves itself; fall back to its combined lookup.
	if la, lo, err := x.LatLong(); err == nil {
		return models.NewCoordinate(la, lo)
	}
	return models.Coordinate{}
}

// dmsTag reads one coordinate leg as a DMS triple plus hemisphere ref.
func dmsTag(x *exif.Exif, field, refField exif.FieldName, negativeRef string) (float64, bool) {
	tag, err := x.Get(field)
	if err != nil {
		return 0, false
	}
	var dms [3]float64
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return 0, false
		}
		dms[i] = float64(num) / float64(den)
	}

	ref := ""
	if refTag, err := x.Get(refField); err == nil {
		ref, _ = refTag.StringVal()
	}

	return geo.DMSToDecimal(dms[0], dms[1], dms[2], ref == negativeRef), true
}

// AddBusinessDays walks forward one calendar day at a time, counting
// only days that are not Saturday or Sunday.
func AddBusinessDays(t time.Time, days int) time.Time {
	current := t
	for days > 0 {
		current = current.AddDate(0, 0, 1)
		if wd := current.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days--
		}
	}
	return current
}
