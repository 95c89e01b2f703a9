package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/rmaffei/rotafoto/internal/errors"
	"github.com/rmaffei/rotafoto/internal/logging"
	"github.com/rmaffei/rotafoto/internal/media"
	"github.com/rmaffei/rotafoto/internal/models"
)

// kmlTemplate is the geospatial document: one style per status, one
// placemark per georeferenced record. Values are escaped before they
// reach the template, so it only handles layout.
const kmlTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Relatório de Pendências</name>
    <Style id="pendente">
      <IconStyle>
        <Icon><href>http://maps.google.com/mapfiles/kml/pushpin/ylw-pushpin.png</href></Icon>
      </IconStyle>
    </Style>
    <Style id="concluido">
      <IconStyle>
        <Icon><href>http://maps.google.com/mapfiles/kml/pushpin/grn-pushpin.png</href></Icon>
      </IconStyle>
    </Style>
    <Style id="atrasado">
      <IconStyle>
        <Icon><href>http://maps.google.com/mapfiles/kml/pushpin/red-pushpin.png</href></Icon>
      </IconStyle>
    </Style>
{{range .Placemarks}}    <Placemark>
      <name>{{.Name}}</name>
      <styleUrl>#{{.StyleID}}</styleUrl>
      <description><![CDATA[
        <div style="max-width:300px">
          <p><b>Status:</b> {{.Status}}</p>
          <p><b>Descrição:</b> {{.Description}}</p>
          <p><b>Data:</b> {{.Date}}</p>
{{if .ImagePath}}          <img src="{{.ImagePath}}" width="300" />
{{end}}        </div>
      ]]></description>
      <Point>
        <coordinates>{{.Lon}},{{.Lat}}</coordinates>
      </Point>
    </Placemark>
{{end}}  </Document>
</kml>
`

var (
	kmlOnce sync.Once
	kmlTmpl *template.Template
	kmlErr  error
)

func kmlTemplateReady() (*template.Template, error) {
	kmlOnce.Do(func() {
		kmlTmpl, kmlErr = template.New("kml").Parse(kmlTemplate)
	})
	return kmlTmpl, kmlErr
}

// kmlPlacemark is one record prepared for the KML document. All text
// fields are pre-escaped.
type kmlPlacemark struct {
	Name        string
	StyleID     string
	Status      string
	Description string
	Date        string
	ImagePath   string
	Lat         string
	Lon         string
}

// kmzImage is one photo carried inside the package.
type kmzImage struct {
	path string
	data []byte
}

// ExportKMZ writes the geospatial package: doc.kml plus the photos
// under images/, re-encoded as JPEG. Records without usable
// coordinates have no place on a map and are skipped; a thumbnail
// that cannot be decoded aborts the export.
func (s *Service) ExportKMZ() (*Result, error) {
	records := s.sorted()

	var placemarks []kmlPlacemark
	var images []kmzImage
	skipped := 0

	// Image names follow the record's position in the export order, so
	// the numbering matches what the other document formats show.
	for pos, rec := range records {
		if !rec.Coordinate.Valid {
			skipped++
			continue
		}

		pm := kmlPlacemark{
			Name:        EscapeMarkup(rec.Name),
			StyleID:     kmlStyleID(rec.Status),
			Status:      EscapeMarkup(string(rec.Status)),
			Description: EscapeMarkup(rec.Description),
			Date:        EscapeMarkup(rec.Date),
			Lat:         fmt.Sprintf("%.6f", rec.Coordinate.Lat),
			Lon:         fmt.Sprintf("%.6f", rec.Coordinate.Lon),
		}
		if pm.Description == "" {
			pm.Description = "Sem descrição"
		}

		if rec.Thumbnail != "" {
			raw, _, err := media.DecodeDataURI(rec.Thumbnail)
			if err != nil {
				return nil, errors.Wrap(errors.ErrExportFailed,
					fmt.Sprintf("decoding thumbnail of %q", rec.Name), err)
			}
			jpg, err := media.ToJPEG(raw)
			if err != nil {
				return nil, errors.Wrap(errors.ErrExportFailed,
					fmt.Sprintf("converting thumbnail of %q", rec.Name), err)
			}
			path := fmt.Sprintf("images/img_%d.jpg", pos)
			images = append(images, kmzImage{path: path, data: jpg})
			pm.ImagePath = path
		}

		placemarks = append(placemarks, pm)
	}

	if skipped > 0 {
		logging.Warn("records without coordinates left out of KMZ", map[string]interface{}{
			"skipped": skipped,
		})
	}

	tmpl, err := kmlTemplateReady()
	if err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "compiling KML template", err)
	}

	var kml bytes.Buffer
	data := struct{ Placemarks []kmlPlacemark }{Placemarks: placemarks}
	if err := tmpl.Execute(&kml, data); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "rendering KML", err)
	}

	packed, err := packKMZ(kml.Bytes(), images)
	if err != nil {
		return nil, err
	}
	return s.writeArtifact(datedName("relatorio", "kmz"), packed, len(placemarks))
}

func kmlStyleID(s models.Status) string {
	switch s {
	case models.StatusDone:
		return "concluido"
	case models.StatusOverdue:
		return "atrasado"
	}
	return "pendente"
}

// packKMZ assembles the zip container: doc.kml first, then the photos.
func packKMZ(kml []byte, images []kmzImage) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("doc.kml")
	if err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "creating doc.kml", err)
	}
	if _, err := w.Write(kml); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "writing doc.kml", err)
	}

	for _, img := range images {
		// Images are already JPEG-compressed, recompressing in the
		// archive only wastes time.
		hdr := &zip.FileHeader{Name: img.path, Method: zip.Store}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, errors.Wrap(errors.ErrExportFailed, "adding "+img.path, err)
		}
		if _, err := w.Write(img.data); err != nil {
			return nil, errors.Wrap(errors.ErrExportFailed, "writing "+img.path, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "closing package", err)
	}
	return buf.Bytes(), nil
}
