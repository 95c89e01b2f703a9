package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/rmaffei/rotafoto/internal/errors"
	"github.com/rmaffei/rotafoto/internal/geo"
	"github.com/rmaffei/rotafoto/internal/media"
	"github.com/rmaffei/rotafoto/internal/models"
)

// emuPerPixel converts pixels to English Metric Units at 96 dpi.
const emuPerPixel = 9525

// docxImage is one embedded picture part.
type docxImage struct {
	relID             string
	name              string // part name under word/media/
	data              []byte
	widthPx, heightPx int
}

// ExportDOCX writes the word-processor report: one table, one row per
// record, image cell on the left and bold-label/value paragraphs on
// the right. The document is assembled as WordprocessingML parts in a
// zip container.
func (s *Service) ExportDOCX() (*Result, error) {
	records := s.sorted()

	var body strings.Builder
	var images []docxImage

	body.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/>` +
		`<w:tblBorders>` +
		`<w:top w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:left w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:right w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
		`</w:tblBorders></w:tblPr>`)

	for _, rec := range records {
		imageXML := "<w:p/>"
		if rec.Thumbnail != "" {
			img, err := s.docxThumbnail(rec, len(images)+1)
			if err != nil {
				return nil, err
			}
			images = append(images, img)
			imageXML = inlineImageXML(img)
		}

		body.WriteString(`<w:tr>`)
		body.WriteString(`<w:tc><w:tcPr><w:tcW w:w="2500" w:type="pct"/></w:tcPr>`)
		body.WriteString(imageXML)
		body.WriteString(`</w:tc>`)
		body.WriteString(`<w:tc><w:tcPr><w:tcW w:w="2500" w:type="pct"/></w:tcPr>`)
		for _, pair := range recordPairs(rec) {
			body.WriteString(labelValueXML(pair[0], pair[1]))
		}
		body.WriteString(`</w:tc></w:tr>`)
	}
	body.WriteString(`</w:tbl><w:p/>`)

	data, err := packDOCX(body.String(), images)
	if err != nil {
		return nil, err
	}
	return s.writeArtifact(datedName("relatorio", "docx"), data, len(records))
}

// docxThumbnail shrinks a record's thumbnail to the document bound and
// prepares its picture part. A record whose thumbnail cannot be
// decoded aborts the export, matching the all-or-nothing contract of
// the document formats.
func (s *Service) docxThumbnail(rec *models.PhotoRecord, n int) (docxImage, error) {
	raw, _, err := media.DecodeDataURI(rec.Thumbnail)
	if err != nil {
		return docxImage{}, errors.Wrap(errors.ErrExportFailed,
			fmt.Sprintf("decoding thumbnail of %q", rec.Name), err)
	}
	resized, mime, err := media.ResizeBytes(raw, docMaxWidth, docMaxHeight)
	if err != nil {
		return docxImage{}, errors.Wrap(errors.ErrExportFailed,
			fmt.Sprintf("resizing thumbnail of %q", rec.Name), err)
	}
	w, h, err := media.Dimensions(resized)
	if err != nil {
		return docxImage{}, errors.Wrap(errors.ErrExportFailed, "measuring thumbnail", err)
	}

	ext := "jpeg"
	if mime == "image/png" {
		ext = "png"
	} else if mime == "image/gif" {
		ext = "gif"
	}
	return docxImage{
		relID:    fmt.Sprintf("rIdImg%d", n),
		name:     fmt.Sprintf("image%d.%s", n, ext),
		data:     resized,
		widthPx:  w,
		heightPx: h,
	}, nil
}

// recordPairs builds the label/value lines of one record, shared by
// the DOCX and report exporters.
func recordPairs(rec *models.PhotoRecord) [][2]string {
	return [][2]string{
		{"Título:", rec.Name},
		{"Data/hora:", rec.Date},
		{"Status:", string(rec.Status)},
		{"Detalhes:", rec.Description},
		{"Coordenadas UTM:", geo.DisplayUTM(rec.Coordinate)},
		{"GPS:", gpsText(rec.Coordinate)},
		{"Previsão:", rec.PredictionDate},
	}
}

// labelValueXML renders one "label value" paragraph with a bold label.
func labelValueXML(label, value string) string {
	return fmt.Sprintf(`<w:p><w:r><w:rPr><w:b/></w:rPr>`+
		`<w:t xml:space="preserve">%s </w:t></w:r>`+
		`<w:r><w:t xml:space="preserve">%s</w:t></w:r></w:p>`,
		EscapeMarkup(label), EscapeMarkup(value))
}

// inlineImageXML renders the drawing element referencing an image part.
func inlineImageXML(img docxImage) string {
	cx := img.widthPx * emuPerPixel
	cy := img.heightPx * emuPerPixel
	return fmt.Sprintf(`<w:p><w:r><w:drawing>`+
		`<wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/>`+
		`<wp:docPr id="%d" name="%s"/>`+
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic>`+
		`<pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic>`+
		`</wp:inline></w:drawing></w:r></w:p>`,
		cx, cy, hashID(img.relID), img.name, hashID(img.relID), img.name, img.relID, cx, cy)
}

// hashID derives a stable numeric id for drawing elements.
func hashID(relID string) int {
	h := 0
	for _, c := range relID {
		h = h*31 + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h%100000 + 1
}

// packDOCX assembles the OPC container around the document body.
func packDOCX(bodyXML string, images []docxImage) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name, content string) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(content))
		return err
	}

	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Default Extension="png" ContentType="image/png"/>` +
		`<Default Extension="jpeg" ContentType="image/jpeg"/>` +
		`<Default Extension="gif" ContentType="image/gif"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`
	if err := write("[Content_Types].xml", contentTypes); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "writing content types", err)
	}

	rootRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
	if err := write("_rels/.rels", rootRels); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "writing package relationships", err)
	}

	var docRels strings.Builder
	docRels.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, img := range images {
		docRels.WriteString(fmt.Sprintf(
			`<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`,
			img.relID, img.name))
	}
	docRels.WriteString(`</Relationships>`)
	if err := write("word/_rels/document.xml.rels", docRels.String()); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "writing document relationships", err)
	}

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document` +
		` xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<w:body>` + bodyXML + `<w:sectPr/></w:body></w:document>`
	if err := write("word/document.xml", document); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "writing document body", err)
	}

	for _, img := range images {
		w, err := zw.Create("word/media/" + img.name)
		if err != nil {
			return nil, errors.Wrap(errors.ErrExportFailed, "adding image part", err)
		}
		if _, err := w.Write(img.data); err != nil {
			return nil, errors.Wrap(errors.ErrExportFailed, "writing image part", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "closing document container", err)
	}
	return buf.Bytes(), nil
}
