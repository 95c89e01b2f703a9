package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/rmaffei/rotafoto/internal/errors"
	"github.com/rmaffei/rotafoto/internal/geo"
	"github.com/rmaffei/rotafoto/internal/logging"
	"github.com/rmaffei/rotafoto/internal/media"
	"github.com/rmaffei/rotafoto/internal/models"
)

// reportTemplate is the printable report layout: one bordered block
// per record, image on the left, details table on the right, sized for
// A4 print with page breaks kept outside the blocks.
const reportTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Relatório de Monitoramento</title>
  <style>
    body { font-family: Arial, Helvetica, sans-serif; font-size: 11pt; line-height: 1.3; margin: 0; padding: 15px; color: #000000; }
    h1 { font-size: 16pt; color: #110043; text-align: center; margin-bottom: 15px; }
    .report-date { text-align: center; font-size: 9pt; margin-bottom: 20px; color: #666666; }
    .item-container { margin-bottom: 20px; page-break-inside: avoid; border: 1px solid #dddddd; }
    .item-title { background-color: #f5f5f5; padding: 6px 10px; font-weight: bold; font-size: 12pt; border-bottom: 1px solid #dddddd; }
    .item-content { display: table; width: 100%; border-collapse: collapse; }
    .image-cell { display: table-cell; width: 50%; padding: 0; vertical-align: top; border-right: 1px solid #dddddd; }
    .image-cell img { width: 100%; display: block; }
    .details-cell { display: table-cell; width: 50%; vertical-align: top; padding: 0; }
    .details-table { width: 100%; border-collapse: collapse; }
    .details-table tr { border-bottom: 1px solid #eeeeee; }
    .details-table tr:last-child { border-bottom: none; }
    .details-table td { padding: 6px 10px; vertical-align: top; }
    .details-table td:first-child { width: 35%; font-weight: bold; background-color: #f9f9f9; border-right: 1px solid #eeeeee; }
    .status-pendente { color: #00bcd4; font-weight: bold; }
    .status-concluido { color: #4caf50; font-weight: bold; }
    .status-atrasado { color: #f44336; font-weight: bold; }
    @page { size: A4; margin: 1.5cm; }
    @media print { .item-container { page-break-inside: avoid; } }
  </style>
</head>
<body>
  <h1>Relatório de Monitoramento</h1>
  <div class="report-date">Gerado em: {{.GeneratedAt}}</div>
{{range .Items}}  <div class="item-container">
    <div class="item-title">{{.Number}}. {{.Name}}</div>
    <div class="item-content">
      <div class="image-cell">{{if .ImageSrc}}<img src="{{.ImageSrc}}" alt="{{.Name}}" />{{end}}</div>
      <div class="details-cell">
        <table class="details-table">
          <tr><td>Status:</td><td><span class="{{.StatusClass}}">{{.Status}}</span></td></tr>
          <tr><td>Data/hora:</td><td>{{.Date}}</td></tr>
          <tr><td>Descrição:</td><td>{{.Description}}</td></tr>
          <tr><td>Previsão:</td><td>{{.Prediction}}</td></tr>
          <tr><td>Coordenadas UTM:</td><td>{{.UTM}}</td></tr>
          <tr><td>GPS:</td><td>{{.GPS}}</td></tr>
          <tr><td>Tamanho:</td><td>{{.Size}}</td></tr>
        </table>
      </div>
    </div>
  </div>
{{end}}</body>
</html>
`

// Report templates are compiled on first use behind a single-flight
// guard: concurrent exporters share one compilation and its outcome,
// replacing the original's ad hoc load-script-if-missing checks.
var (
	reportOnce sync.Once
	reportTmpl *template.Template
	reportErr  error
)

func reportTemplateReady() (*template.Template, error) {
	reportOnce.Do(func() {
		reportTmpl, reportErr = template.New("report").Parse(reportTemplate)
	})
	return reportTmpl, reportErr
}

// reportItem is one record prepared for the report layout.
type reportItem struct {
	Number      int
	Name        string
	ImageSrc    template.URL
	ImageData   []byte
	ImageMIME   string
	StatusClass string
	Status      string
	Date        string
	Description string
	Prediction  string
	UTM         string
	GPS         string
	Size        string
}

// ExportReport produces the printable report. The PDF is rendered
// directly; if rendering fails the same content is written as a
// print-ready HTML file instead and the result is flagged as a
// fallback, so the user always gets a report to print.
func (s *Service) ExportReport() (*Result, error) {
	items, err := s.reportItems()
	if err != nil {
		return nil, err
	}

	pdfData, err := renderPDF(items)
	if err == nil {
		return s.writeArtifact(datedName("relatorio", "pdf"), pdfData, len(items))
	}

	logging.Warn("PDF rendering failed, falling back to HTML", map[string]interface{}{
		"cause": err.Error(),
	})
	res, htmlErr := s.exportHTML(items)
	if htmlErr != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "report export (PDF and HTML both failed)", htmlErr)
	}
	res.Fallback = true
	return res, nil
}

// ExportHTML writes the print-ready HTML report directly.
func (s *Service) ExportHTML() (*Result, error) {
	items, err := s.reportItems()
	if err != nil {
		return nil, err
	}
	return s.exportHTML(items)
}

func (s *Service) exportHTML(items []reportItem) (*Result, error) {
	tmpl, err := reportTemplateReady()
	if err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "compiling report template", err)
	}

	var buf bytes.Buffer
	data := struct {
		GeneratedAt string
		Items       []reportItem
	}{
		GeneratedAt: timeNow().Format("02/01/2006 15:04"),
		Items:       items,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "rendering report", err)
	}

	return s.writeArtifact(datedName("relatorio", "html"), buf.Bytes(), len(items))
}

// reportItems prepares the sorted records with report-size thumbnails.
func (s *Service) reportItems() ([]reportItem, error) {
	records := s.sorted()
	items := make([]reportItem, 0, len(records))
	for i, rec := range records {
		item := reportItem{
			Number:      i + 1,
			Name:        rec.Name,
			StatusClass: statusClass(rec.Status),
			Status:      string(rec.Status),
			Date:        rec.Date,
			Description: rec.Description,
			Prediction:  rec.PredictionDate,
			UTM:         geo.DisplayUTM(rec.Coordinate),
			GPS:         gpsText(rec.Coordinate),
			Size:        rec.FileSize,
		}
		if item.Description == "" {
			item.Description = "Não informada"
		}
		if rec.Thumbnail != "" {
			raw, _, err := media.DecodeDataURI(rec.Thumbnail)
			if err != nil {
				return nil, errors.Wrap(errors.ErrExportFailed,
					fmt.Sprintf("decoding thumbnail of %q", rec.Name), err)
			}
			resized, mime, err := media.ResizeBytes(raw, reportMaxWidth, reportMaxHeight)
			if err != nil {
				return nil, errors.Wrap(errors.ErrExportFailed,
					fmt.Sprintf("resizing thumbnail of %q", rec.Name), err)
			}
			item.ImageData = resized
			item.ImageMIME = mime
			item.ImageSrc = template.URL(media.EncodeDataURI(resized, mime))
		}
		items = append(items, item)
	}
	return items, nil
}

func statusClass(s models.Status) string {
	switch s {
	case models.StatusDone:
		return "status-concluido"
	case models.StatusOverdue:
		return "status-atrasado"
	}
	return "status-pendente"
}

// renderPDF lays the report out on A4 pages, one block per record,
// never splitting a block across pages.
func renderPDF(items []reportItem) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Relatório de Monitoramento", true)
	pdf.SetAutoPageBreak(false, 15)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Relatório de Monitoramento"), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(0, 5, tr("Gerado em: "+timeNow().Format("02/01/2006 15:04")), "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(5)

	const (
		pageBottom = 282.0
		marginLeft = 15.0
		blockWidth = 180.0
		imageWidth = 85.0
		lineHeight = 6.0
	)

	for i, item := range items {
		imgH := 0.0
		imgName := ""
		if item.ImageData != nil {
			w, h, err := media.Dimensions(item.ImageData)
			if err != nil {
				return nil, err
			}
			imgH = imageWidth * float64(h) / float64(w)
			imgName = fmt.Sprintf("rec-%d", i)
			imgType := strings.ToUpper(strings.TrimPrefix(item.ImageMIME, "image/"))
			pdf.RegisterImageOptionsReader(imgName,
				gofpdf.ImageOptions{ImageType: imgType}, bytes.NewReader(item.ImageData))
		}

		detailH := 7 * lineHeight
		blockH := 8 + maxFloat(imgH, detailH) + 4
		if pdf.GetY()+blockH > pageBottom {
			pdf.AddPage()
		}

		top := pdf.GetY()
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(blockWidth, 8, tr(fmt.Sprintf("%d. %s", item.Number, item.Name)),
			"1", 1, "L", true, 0, "")

		contentTop := pdf.GetY()
		if imgName != "" {
			pdf.ImageOptions(imgName, marginLeft, contentTop, imageWidth, imgH,
				false, gofpdf.ImageOptions{}, 0, "")
		}

		pdf.SetFont("Helvetica", "", 10)
		detailX := marginLeft + imageWidth + 5
		pairs := [][2]string{
			{"Status:", item.Status},
			{"Data/hora:", item.Date},
			{"Descrição:", item.Description},
			{"Previsão:", item.Prediction},
			{"Coordenadas UTM:", item.UTM},
			{"GPS:", item.GPS},
			{"Tamanho:", item.Size},
		}
		y := contentTop + 1
		for _, pair := range pairs {
			pdf.SetXY(detailX, y)
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(38, lineHeight, tr(pair[0]), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(blockWidth-(detailX-marginLeft)-38, lineHeight, tr(pair[1]),
				"", 0, "L", false, 0, "")
			y += lineHeight
		}

		bottom := top + blockH
		pdf.Rect(marginLeft, top, blockWidth, blockH, "D")
		pdf.SetY(bottom + 5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
