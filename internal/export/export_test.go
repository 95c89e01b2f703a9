package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rmaffei/rotafoto/internal/media"
	"github.com/rmaffei/rotafoto/internal/models"
	"github.com/rmaffei/rotafoto/internal/store"
)

func testThumbnail(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return media.EncodeDataURI(buf.Bytes(), "image/jpeg")
}

func testRecords(t *testing.T) []*models.PhotoRecord {
	t.Helper()
	return []*models.PhotoRecord{
		{
			Index:          0,
			Name:           "obra_norte.jpg",
			Status:         models.StatusDone,
			Description:    "Concluída em campo",
			FileSize:       "120.50 KB",
			FileType:       "image/jpeg",
			Date:           "10/06/2025 14:30:00",
			Coordinate:     models.NewCoordinate(-23.5505, -46.6333),
			Thumbnail:      testThumbnail(t, 640, 480),
			PredictionDate: "2025-06-19",
		},
		{
			Index:          1,
			Name:           `ponto <"A"> & 'B'`,
			Status:         models.StatusPending,
			Description:    "",
			FileSize:       "89.00 KB",
			FileType:       "image/png",
			Date:           "11/06/2025 09:00:00",
			Coordinate:     models.NewCoordinate(-22.9068, -43.1729),
			Thumbnail:      testThumbnail(t, 320, 240),
			PredictionDate: "2025-06-20",
		},
		{
			Index:          2,
			Name:           "sem_gps.jpg",
			Status:         models.StatusOverdue,
			Description:    "Aguardando vistoria",
			FileSize:       "45.25 KB",
			FileType:       "image/jpeg",
			Date:           "01/06/2025 08:15:00",
			Coordinate:     models.Coordinate{},
			Thumbnail:      "",
			PredictionDate: "2025-06-05",
		},
	}
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.New()
	st.Append(testRecords(t)...)
	return NewService(st, t.TempDir()), st
}

func pinTime(t *testing.T, v time.Time) {
	t.Helper()
	old := timeNow
	timeNow = func() time.Time { return v }
	t.Cleanup(func() { timeNow = old })
}

func readZip(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	parts := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		parts[f.Name] = data
	}
	return parts
}

func TestEscapeMarkup(t *testing.T) {
	assert.Equal(t,
		"&lt;script&gt;alert(&apos;x&apos;)&lt;/script&gt; &amp; &quot;q&quot;",
		EscapeMarkup(`<script>alert('x')</script> & "q"`))
	assert.Equal(t, "plain", EscapeMarkup("plain"))
}

func TestDatedName(t *testing.T) {
	pinTime(t, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, "backup_2025-06-10.json", datedName("backup", "json"))
	assert.Equal(t, "rotas_2025-06-10.kmz", datedName("rotas", "kmz"))
}

func TestExportJSONRoundTrip(t *testing.T) {
	pinTime(t, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	svc, st := newTestService(t)

	res, err := svc.ExportJSON()
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, "backup_2025-06-10.json", filepath.Base(res.Path))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, res.SizeBytes, int64(len(data)))

	// Wire shape keeps the historical capitalized coordinate keys.
	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 3)
	assert.Contains(t, raw[0], "Latitude")
	assert.Contains(t, raw[0], "Longitude")

	fresh := store.New()
	n, err := fresh.Import(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := st.SortedView()
	got := fresh.Records()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.Equal(t, want[i].Status, got[i].Status)
		assert.Equal(t, want[i].Coordinate.Valid, got[i].Coordinate.Valid)
		if want[i].Coordinate.Valid {
			assert.InDelta(t, want[i].Coordinate.Lat, got[i].Coordinate.Lat, 1e-9)
			assert.InDelta(t, want[i].Coordinate.Lon, got[i].Coordinate.Lon, 1e-9)
		}
		assert.Equal(t, want[i].FileSize, got[i].FileSize)
		assert.Equal(t, want[i].PredictionDate, got[i].PredictionDate)
	}
}

func TestExportJSONShrinksThumbnails(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.ExportJSON()
	require.NoError(t, err)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	var raw []*models.PhotoRecord
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, rec := range raw {
		if rec.Thumbnail == "" {
			continue
		}
		decoded, _, err := media.DecodeDataURI(rec.Thumbnail)
		require.NoError(t, err)
		w, h, err := media.Dimensions(decoded)
		require.NoError(t, err)
		assert.LessOrEqual(t, w, 300)
		assert.LessOrEqual(t, h, 200)
	}
}

func TestExportXLSX(t *testing.T) {
	pinTime(t, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t)

	res, err := svc.ExportXLSX()
	require.NoError(t, err)
	assert.Equal(t, "rotas_2025-06-10.xlsx", filepath.Base(res.Path))

	f, err := excelize.OpenFile(res.Path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, xlsxColumns, rows[0][:len(xlsxColumns)])

	// Rows follow the Overdue, Pending, Done order of the sorted view.
	assert.Equal(t, "sem_gps.jpg", rows[1][3])
	assert.Equal(t, `ponto <"A"> & 'B'`, rows[2][3])
	assert.Equal(t, "obra_norte.jpg", rows[3][3])

	// Absent coordinates are forced to numeric zero.
	lat, err := f.GetCellValue(sheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, "0", lat)

	lat2, err := f.GetCellValue(sheetName, "A4")
	require.NoError(t, err)
	assert.Contains(t, lat2, "-23.55")
}

func TestExportDOCX(t *testing.T) {
	pinTime(t, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t)

	res, err := svc.ExportDOCX()
	require.NoError(t, err)
	assert.Equal(t, "relatorio_2025-06-10.docx", filepath.Base(res.Path))

	parts := readZip(t, res.Path)
	require.Contains(t, parts, "[Content_Types].xml")
	require.Contains(t, parts, "_rels/.rels")
	require.Contains(t, parts, "word/document.xml")
	require.Contains(t, parts, "word/_rels/document.xml.rels")

	doc := string(parts["word/document.xml"])
	assert.Contains(t, doc, "obra_norte.jpg")
	assert.Contains(t, doc, "Título:")
	assert.Contains(t, doc, "Coordenadas UTM:")
	assert.Contains(t, doc, "Previsão:")
	// Free text reaches the document escaped, never raw.
	assert.NotContains(t, doc, `ponto <"A">`)
	assert.Contains(t, doc, "ponto &lt;&quot;A&quot;&gt; &amp; &apos;B&apos;")
	// Sentinel coordinates render as the marker pair.
	assert.Contains(t, doc, "N/A, N/A")

	var mediaParts int
	for name := range parts {
		if strings.HasPrefix(name, "word/media/") {
			mediaParts++
		}
	}
	assert.Equal(t, 2, mediaParts)
}

func TestExportReportPDF(t *testing.T) {
	pinTime(t, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t)

	res, err := svc.ExportReport()
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, "relatorio_2025-06-10.pdf", filepath.Base(res.Path))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, 3, res.Count)
}

func TestExportHTML(t *testing.T) {
	pinTime(t, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t)

	res, err := svc.ExportHTML()
	require.NoError(t, err)
	assert.Equal(t, "relatorio_2025-06-10.html", filepath.Base(res.Path))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "Relatório de Monitoramento")
	assert.Contains(t, html, "Gerado em: 10/06/2025 15:00")
	assert.Contains(t, html, "status-atrasado")
	assert.Contains(t, html, "data:image/jpeg;base64,")
	// Template escaping keeps markup out of free text.
	assert.NotContains(t, html, `<"A">`)
	// Records without a description get the placeholder.
	assert.Contains(t, html, "Não informada")
	// Blocks follow the sorted order: overdue record first.
	assert.Less(t, strings.Index(html, "sem_gps.jpg"), strings.Index(html, "obra_norte.jpg"))
}

func TestExportKMZ(t *testing.T) {
	pinTime(t, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t)

	res, err := svc.ExportKMZ()
	require.NoError(t, err)
	assert.Equal(t, "relatorio_2025-06-10.kmz", filepath.Base(res.Path))
	// The record without coordinates is not a placemark.
	assert.Equal(t, 2, res.Count)

	parts := readZip(t, res.Path)
	require.Contains(t, parts, "doc.kml")
	// Numbering follows export-order positions; the skipped record at
	// position 0 leaves a gap.
	require.NotContains(t, parts, "images/img_0.jpg")
	require.Contains(t, parts, "images/img_1.jpg")
	require.Contains(t, parts, "images/img_2.jpg")

	kml := string(parts["doc.kml"])
	assert.Contains(t, kml, "<name>Relatório de Pendências</name>")
	assert.Contains(t, kml, `<Style id="pendente">`)
	assert.Contains(t, kml, `<Style id="concluido">`)
	assert.Contains(t, kml, `<Style id="atrasado">`)
	assert.Contains(t, kml, "#concluido")
	assert.Contains(t, kml, "-46.633300,-23.550500")
	assert.NotContains(t, kml, "sem_gps.jpg")
	assert.NotContains(t, kml, `ponto <"A">`)
	assert.Contains(t, kml, "ponto &lt;&quot;A&quot;&gt; &amp; &apos;B&apos;")
	assert.Contains(t, kml, `img src="images/img_1.jpg"`)

	// Carried photos are JPEG regardless of the thumbnail encoding.
	assert.True(t, bytes.HasPrefix(parts["images/img_1.jpg"], []byte{0xFF, 0xD8}))
}

func TestExportKMZBadThumbnailAborts(t *testing.T) {
	st := store.New()
	st.Append(&models.PhotoRecord{
		Index:      0,
		Name:       "corrupt.jpg",
		Status:     models.StatusPending,
		Coordinate: models.NewCoordinate(1, 2),
		Thumbnail:  "data:image/jpeg;base64,AAAA",
	})
	svc := NewService(st, t.TempDir())

	_, err := svc.ExportKMZ()
	require.Error(t, err)
}

func TestExportDispatch(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Export("csv")
	require.Error(t, err)

	res, err := svc.Export(FormatJSON)
	require.NoError(t, err)
	assert.FileExists(t, res.Path)
}

func TestExportAll(t *testing.T) {
	pinTime(t, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC))
	svc, _ := newTestService(t)

	results, err := svc.ExportAll()
	require.NoError(t, err)
	require.Len(t, results, len(Formats()))
	for _, format := range Formats() {
		res := results[format]
		require.NotNil(t, res, format)
		assert.FileExists(t, res.Path)
		assert.Positive(t, res.SizeBytes)
	}
}

func TestWriteArtifactAtomic(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(store.New(), dir)

	res, err := svc.writeArtifact("out.bin", []byte("payload"), 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.bin"), res.Path)
	assert.NoFileExists(t, filepath.Join(dir, "out.bin.tmp"))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
