// Command rotafoto turns a directory of photos (or a JSON backup) into
// route-monitoring artifacts: JSON, XLSX, DOCX, PDF report and KMZ.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rmaffei/rotafoto/internal/export"
	"github.com/rmaffei/rotafoto/internal/extract"
	"github.com/rmaffei/rotafoto/internal/logging"
	"github.com/rmaffei/rotafoto/internal/models"
	"github.com/rmaffei/rotafoto/internal/store"
)

// Version is set at build time.
var Version = "0.1.0"

// multiFlag collects a repeatable string flag.
type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// photoExtensions are the file types picked up by -scan.
var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".tif": true, ".tiff": true, ".heic": true,
}

func main() {
	var (
		scanDir    = flag.String("scan", "", "directory of photos to extract")
		importFile = flag.String("import", "", "JSON backup to load")
		formats    = flag.String("format", "", "comma-separated export formats, or \"all\"")
		outDir     = flag.String("out", ".", "output directory for artifacts")
		workers    = flag.Int("workers", 0, "extraction workers (0 = default)")
		verbose    = flag.Bool("v", false, "debug logging")
		version    = flag.Bool("version", false, "print version and exit")

		setStatus   multiFlag
		describe    multiFlag
		predictions multiFlag
		removals    multiFlag
	)
	flag.Var(&setStatus, "set-status", "i=STATUS, repeatable (Pendente|Concluido|Atrasado)")
	flag.Var(&describe, "describe", "i=TEXT, repeatable")
	flag.Var(&predictions, "prediction", "i=YYYY-MM-DD, repeatable")
	flag.Var(&removals, "remove", "record index to remove, repeatable")
	flag.Parse()

	if *version {
		fmt.Printf("rotafoto v%s\n", Version)
		return
	}

	level := logrus.InfoLevel
	if *verbose {
		level = logrus.DebugLevel
	}
	logging.Init(os.Stderr, level)

	if *scanDir == "" && *importFile == "" {
		fmt.Fprintln(os.Stderr, "Error: a record source is required. Use -scan DIR or -import FILE")
		flag.Usage()
		os.Exit(1)
	}

	st := store.New()

	if *importFile != "" {
		if err := runImport(st, *importFile); err != nil {
			fatal(err)
		}
	}
	if *scanDir != "" {
		if err := runScan(st, *scanDir, *workers); err != nil {
			fatal(err)
		}
	}

	if err := applyEdits(st, setStatus, describe, predictions, removals); err != nil {
		fatal(err)
	}

	if st.Len() == 0 {
		fmt.Fprintln(os.Stderr, "No records to export")
		os.Exit(1)
	}

	if *formats == "" {
		fmt.Printf("%d record(s) loaded, no -format requested\n", st.Len())
		return
	}
	if err := runExports(st, *formats, *outDir); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runImport(st *store.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer f.Close()

	n, err := st.Import(f)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d record(s) from %s\n", n, path)
	return nil
}

func runScan(st *store.Store, dir string, workers int) error {
	paths, err := photoPaths(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no photos found under %s", dir)
	}

	res := extract.Batch(context.Background(), paths, st.Len(), workers)
	st.Append(res.Records...)

	fmt.Printf("Extracted %d record(s) from %s\n", len(res.Records), dir)
	if len(res.WithoutGPS) > 0 {
		fmt.Printf("  %d file(s) had no GPS data\n", len(res.WithoutGPS))
	}
	for _, fe := range res.Failed {
		fmt.Fprintf(os.Stderr, "  warning: %s: %v\n", fe.Path, fe.Err)
	}
	return nil
}

// photoPaths lists the photo files directly under dir, sorted by name.
func photoPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if photoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

func applyEdits(st *store.Store, setStatus, describe, predictions, removals multiFlag) error {
	for _, v := range setStatus {
		idx, val, err := splitEdit(v)
		if err != nil {
			return err
		}
		status, err := models.ParseStatus(val)
		if err != nil {
			return err
		}
		if _, err := st.Update(idx, store.Patch{Status: &status}); err != nil {
			return err
		}
	}
	for _, v := range describe {
		idx, val, err := splitEdit(v)
		if err != nil {
			return err
		}
		if _, err := st.Update(idx, store.Patch{Description: &val}); err != nil {
			return err
		}
	}
	for _, v := range predictions {
		idx, val, err := splitEdit(v)
		if err != nil {
			return err
		}
		if _, err := st.Update(idx, store.Patch{PredictionDate: &val}); err != nil {
			return err
		}
	}
	// Removals run last, from the highest index down, so earlier flags
	// always refer to pre-removal indices.
	indices := make([]int, 0, len(removals))
	for _, v := range removals {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid -remove index %q", v)
		}
		indices = append(indices, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, idx := range indices {
		if err := st.Remove(idx); err != nil {
			return err
		}
	}
	return nil
}

// splitEdit parses an "index=value" flag argument.
func splitEdit(s string) (int, string, error) {
	eq := strings.Index(s, "=")
	if eq <= 0 {
		return 0, "", fmt.Errorf("invalid edit %q, want index=value", s)
	}
	idx, err := strconv.Atoi(s[:eq])
	if err != nil {
		return 0, "", fmt.Errorf("invalid edit index in %q", s)
	}
	return idx, s[eq+1:], nil
}

func runExports(st *store.Store, formats, outDir string) error {
	svc := export.NewService(st, outDir)

	if formats == "all" {
		results, err := svc.ExportAll()
		for _, format := range export.Formats() {
			if res, ok := results[format]; ok {
				printResult(res)
			}
		}
		return err
	}

	for _, format := range strings.Split(formats, ",") {
		format = strings.TrimSpace(format)
		if format == "" {
			continue
		}
		res, err := svc.Export(format)
		if err != nil {
			return err
		}
		printResult(res)
	}
	return nil
}

func printResult(res *export.Result) {
	if res.Fallback {
		fmt.Printf("Wrote %s (%d records, fallback format)\n", res.Path, res.Count)
		return
	}
	fmt.Printf("Wrote %s (%d records)\n", res.Path, res.Count)
}
