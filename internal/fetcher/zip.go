package fetcher

import (
	"archive/zip"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ExtractZIP unpacks the files of a ZIP archive whose base name satisfies
// keep into destDir and returns their paths. A nil keep extracts everything.
func ExtractZIP(zipPath, destDir string, keep func(name string) bool) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var extracted, ignored []string
	for _, f := range r.File {
		if keep != nil && !f.FileInfo().IsDir() && !keep(path.Base(f.Name)) {
			ignored = append(ignored, f.Name)
			continue
		}
		dest, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if dest != "" {
			extracted = append(extracted, dest)
		}
	}

	if len(ignored) > 0 {
		zap.L().Debug("zip: entries not extracted",
			zap.String("archive", zipPath),
			zap.Strings("entries", ignored),
		)
	}
	return extracted, nil
}

// extractZIPEntry writes one archive entry below destDir. Directories yield
// an empty path.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	if _, err := writeFile(destPath, rc); err != nil {
		return "", eris.Wrapf(err, "zip: extract %s", f.Name)
	}
	return destPath, nil
}
