package tiger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tigerpoly/internal/fetcher"
)

// DefaultBaseURL is the Census archive of TIGER/Line 2006 Second Edition
// county files.
const DefaultBaseURL = "https://www2.census.gov/geo/tiger/tiger2006se"

// FIPSCodes maps state abbreviation to 2-digit FIPS code for all 50 states,
// DC and Puerto Rico.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56", "PR": "72",
}

var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// AbbrFromFIPS returns the state abbreviation for a 2-digit state FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}

// ModuleName returns the module basename of a 5-digit county FIPS code.
func ModuleName(countyFIPS string) string {
	return "TGR" + countyFIPS
}

// CountyURL builds the archive URL of one county module:
// {base}/{ST}/TGR{ssccc}.ZIP.
func CountyURL(baseURL, countyFIPS string) (string, error) {
	if len(countyFIPS) != 5 || strings.Trim(countyFIPS, "0123456789") != "" {
		return "", eris.Errorf("tiger: county FIPS %q must be 5 digits", countyFIPS)
	}
	abbr, ok := AbbrFromFIPS(countyFIPS[:2])
	if !ok {
		return "", eris.Errorf("tiger: unknown state FIPS %q", countyFIPS[:2])
	}
	return fmt.Sprintf("%s/%s/%s.ZIP", strings.TrimRight(baseURL, "/"), abbr, ModuleName(countyFIPS)), nil
}

// Download fetches a county archive into destDir and returns the path of the
// ZIP. An existing non-empty archive is reused.
func Download(ctx context.Context, f fetcher.Fetcher, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "tiger.download"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create dest dir")
	}

	parts := strings.Split(url, "/")
	zipPath := filepath.Join(destDir, parts[len(parts)-1])

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("archive already present, skipping download", zap.String("path", zipPath))
		return zipPath, nil
	}

	log.Info("downloading TIGER/Line archive")
	n, err := f.DownloadToFile(ctx, url, zipPath)
	if err != nil {
		_ = os.Remove(zipPath)
		return "", eris.Wrapf(err, "tiger: download %s", url)
	}

	log.Info("archive downloaded", zap.String("path", zipPath), zap.Int64("bytes", n))
	return zipPath, nil
}
