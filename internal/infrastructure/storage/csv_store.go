package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
)

const (
	manifestFileName       = "dataset-metadata.json"
	dataDictionaryFileName = "data_dictionary.csv"
)

// seriesHeader is the exact column contract of every per-asset file.
var seriesHeader = []string{
	"Date", "Open", "High", "Low", "Close", "Volume",
	"Daily_Return", "High_Low_Spread", "SMA_7", "SMA_30",
}

// columnDescriptions feeds data_dictionary.csv, in header order.
var columnDescriptions = [][2]string{
	{"Date", "The trading date (YYYY-MM-DD format)"},
	{"Open", "Price at the start of the day (00:00 UTC) in USD"},
	{"High", "Highest price reached during the day in USD"},
	{"Low", "Lowest price reached during the day in USD"},
	{"Close", "Price at the end of the day (23:59 UTC) in USD"},
	{"Volume", "Total trading volume in USD"},
	{"Daily_Return", "Fractional change from the previous day's close; empty on the first day"},
	{"High_Low_Spread", "Intraday volatility calculated as (High - Low)"},
	{"SMA_7", "Simple moving average of Close over 7 days; empty until 7 days exist"},
	{"SMA_30", "Simple moving average of Close over 30 days; empty until 30 days exist"},
}

// CSVStore keeps one CSV file per asset inside a flat dataset directory,
// alongside the data dictionary and the run manifest. Writes go to a
// temp file first and are renamed into place, so a crash never leaves a
// half-written series visible.
type CSVStore struct {
	dir string
}

func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &domain.StorageError{Path: dir, Err: err}
	}
	return &CSVStore{dir: dir}, nil
}

func (s *CSVStore) Dir() string { return s.dir }

// Tracked scans the dataset directory and returns the assets that have
// an existing series file, keyed by canonical id. Symbol and id are
// recovered from the "{canonical_id}_{SYMBOL}.csv" naming convention;
// canonical ids may contain hyphens but never underscores, so the last
// underscore is the separator.
func (s *CSVStore) Tracked(ctx context.Context) (map[string]domain.TrackedAsset, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &domain.StorageError{Path: s.dir, Err: err}
	}

	tracked := make(map[string]domain.TrackedAsset)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") || name == dataDictionaryFileName {
			continue
		}

		base := strings.TrimSuffix(name, ".csv")
		sep := strings.LastIndex(base, "_")
		if sep <= 0 || sep == len(base)-1 {
			continue
		}
		id, symbol := base[:sep], base[sep+1:]

		last, err := s.lastDate(name)
		if err != nil {
			return nil, err
		}

		tracked[id] = domain.TrackedAsset{
			Asset: domain.Asset{
				CanonicalID: id,
				Symbol:      symbol,
			},
			FileName: name,
			LastDate: last,
		}
	}
	return tracked, nil
}

// lastDate reads the final row's date without keeping the file contents.
func (s *CSVStore) lastDate(fileName string) (*time.Time, error) {
	bars, err := s.ReadBars(context.Background(), fileName)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, nil
	}
	d := bars[len(bars)-1].Date
	return &d, nil
}

// ReadBars returns the raw OHLCV bars stored for one asset. Derived
// columns are not read back; refreshes recompute them from the merged
// raw series.
func (s *CSVStore) ReadBars(ctx context.Context, fileName string) ([]domain.PriceBar, error) {
	path := filepath.Join(s.dir, fileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &domain.StorageError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, &domain.StorageError{Path: path, Err: err}
	}
	if len(records) <= 1 {
		return nil, nil
	}

	bars := make([]domain.PriceBar, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			return nil, &domain.StorageError{Path: path, Err: fmt.Errorf("short row: %v", rec)}
		}
		date, err := time.ParseInLocation(domain.DateLayout, rec[0], time.UTC)
		if err != nil {
			return nil, &domain.StorageError{Path: path, Err: err}
		}
		bar := domain.PriceBar{Date: date}
		for i, dst := range []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume} {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, &domain.StorageError{Path: path, Err: err}
			}
			*dst = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// WriteSeries atomically replaces one asset's file with the given rows.
func (s *CSVStore) WriteSeries(ctx context.Context, fileName string, rows []domain.DerivedRow) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, seriesHeader)
	for _, row := range rows {
		records = append(records, []string{
			row.Date.Format(domain.DateLayout),
			formatFloat(row.Open),
			formatFloat(row.High),
			formatFloat(row.Low),
			formatFloat(row.Close),
			formatFloat(row.Volume),
			formatOptional(row.DailyReturn),
			formatFloat(row.HighLowSpread),
			formatOptional(row.SMA7),
			formatOptional(row.SMA30),
		})
	}
	return s.writeCSV(fileName, records)
}

// WriteDataDictionary writes data_dictionary.csv describing every column
// of the per-asset files.
func (s *CSVStore) WriteDataDictionary(ctx context.Context) error {
	records := [][]string{{"Column Name", "Description", "Data Type"}}
	for _, cd := range columnDescriptions {
		typ := "float"
		if cd[0] == "Date" {
			typ = "string"
		}
		records = append(records, []string{cd[0], cd[1], typ})
	}
	return s.writeCSV(dataDictionaryFileName, records)
}

// WriteManifest writes the run manifest as indented JSON.
func (s *CSVStore) WriteManifest(ctx context.Context, m *domain.DatasetManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &domain.StorageError{Path: manifestFileName, Err: err}
	}
	return s.writeAtomic(manifestFileName, append(data, '\n'))
}

func (s *CSVStore) writeCSV(fileName string, records [][]string) error {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(records); err != nil {
		return &domain.StorageError{Path: fileName, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &domain.StorageError{Path: fileName, Err: err}
	}
	return s.writeAtomic(fileName, []byte(sb.String()))
}

// writeAtomic stages the content in a temp file in the same directory
// and renames it over the final name.
func (s *CSVStore) writeAtomic(fileName string, data []byte) error {
	final := filepath.Join(s.dir, fileName)

	tmp, err := os.CreateTemp(s.dir, fileName+".tmp-*")
	if err != nil {
		return &domain.StorageError{Path: final, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.StorageError{Path: final, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.StorageError{Path: final, Err: err}
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return &domain.StorageError{Path: final, Err: err}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatOptional renders nil as the empty field; a missing value is
// never written as 0.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
