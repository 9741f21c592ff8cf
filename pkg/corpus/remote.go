package corpus

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultFetchTimeout = 60 * time.Second
	MaxDownloadSize     = 64 * 1024 * 1024 // 64MB
)

// ErrColumnNotFound is returned when the CSV header lacks the requested column.
var ErrColumnNotFound = errors.New("column not found in CSV header")

// Fetcher downloads remote CSV datasets.
type Fetcher struct {
	client  *http.Client
	maxSize int64
}

// NewFetcher creates a Fetcher with the given request timeout. A timeout of
// zero or less selects DefaultFetchTimeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		maxSize: MaxDownloadSize,
	}
}

// IsRemote reports whether dataset is an absolute http or https URL.
func IsRemote(dataset string) bool {
	u, err := url.Parse(dataset)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch downloads the file at rawURL. Responses larger than the size limit are
// rejected.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download dataset: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download dataset: status code %d", resp.StatusCode)
	}
	if resp.ContentLength > f.maxSize {
		return nil, fmt.Errorf("dataset size exceeds maximum allowed size: %d bytes", f.maxSize)
	}

	// Read one byte past the limit to detect oversized bodies without a Content-Length.
	content, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	if int64(len(content)) > f.maxSize {
		return nil, fmt.Errorf("dataset size exceeds maximum allowed size: %d bytes", f.maxSize)
	}
	return content, nil
}

// ExtractColumn reads CSV data with a header row and returns the non-empty
// cells of the named column, in file order. Quoted fields may contain commas,
// newlines and doubled quotes. Rows too short to hold the column are skipped.
// A maxRows of zero or less means no limit.
func ExtractColumn(r io.Reader, column string, maxRows int) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrColumnNotFound
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idx := -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}

	var texts []string
	for maxRows <= 0 || len(texts) < maxRows {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if idx >= len(record) {
			continue
		}
		if text := strings.TrimSpace(record[idx]); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}

// FetchColumn downloads a CSV file and extracts one column from it.
func (f *Fetcher) FetchColumn(ctx context.Context, rawURL, column string, maxRows int) ([]string, error) {
	content, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return ExtractColumn(bytes.NewReader(content), column, maxRows)
}
