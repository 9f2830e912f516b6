package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrFetch wraps every failure to obtain table bytes from a source.
var ErrFetch = errors.New("fetch command table")

const filePrefix = "file://"

// SourceKind distinguishes local files from network URLs.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceFile
	SourceURL
)

// Source locates the CSV table.
type Source struct {
	Kind     SourceKind
	Location string
}

// ParseSource classifies a location string. "file://" prefixed locations
// are local paths; anything else is fetched over HTTP.
func ParseSource(loc string) Source {
	loc = strings.TrimSpace(loc)
	switch {
	case loc == "":
		return Source{}
	case strings.HasPrefix(loc, filePrefix):
		return Source{Kind: SourceFile, Location: strings.TrimPrefix(loc, filePrefix)}
	default:
		return Source{Kind: SourceURL, Location: loc}
	}
}

func (s Source) String() string {
	if s.Kind == SourceFile {
		return filePrefix + s.Location
	}
	return s.Location
}

// SourceConfig is the JSON document naming the remote table.
type SourceConfig struct {
	CSVURL string `json:"csv_url"`
}

// ReadSourceConfig reads the source config at path. A missing file is not
// an error: it returns ok=false.
func ReadSourceConfig(path string) (cfg SourceConfig, ok bool, err error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return SourceConfig{}, false, nil
	}
	if err != nil {
		return SourceConfig{}, false, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return SourceConfig{}, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, true, nil
}

// ResolveSource applies the lookup order: no config or empty csv_url means
// no source; an existing local override file wins over the URL.
func ResolveSource(configPath, overridePath string) (Source, error) {
	cfg, ok, err := ReadSourceConfig(configPath)
	if err != nil || !ok {
		return Source{}, err
	}
	if strings.TrimSpace(cfg.CSVURL) == "" {
		return Source{}, nil
	}
	if overridePath != "" {
		if st, err := os.Stat(overridePath); err == nil && !st.IsDir() {
			return Source{Kind: SourceFile, Location: overridePath}, nil
		}
	}
	return ParseSource(cfg.CSVURL), nil
}

// Fetcher reads the raw table bytes from a source.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) ([]byte, error)
}

// HTTPFetcher reads file sources from disk and URL sources with a GET.
type HTTPFetcher struct {
	Client *http.Client
	// Timeout bounds a single fetch; zero means only ctx applies.
	Timeout time.Duration
	// MaxBytes caps the response body; zero means 10 MiB.
	MaxBytes int64
}

const defaultMaxBytes = 10 << 20

func (f *HTTPFetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	switch src.Kind {
	case SourceFile:
		b, err := os.ReadFile(src.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		return b, nil
	case SourceURL:
		return f.get(ctx, src.Location)
	default:
		return nil, fmt.Errorf("%w: no source", ErrFetch)
	}
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	max := f.MaxBytes
	if max <= 0 {
		max = defaultMaxBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, url, resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("%w: %s body exceeds %d bytes", ErrFetch, url, max)
	}
	return b, nil
}
