package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
)

// MaxSourceBytes bounds how much of a source is read into memory
const MaxSourceBytes = 64 << 20

// SourceAuth carries credentials for remote sources. Token wins over
// Username/Password when both are set.
type SourceAuth struct {
	Token    string
	Username string
	Password string
}

// Opener reads tables from local paths or HTTP(S) URLs
type Opener struct {
	HTTPClient *http.Client
	Auth       SourceAuth
}

// NewOpener creates an Opener with the given request timeout
func NewOpener(timeout time.Duration, auth SourceAuth) *Opener {
	return &Opener{
		HTTPClient: &http.Client{Timeout: timeout},
		Auth:       auth,
	}
}

// Open reads and decodes the table at location
func (o *Opener) Open(ctx context.Context, location string) (*Table, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return o.openURL(ctx, location)
	}
	return openFile(location)
}

// Decode decodes an uploaded table
func Decode(name, contentType string, data []byte) (*Table, error) {
	format, err := DetectFormat(name, contentType, data)
	if err != nil {
		return nil, err
	}
	return ReadTable(data, format)
}

func openFile(filePath string) (*Table, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f)
	if err != nil {
		return nil, err
	}

	slog.Debug("Read source file", "path", filePath, "bytes", len(data))
	return Decode(filePath, "", data)
}

func (o *Opener) openURL(ctx context.Context, url string) (*Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	switch {
	case o.Auth.Token != "":
		req.Header.Set("Authorization", "Bearer "+o.Auth.Token)
	case o.Auth.Username != "":
		req.SetBasicAuth(o.Auth.Username, o.Auth.Password)
	}

	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SourceStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	name := path.Base(req.URL.Path)
	slog.Debug("Fetched remote source", "url", url, "bytes", len(data), "content_type", resp.Header.Get("Content-Type"))
	return Decode(name, resp.Header.Get("Content-Type"), data)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("source exceeds %d bytes", MaxSourceBytes)
	}
	return data, nil
}
