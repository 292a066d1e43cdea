package mcpserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/starford/folio/internal/models"
)

const maxImportSize = 2 << 20 // 2 MB

var mimeToImport = map[string]models.ImportType{
	"text/markdown":   models.ImportTypeMarkdown,
	"text/x-markdown": models.ImportTypeMarkdown,
	"text/plain":      models.ImportTypePlainText,
}

var extToImport = map[string]models.ImportType{
	".md":       models.ImportTypeMarkdown,
	".markdown": models.ImportTypeMarkdown,
	".txt":      models.ImportTypePlainText,
}

// fetcher downloads rawURL and returns the body and its media type.
type fetcher func(ctx context.Context, rawURL string) ([]byte, string, error)

type fetched struct {
	data       []byte
	name       string
	importType models.ImportType
}

// fetchSource resolves rawURL into importable bytes. The import type comes
// from the file extension when it has a known one, else from the media type.
func fetchSource(ctx context.Context, fetch fetcher, rawURL string) (*fetched, error) {
	var (
		data []byte
		mime string
		err  error
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, mime, err = decodeDataURI(rawURL)
	} else {
		data, mime, err = fetch(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}
	if len(data) > maxImportSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxImportSize)
	}

	name, ext := nameFromURL(rawURL)
	it, ok := extToImport[ext]
	if !ok {
		it, ok = mimeToImport[mime]
	}
	if !ok {
		return nil, fmt.Errorf("unsupported content (type %q, extension %q): only markdown and plain text can be imported", mime, ext)
	}
	return &fetched{data: data, name: name, importType: it}, nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	return data, mime, nil
}

// fetchHTTP downloads a file from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	mime := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	return data, mime, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// nameFromURL returns the file stem and lower-case extension of the URL
// path. Data URIs and bare hosts yield "Imported" and no extension.
func nameFromURL(rawURL string) (string, string) {
	if strings.HasPrefix(rawURL, "data:") {
		return "Imported", ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "Imported", ""
	}
	base := path.Base(parsed.Path)
	if base == "" || base == "." || base == "/" {
		return "Imported", ""
	}
	ext := strings.ToLower(path.Ext(base))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		stem = "Imported"
	}
	return stem, ext
}
