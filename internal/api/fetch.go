package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Endpoints are the remote documents the catalog is built from.
type Endpoints struct {
	VersionURL      string
	DumpURLTemplate string // formatted with the client version
	DocsURL         string
	IconListURL     string
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.Code, e.Body)
}

// Client fetches and decodes the upstream documents. It holds no state between
// calls beyond its http.Client.
type Client struct {
	httpClient *http.Client
	userAgent  string
	endpoints  Endpoints
}

// NewClient returns a Client using httpClient, or a client with a five minute
// timeout when httpClient is nil.
func NewClient(httpClient *http.Client, userAgent string, endpoints Endpoints) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if userAgent == "" {
		userAgent = "rbxdocs/0.1.0"
	}
	return &Client{httpClient: httpClient, userAgent: userAgent, endpoints: endpoints}
}

// CurrentVersion returns the current Studio client version, e.g. "version-1a2b3c4d5e6f7a8b".
func (c *Client) CurrentVersion(ctx context.Context) (string, error) {
	data, err := c.get(ctx, c.endpoints.VersionURL)
	if err != nil {
		return "", fmt.Errorf("fetching client version: %w", err)
	}

	var versions map[string]any
	if err := json.Unmarshal(data, &versions); err != nil {
		return "", fmt.Errorf("decoding client version: %w", err)
	}
	version, _ := versions["clientVersionUpload"].(string)
	if version == "" {
		return "", fmt.Errorf("client version document has no clientVersionUpload field")
	}
	return version, nil
}

// FetchDumpJSON downloads the raw API dump for version.
func (c *Client) FetchDumpJSON(ctx context.Context, version string) ([]byte, error) {
	url := fmt.Sprintf(c.endpoints.DumpURLTemplate, version)
	data, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching API dump %s: %w", version, err)
	}
	return data, nil
}

// ParseDump decodes API dump bytes.
func ParseDump(data []byte) (*Dump, error) {
	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("decoding API dump: %w", err)
	}
	return &dump, nil
}

// FetchDocs downloads the documentation map.
func (c *Client) FetchDocs(ctx context.Context) (DocMap, error) {
	data, err := c.get(ctx, c.endpoints.DocsURL)
	if err != nil {
		return nil, fmt.Errorf("fetching documentation map: %w", err)
	}

	var docs DocMap
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decoding documentation map: %w", err)
	}
	return docs, nil
}

// ListIcons returns the icon names (file names without extension) of the
// remote icon directory listing.
func (c *Client) ListIcons(ctx context.Context) ([]string, error) {
	data, err := c.get(ctx, c.endpoints.IconListURL)
	if err != nil {
		return nil, fmt.Errorf("fetching icon list: %w", err)
	}

	var entries []IconInfo
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding icon list: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name, path.Ext(e.Name)))
	}
	return names, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Encoding", "zstd, gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{URL: url, Code: resp.StatusCode, Body: string(body)}
	}

	return readBody(resp)
}

// readBody decompresses the body according to Content-Encoding. Setting
// Accept-Encoding ourselves turns off net/http's transparent gzip handling.
func readBody(resp *http.Response) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "zstd":
		decoder, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer decoder.Close()
		data, err := io.ReadAll(decoder)
		if err != nil {
			return nil, fmt.Errorf("decompressing zstd body: %w", err)
		}
		return data, nil
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		data, err := io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("decompressing gzip body: %w", err)
		}
		return data, nil
	case "", "identity":
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
