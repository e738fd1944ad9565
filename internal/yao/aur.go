package yao

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
)

// AURClient talks to the AUR RPC interface and snapshot endpoint.
type AURClient struct {
	base      string
	userAgent string
	http      *http.Client
	log       hclog.Logger
}

func newHttpClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	transport.TLSHandshakeTimeout = 30 * time.Second
	// No overall timeout: a slow snapshot download is allowed to take as long as it needs.
	return &http.Client{Transport: transport}
}

// NewAURClient returns a client for the AUR rooted at base (e.g. https://aur.archlinux.org).
func NewAURClient(base string, log hclog.Logger) *AURClient {
	return &AURClient{
		base:      base,
		userAgent: "yao/" + version,
		http:      newHttpClient(),
		log:       log,
	}
}

type rpcResponse struct {
	Type        string   `json:"type"`
	Version     int      `json:"version"`
	ResultCount int      `json:"resultcount"`
	Results     []rpcPkg `json:"results"`
	Error       string   `json:"error"`
}

type rpcPkg struct {
	Name    string `json:"Name"`
	Version string `json:"Version"`
}

func (c *AURClient) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	c.log.Debug("GET "+rawURL)
	return c.http.Do(req)
}

// Exists reports whether the AUR has a package named exactly name.
func (c *AURClient) Exists(ctx context.Context, name string) (bool, error) {
	q := url.Values{}
	q.Set("v", "5")
	q.Set("type", "info")
	q.Set("arg[]", name)
	resp, err := c.get(ctx, c.base+"/rpc/?"+q.Encode())
	if err != nil {
		return false, fmt.Errorf("AUR lookup for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%w: AUR RPC returned %s", ErrDownloadFailed, resp.Status)
	}

	var info rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return false, fmt.Errorf("failed to decode AUR response for %s: %w", name, err)
	}
	if info.Type == "error" {
		return false, fmt.Errorf("AUR RPC error: %s", info.Error)
	}
	if info.ResultCount <= 0 {
		return false, nil
	}
	for _, r := range info.Results {
		if r.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// OpenSnapshot starts downloading the snapshot tarball for name. The caller
// closes the body. The returned size is -1 when the server did not send one.
func (c *AURClient) OpenSnapshot(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	u := fmt.Sprintf("%s/cgit/aur.git/snapshot/%s.tar.gz", c.base, url.PathEscape(name))
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrDownloadFailed, name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("%w for %s: %s", ErrDownloadFailed, name, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}
