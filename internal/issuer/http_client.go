package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HTTPClient talks to the link service over its JSON API.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
	log     *logrus.Entry
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *logrus.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		log:     log.WithField("component", "issuer"),
	}
}

type prepareResponse struct {
	UnsignedTxs []UnsignedTx `json:"unsignedTxs"`
}

type resolveResponse struct {
	Link string `json:"link"`
}

func (c *HTTPClient) Prepare(ctx context.Context, req PrepareRequest) ([]UnsignedTx, error) {
	var resp prepareResponse
	if err := c.post(ctx, "/prepare-deposit", req, &resp); err != nil {
		return nil, err
	}
	return resp.UnsignedTxs, nil
}

func (c *HTTPClient) ResolveLink(ctx context.Context, req ResolveRequest) (string, error) {
	var resp resolveResponse
	if err := c.post(ctx, "/get-link", req, &resp); err != nil {
		return "", err
	}
	return resp.Link, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call link service %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read link service response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Response bodies stay in the server log, never in errors shown upstream.
		c.log.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
			"body":   string(raw),
		}).Error("link service returned non-200")
		return fmt.Errorf("link service %s returned status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode link service response: %w", err)
	}
	return nil
}
