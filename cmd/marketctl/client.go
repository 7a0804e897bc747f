package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/uhyunpark/hypermarket/pkg/api"
)

// client is a thin wrapper over the node REST API
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// get fetches path and returns the raw JSON body
func (c *client) get(path string) ([]byte, error) {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return nil, err
	}
	return readResponse(resp)
}

// post sends body as JSON to path and returns the raw JSON answer
func (c *client) post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return readResponse(resp)
}

func (c *client) nonce(addr string) (uint64, error) {
	body, err := c.get("/api/v1/accounts/" + addr + "/nonce")
	if err != nil {
		return 0, err
	}
	var info api.NonceInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return 0, fmt.Errorf("decode nonce: %w", err)
	}
	return info.Nonce, nil
}

func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var e api.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			if e.Message != "" {
				return nil, fmt.Errorf("%s: %s (HTTP %d)", e.Error, e.Message, resp.StatusCode)
			}
			return nil, fmt.Errorf("%s (HTTP %d)", e.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// printJSON re-indents a JSON document for the terminal
func printJSON(w io.Writer, raw []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		_, err = w.Write(raw)
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}
