// Package vaultclient reads the session-store server secret from a Vault KV
// v2 mount at startup, so multi-instance deployments share one sealing key
// without putting it in the environment.
package vaultclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	addr       string
	token      string
	httpClient *http.Client
}

func New(addr, token string) *Client {
	return &Client{
		addr:       strings.TrimRight(addr, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) ReadKV(ctx context.Context, path string, out any) error {
	if c == nil {
		return errors.New("vault client is nil")
	}
	if c.addr == "" || c.token == "" {
		return errors.New("vault addr or token missing")
	}
	if path == "" {
		return errors.New("vault path is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+"/v1/"+strings.TrimLeft(path, "/"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Vault-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vault read failed: status %d", resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			Data json.RawMessage `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	if len(envelope.Data.Data) == 0 {
		return errors.New("vault response missing data")
	}
	return json.Unmarshal(envelope.Data.Data, out)
}

// ReadSessionSecret fetches the base64 sealing secret stored under the given
// KV path as {"secret": "<base64>"}.
func (c *Client) ReadSessionSecret(ctx context.Context, path string) ([]byte, error) {
	var payload struct {
		Secret string `json:"secret"`
	}
	if err := c.ReadKV(ctx, path, &payload); err != nil {
		return nil, err
	}
	if payload.Secret == "" {
		return nil, errors.New("vault secret payload is empty")
	}
	secret, err := base64.StdEncoding.DecodeString(payload.Secret)
	if err != nil {
		return nil, fmt.Errorf("decode vault secret: %w", err)
	}
	return secret, nil
}
