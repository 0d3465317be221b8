package algod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const tokenHeader = "X-Algo-API-Token"

// Client is an HTTP client with retry and timeout support for the algod REST API
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	maxRetries   int
	retryBackoff time.Duration
	logger       *logrus.Logger
}

// ClientConfig holds configuration for the algod client
type ClientConfig struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

// NewClient creates a new algod client with retry support
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       cfg.Logger,
	}
}

// TransactionParams fetches the suggested fee and validity parameters
func (c *Client) TransactionParams(ctx context.Context) (*TransactionParams, error) {
	var out TransactionParams
	if err := c.call(ctx, http.MethodGet, "/v2/transactions/params", nil, "", true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AccountInformation fetches balances, created assets and app local state
func (c *Client) AccountInformation(ctx context.Context, address string) (*Account, error) {
	var out Account
	if err := c.call(ctx, http.MethodGet, "/v2/accounts/"+url.PathEscape(address), nil, "", true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssetInformation fetches the parameters of an asset
func (c *Client) AssetInformation(ctx context.Context, assetID uint64) (*Asset, error) {
	var out Asset
	path := "/v2/assets/" + strconv.FormatUint(assetID, 10)
	if err := c.call(ctx, http.MethodGet, path, nil, "", true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendRawTransaction submits an encoded transaction group. It is never
// retried: a lost response does not mean the group was not accepted.
func (c *Client) SendRawTransaction(ctx context.Context, blob []byte) (string, error) {
	var out struct {
		TxID string `json:"txId"`
	}
	if err := c.call(ctx, http.MethodPost, "/v2/transactions", blob, "application/x-binary", false, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

// PendingTransactionInformation reports the pool or confirmation status of a transaction
func (c *Client) PendingTransactionInformation(ctx context.Context, txID string) (*PendingTransaction, error) {
	var out PendingTransaction
	path := "/v2/transactions/pending/" + url.PathEscape(txID)
	if err := c.call(ctx, http.MethodGet, path, nil, "", true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, contentType string, retry bool, result interface{}) error {
	attempts := 0
	if retry {
		attempts = c.maxRetries
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
				"path":    path,
			}).Debug("retrying algod call")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2 // exponential backoff
		}

		resp, err := c.doRequest(ctx, method, path, body, contentType)
		if err != nil {
			if !retryable(err) {
				return err
			}
			lastErr = err
			continue
		}

		if err := json.Unmarshal(resp, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}

		return nil
	}

	if !retry {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}

	return data, nil
}

// retryable reports whether a failed request may be attempted again.
// Client errors other than rate limiting are final.
func retryable(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return true
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
}
