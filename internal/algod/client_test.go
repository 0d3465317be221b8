package algod

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{
		BaseURL:      url,
		Token:        "secret",
		Timeout:      5 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
}

func TestClient_TransactionParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/transactions/params", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(tokenHeader))
		_, _ = io.WriteString(w, `{"consensus-version":"v38","fee":0,"genesis-hash":"SGO1GKSzyE7IEPItTxCByw9x8FmnrCDexi9/cOUJOiI=","genesis-id":"testnet-v1.0","last-round":500,"min-fee":1000}`)
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL).TransactionParams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), p.MinFee)
	assert.Len(t, p.GenesisHash, 32)

	sp := p.Suggested()
	assert.True(t, sp.FlatFee)
	assert.Equal(t, uint64(1000), uint64(sp.Fee))
	assert.Equal(t, uint64(500), uint64(sp.FirstRoundValid))
	assert.Equal(t, uint64(1500), uint64(sp.LastRoundValid))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"index":31566704,"params":{"decimals":6,"name":"USDC","unit-name":"USDC","total":18446744073709551615}}`)
	}))
	defer srv.Close()

	a, err := newTestClient(srv.URL).AssetInformation(context.Background(), 31566704)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, uint32(6), a.Params.Decimals)
	assert.Equal(t, "USDC", a.Params.UnitName)
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"account not found"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).AccountInformation(context.Background(), "ADDR")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "account not found", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_SendRawTransactionSingleAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-binary", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte{1, 2, 3}, body)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"TransactionPool.Remember: transaction X: logic eval error: would result negative"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).SendRawTransaction(context.Background(), []byte{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would result negative")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_PendingTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/transactions/pending/TXID", r.URL.Path)
		_, _ = io.WriteString(w, `{"confirmed-round":42,"pool-error":""}`)
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL).PendingTransactionInformation(context.Background(), "TXID")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.ConfirmedRound)
	assert.Empty(t, p.PoolError)
}

func TestAccount_Helpers(t *testing.T) {
	acct := &Account{
		Amount: 5_000_000,
		Assets: []AssetHolding{{AssetID: 10, Amount: 7}},
		AppsLocalState: []LocalState{{
			ID: 62368684,
			KeyValue: []TealKeyValue{
				{Key: "czE=", Value: TealValue{Type: 2, Uint: 123}}, // s1
				{Key: "cA==", Value: TealValue{Type: 1, Bytes: "AA=="}},
			},
		}},
	}

	bal, ok := acct.Holding(0)
	assert.True(t, ok)
	assert.Equal(t, uint64(5_000_000), bal)
	assert.True(t, acct.OptedIn(10))
	assert.False(t, acct.OptedIn(11))

	ls, ok := acct.LocalState(62368684)
	require.True(t, ok)
	uints, err := ls.Uints()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{"s1": 123}, uints)

	_, ok = acct.LocalState(1)
	assert.False(t, ok)
}
