package reveal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDecryptClient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/decrypt", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req RevealRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"101", "102"}, req.Handles)
		assert.NotEmpty(t, req.RequesterID)
		assert.NotEmpty(t, req.Signature)

		json.NewEncoder(w).Encode(RevealResult{Plaintexts: []string{"7", "19"}})
	}))
	defer ts.Close()

	client := NewHTTPDecryptClient(ts.URL, 0, nil)
	res, err := client.Decrypt(context.Background(), RevealRequest{
		Handles:     []string{"101", "102"},
		RequesterID: "abc",
		Signature:   []byte("sig"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "19"}, res.Plaintexts)
}

func TestHTTPDecryptClientForbidden(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "no access grant for requester"})
	}))
	defer ts.Close()

	client := NewHTTPDecryptClient(ts.URL, 0, nil)
	_, err := client.Decrypt(context.Background(), RevealRequest{Handles: []string{"101"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "no access grant")
}

func TestHTTPDecryptClientServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewHTTPDecryptClient(ts.URL, 0, nil)
	_, err := client.Decrypt(context.Background(), RevealRequest{Handles: []string{"101"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPLedgerClient(t *testing.T) {
	blob := newAccountBlob().processed().data
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/games/g-42/account", r.URL.Path)
		w.Write(blob)
	}))
	defer ts.Close()

	client := NewHTTPLedgerClient(ts.URL, 0, nil)
	data, err := client.ReadGameAccount(context.Background(), "g-42")
	require.NoError(t, err)
	assert.Equal(t, blob, data)

	// Parses straight through.
	acct, err := ParseGameAccount(data)
	require.NoError(t, err)
	assert.True(t, acct.CardsProcessed)
}

func TestHTTPLedgerClientNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	client := NewHTTPLedgerClient(ts.URL, 0, nil)
	_, err := client.ReadGameAccount(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
