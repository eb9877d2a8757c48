package storeclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSendsOwnerAndDecodesStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/stores", r.URL.Path)

		var body createRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "owner-1", body.OwnerID)
		assert.Equal(t, "Corner Shop", body.Name)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"store-9","name":"Corner Shop"}`))
	}))
	defer server.Close()

	client, err := New(server.URL+"/", time.Second)
	require.NoError(t, err)

	store, err := client.Create(context.Background(), "owner-1", "Corner Shop", "fresh bread")
	require.NoError(t, err)
	assert.Equal(t, "store-9", store.ID)
	assert.Equal(t, "Corner Shop", store.Name)
}

func TestCreateAcceptsDataEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"store-1","name":"Kiosk"}}`))
	}))
	defer server.Close()

	client, err := New(server.URL, 0)
	require.NoError(t, err)

	store, err := client.Create(context.Background(), "owner-1", "Kiosk", "")
	require.NoError(t, err)
	assert.Equal(t, "store-1", store.ID)
}

func TestCreateReportsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "name taken", http.StatusConflict)
	}))
	defer server.Close()

	client, err := New(server.URL, time.Second)
	require.NoError(t, err)

	_, err = client.Create(context.Background(), "owner-1", "Kiosk", "")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
	assert.Equal(t, "name taken", statusErr.Body)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("  ", time.Second)
	require.Error(t, err)
}
