package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func TestSendText_Success(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(sendResponse{MessageID: "wamid.abc"})
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "key", testLogger(t))
	id, err := s.SendText(context.Background(), "+5215550001111", "+5215559992222", "hola")
	require.NoError(t, err)
	assert.Equal(t, "wamid.abc", id)
	assert.Equal(t, "hola", got.Body)
	assert.Equal(t, "+5215559992222", got.To)
}

func TestSendText_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(sendResponse{MessageID: "wamid.retry"})
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "key", testLogger(t))
	id, err := s.SendText(context.Background(), "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, "wamid.retry", id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendText_ClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad recipient", http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "key", testLogger(t))
	_, err := s.SendText(context.Background(), "a", "b", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendText_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "key", testLogger(t))
	_, err := s.SendText(context.Background(), "a", "b", "c")
	require.Error(t, err)
	assert.Equal(t, int32(sendAttempts), calls.Load())
}

func TestSendText_MissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := NewSender(srv.URL, "key", testLogger(t))
	_, err := s.SendText(context.Background(), "a", "b", "c")
	assert.Error(t, err)
}
