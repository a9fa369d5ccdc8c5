package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetdeck/fleetdeck/pkg/cerr"
)

func TestHTTPPort_InvokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/invoke/getTasks", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"owner":"alice"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"tasks":[]}}`))
	}))
	defer srv.Close()

	port := NewHTTPPort(srv.URL, WithAPIKey("secret"))
	data, err := port.Invoke(context.Background(), OpGetTasks, map[string]string{"owner": "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks":[]}`, string(data))
}

func TestHTTPPort_InvokeNilParamsSendsEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(body))
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	_, err := NewHTTPPort(srv.URL).Invoke(context.Background(), OpGetVehicles, nil)
	require.NoError(t, err)
}

func TestHTTPPort_EnvelopeFailureBecomesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":{"code":"FailedPrecondition","message":"cannot run task in state WORKING"}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPPort(srv.URL).Invoke(context.Background(), OpRunTask, map[string]string{"id": "t1"})
	require.Error(t, err)

	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, OpRunTask, rej.Operation)
	assert.Equal(t, "FailedPrecondition", rej.Code)
	assert.Equal(t, cerr.FailedPrecondition, CodeOf(err))
}

func TestHTTPPort_Non200WithErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"NotFound","message":"not found"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPPort(srv.URL).Invoke(context.Background(), OpGetTools, nil)
	require.Error(t, err)
	assert.Equal(t, cerr.NotFound, CodeOf(err))
}

func TestHTTPPort_TimeoutMapsToDeadlineExceeded(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	port := NewHTTPPort(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := port.Invoke(context.Background(), OpGetTasks, nil)
	require.Error(t, err)
	assert.Equal(t, cerr.DeadlineExceeded, CodeOf(err))
}

func TestDecodeEnvelope_FailureWithoutDetail(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(`{"success":false}`), &env))

	_, err := DecodeEnvelope(OpGetTasks, &env)
	require.Error(t, err)
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.NotEmpty(t, rej.Message)
	// A rejection without a code falls back to Unknown, not Unavailable.
	assert.Equal(t, cerr.Unknown, CodeOf(err))
}
