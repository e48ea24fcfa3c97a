package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientDo_SetsDefaultHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
	}))
	t.Cleanup(srv.Close)

	c := New(2 * time.Second)
	c.Headers = map[string]string{"Accept": "text/csv"}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "quotefeed/1.0", gotUA)
	require.Equal(t, "text/csv", gotAccept)
}

func TestClientDo_RequestHeadersWin(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	t.Cleanup(srv.Close)

	c := New(2 * time.Second)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom/2.0")

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "custom/2.0", gotUA)
}

func TestClientDo_HonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c := New(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Do(ctx, req)
	require.Error(t, err)
}

func TestNew_DefaultTimeout(t *testing.T) {
	require.Equal(t, 10*time.Second, New(0).HTTP.Timeout)
}
