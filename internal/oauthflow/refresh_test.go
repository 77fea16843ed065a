package oauthflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresher_Refresh(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
		assert.Equal(t, "client-1", r.Form.Get("client_id"))
		assert.Equal(t, "secret-1", r.Form.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600,"token_type":"Bearer","user_id":"alice"}`))
	}))
	defer ts.Close()

	r := &Refresher{HTTPClient: ts.Client()}
	res, err := r.Refresh(context.Background(), testConfig(ts.URL), TokenResult{RefreshToken: "old-refresh"})
	require.NoError(t, err)
	assert.Equal(t, "new-access", res.AccessToken)
	assert.Equal(t, "new-refresh", res.RefreshToken)
	assert.Equal(t, "alice", res.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, time.Minute)
}

func TestRefresher_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","token_type":"Bearer"}`))
	}))
	defer ts.Close()

	r := &Refresher{HTTPClient: ts.Client()}
	res, err := r.Refresh(context.Background(), testConfig(ts.URL), TokenResult{RefreshToken: "keep-me", UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "keep-me", res.RefreshToken)
	assert.Equal(t, "bob", res.UserID)
	assert.True(t, res.ExpiresAt.IsZero())
}

func TestRefresher_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer ts.Close()

	r := &Refresher{HTTPClient: ts.Client()}
	_, err := r.Refresh(context.Background(), testConfig(ts.URL), TokenResult{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token refresh failed")
}

func TestRefresher_NoRefreshToken(t *testing.T) {
	r := &Refresher{}
	_, err := r.Refresh(context.Background(), testConfig("https://cloud.example.com/token"), TokenResult{AccessToken: "a"})
	assert.Error(t, err)
}

func TestRefresher_ConcurrentCallsShareRequest(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"shared","token_type":"Bearer"}`))
	}))
	defer ts.Close()

	r := &Refresher{HTTPClient: ts.Client()}
	cfg := testConfig(ts.URL)

	var wg sync.WaitGroup
	results := make([]*TokenResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Refresh(context.Background(), cfg, TokenResult{RefreshToken: "same"})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "shared", res.AccessToken)
	}
}

func TestRefresher_CancelledCallerDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"shared","token_type":"Bearer"}`))
	}))
	defer ts.Close()

	r := &Refresher{HTTPClient: ts.Client()}
	cfg := testConfig(ts.URL)
	current := TokenResult{RefreshToken: "same"}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := r.Refresh(ctxA, cfg, current)
		errA <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh request never reached the token endpoint")
	}

	type outcome struct {
		tok *TokenResult
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		tok, err := r.Refresh(context.Background(), cfg, current)
		resB <- outcome{tok, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case out := <-resB:
		require.NoError(t, out.err)
		assert.Equal(t, "shared", out.tok.AccessToken)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
}
