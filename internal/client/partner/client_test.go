package partner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetUsersPageClampsPageSize(t *testing.T) {
	var gotPageSize, gotTeams string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPageSize = r.URL.Query().Get("pageSize")
		gotTeams = r.URL.Query().Get("includeUserteams")
		w.Write([]byte(`{"page":1,"pages":1,"pageSize":10,"usersTotal":3,"users":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "key")
	if _, err := c.GetUsersPage(context.Background(), "dk", "superliga", 1, 500); err != nil {
		t.Fatalf("GetUsersPage: %v", err)
	}
	if gotPageSize != "10" {
		t.Fatalf("pageSize = %s, want 10", gotPageSize)
	}
	if gotTeams != "true" {
		t.Fatalf("includeUserteams = %s, want true", gotTeams)
	}
}

func TestDoRequestSendsAPIKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		w.Write([]byte(`{"id":1,"gameKey":"superliga","name":"Superliga","rounds":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "secret-key")
	if _, err := c.GetGame(context.Background(), "dk", "superliga"); err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if gotKey != "secret-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
}

func TestGetUsersPageWithRetryPermanentError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "no such game", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "key")
	c.SetRetryPolicy(3, time.Millisecond)

	_, err := c.GetUsersPageWithRetry(context.Background(), "dk", "missing", 1, 10)
	if !IsPermanent(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want APIError 404", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("requests = %d, want 1 (permanent errors are not retried)", got)
	}
}

func TestGetUsersPageWithRetryTransientThenSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"page":3,"pages":5,"pageSize":10,"users":[{"userId":"u-1","teamName":"FCK Fans"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "key")
	c.SetRetryPolicy(3, time.Millisecond)

	usersPage, err := c.GetUsersPageWithRetry(context.Background(), "dk", "superliga", 3, 10)
	if err != nil {
		t.Fatalf("GetUsersPageWithRetry: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("requests = %d, want 3", got)
	}
	if usersPage.Page != 3 || usersPage.Pages != 5 || len(usersPage.Users) != 1 {
		t.Fatalf("page = %+v", usersPage)
	}
}

func TestGetUsersPageWithRetryBudgetExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "key")
	c.SetRetryPolicy(2, time.Millisecond)

	_, err := c.GetUsersPageWithRetry(context.Background(), "dk", "superliga", 1, 10)
	if err == nil {
		t.Fatal("want error after budget exhausted")
	}
	// Initial attempt plus two retries.
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("requests = %d, want 3", got)
	}
}

func TestGetUsersPageWithRetryRetriesClientTimeout(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	// The per-request timeout fires on every attempt; it must be treated
	// like any other transient failure, not like an expired caller deadline.
	c := NewClient(&http.Client{Timeout: 20 * time.Millisecond}, srv.URL, "key")
	c.SetRetryPolicy(3, time.Millisecond)

	_, err := c.GetUsersPageWithRetry(context.Background(), "dk", "superliga", 1, 10)
	if err == nil {
		t.Fatal("want error after budget exhausted")
	}
	if !IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Fatalf("requests = %d, want 4 (initial attempt plus full retry budget)", got)
	}
}

func TestGetUsersPageWithRetryHonorsCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "key")
	c.SetRetryPolicy(5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetUsersPageWithRetry(ctx, "dk", "superliga", 1, 10)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop ignored cancellation")
	}
}

func TestIsTransientClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 500", &APIError{Status: 500}, true},
		{"http 503", &APIError{Status: 503}, true},
		{"http 429", &APIError{Status: 429}, true},
		{"http 408", &APIError{Status: 408}, true},
		{"http 404", &APIError{Status: 404}, false},
		{"http 401", &APIError{Status: 401}, false},
		{"transport failure", errors.New("connection reset"), true},
		{"context canceled", context.Canceled, false},
		// A bare deadline error is indistinguishable from a per-request
		// timeout, which is retryable; the retry loop checks its own
		// context to know when to stop.
		{"deadline exceeded", context.DeadlineExceeded, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVerifyKey(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{"valid key", http.StatusOK, true, false},
		{"unauthorized", http.StatusUnauthorized, false, false},
		{"forbidden", http.StatusForbidden, false, false},
		{"upstream down", http.StatusInternalServerError, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/apikeycheck" {
					t.Errorf("path = %s, want /apikeycheck", r.URL.Path)
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c := NewClient(srv.Client(), srv.URL, "key")
			ok, err := c.VerifyKey(context.Background())
			if tc.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if ok != tc.want {
				t.Fatalf("valid = %v, want %v", ok, tc.want)
			}
		})
	}
}
