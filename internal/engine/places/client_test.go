package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/rendis/eyescan/internal/ratelimit"
)

func noWait(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestClient(url string) *Client {
	return NewClient("test-key", Options{BaseURL: url, Wait: noWait, BaseBackoff: time.Millisecond})
}

func TestClient_NearbyParams(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nearbysearch/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"location": "12.9716,77.5946",
			"radius":   "15000",
			"keyword":  "eye hospital",
			"type":     "hospital",
			"key":      "test-key",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("param %s = %q, want %q", k, q.Get(k), v)
			}
		}
		if q.Has("pagetoken") {
			t.Error("first page must not send a page token")
		}
		w.Write([]byte(`{"status":"OK","next_page_token":"tok","results":[
			{"place_id":"p1","name":"Nethra","geometry":{"location":{"lat":12.9,"lng":77.6}}},
			{"place_id":"p2","name":"Drishti"}]}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	resp, err := c.Nearby(context.Background(), NearbyRequest{
		Lat: 12.9716, Lng: 77.5946, Radius: 15000, Keyword: "eye hospital", Type: "hospital",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.NextPageToken != "tok" || len(resp.Results) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Results[0].Geometry == nil || resp.Results[0].Geometry.Location.Lat != 12.9 {
		t.Errorf("expected geometry on first result")
	}
	if resp.Results[1].Geometry != nil {
		t.Errorf("expected no geometry on second result")
	}
}

func TestClient_PageTokenOnly(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("pagetoken") != "abc" {
			t.Errorf("pagetoken = %q", q.Get("pagetoken"))
		}
		if q.Has("query") || q.Has("location") {
			t.Error("page token request should carry no search parameters")
		}
		w.Write([]byte(`{"status":"OK","results":[]}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	if _, err := c.Text(context.Background(), TextRequest{Query: "eye clinic Bangalore", PageToken: "abc"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Details(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("place_id") != "p1" {
			t.Errorf("place_id = %q", q.Get("place_id"))
		}
		if q.Get("fields") != "name,formatted_address,geometry,rating,user_ratings_total,website,formatted_phone_number,opening_hours" {
			t.Errorf("fields = %q", q.Get("fields"))
		}
		w.Write([]byte(`{"status":"OK","result":{"name":"Nethra","rating":4.5,"user_ratings_total":320,
			"geometry":{"location":{"lat":12.9,"lng":77.6}},"opening_hours":{"open_now":true}}}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	d, err := c.Details(context.Background(), "p1", DetailFields)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "Nethra" || *d.Rating != 4.5 || *d.UserRatingsTotal != 320 {
		t.Errorf("unexpected details %+v", d)
	}
	if d.Website != "" || d.FormattedPhoneNumber != "" {
		t.Errorf("absent fields should decode empty")
	}
	if d.OpeningHours == nil || d.OpeningHours.OpenNow == nil || !*d.OpeningHours.OpenNow {
		t.Errorf("expected open_now=true")
	}
}

func TestClient_ZeroResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer ts.Close()

	resp, err := newTestClient(ts.URL).Text(context.Background(), TextRequest{Query: "nothing"})
	if err != nil {
		t.Fatalf("ZERO_RESULTS should not be an error: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected no results")
	}
}

func TestClient_QuotaNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"billing not enabled"}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Nearby(context.Background(), NearbyRequest{Lat: 1, Lng: 2})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !se.Quota() || se.Message != "billing not enabled" {
		t.Errorf("unexpected status error %+v", se)
	}
	if calls.Load() != 1 {
		t.Errorf("quota rejection should not be retried, got %d calls", calls.Load())
	}
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte(`{"status":"UNKNOWN_ERROR"}`))
			return
		}
		w.Write([]byte(`{"status":"OK","results":[{"place_id":"p1","name":"A"}]}`))
	}))
	defer ts.Close()

	var waits []time.Duration
	c := NewClient("k", Options{
		BaseURL:     ts.URL,
		BaseBackoff: 10 * time.Millisecond,
		Wait: func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	})

	resp, err := c.Nearby(context.Background(), NearbyRequest{Lat: 1, Lng: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("expected 1 result")
	}
	if len(waits) != 2 {
		t.Fatalf("expected 2 backoff waits, got %d", len(waits))
	}
	if waits[0] < 10*time.Millisecond || waits[1] < 20*time.Millisecond {
		t.Errorf("backoff should grow exponentially, got %v", waits)
	}
}

func TestClient_RetriesSpendBudget(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Write([]byte(`{"status":"UNKNOWN_ERROR"}`))
			return
		}
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer ts.Close()

	budget := ratelimit.NewBudget(0, 0)
	c := NewClient("k", Options{BaseURL: ts.URL, Wait: noWait, BaseBackoff: time.Millisecond, Budget: budget})

	// The caller pays for the first attempt.
	if err := budget.Spend(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Text(context.Background(), TextRequest{Query: "eye hospital Bangalore"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := budget.Calls(); got != int64(calls.Load()) {
		t.Errorf("budget counted %d calls, server saw %d", got, calls.Load())
	}
}

func TestClient_HTTPErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Details(context.Background(), "p1", nil)
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPError 503, got %v", err)
	}
	if calls.Load() != defaultRetries {
		t.Errorf("expected %d attempts, got %d", defaultRetries, calls.Load())
	}
}

func TestClient_Malformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Text(context.Background(), TextRequest{Query: "x"})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestClient_MissingStatusIsMalformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Text(context.Background(), TextRequest{Query: "x"})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestClient_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := newTestClient(url).Text(context.Background(), TextRequest{Query: "x"})
	if err == nil {
		t.Fatal("expected error against a closed server")
	}
	var se *StatusError
	var he *HTTPError
	if errors.As(err, &se) || errors.As(err, &he) || errors.Is(err, ErrMalformed) {
		t.Errorf("expected a plain transport error, got %v", err)
	}
}

func TestIsStatus(t *testing.T) {
	err := error(&StatusError{Endpoint: EndpointNearby, Status: StatusInvalidRequest})
	if !IsStatus(err, StatusInvalidRequest) {
		t.Error("expected INVALID_REQUEST match")
	}
	if IsStatus(errors.New("other"), StatusInvalidRequest) {
		t.Error("plain error should not match")
	}
}

func TestNewTransport(t *testing.T) {
	if tr := NewTransport(false, ""); tr.DialTLSContext != nil {
		t.Error("standard transport should use the default TLS stack")
	}
	if tr := NewTransport(true, ""); tr.DialTLSContext == nil {
		t.Error("chrome transport should install a custom TLS dialer")
	}
	tr := NewTransport(true, "http://127.0.0.1:8080")
	if tr.DialTLSContext != nil || tr.Proxy == nil {
		t.Error("proxy should fall back to the standard TLS stack")
	}
}

func TestChromeHello_OffersHTTP1Only(t *testing.T) {
	spec, err := chromeHello()
	if err != nil {
		t.Fatalf("chromeHello: %v", err)
	}
	found := false
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			found = true
			if len(alpn.AlpnProtocols) != 1 || alpn.AlpnProtocols[0] != "http/1.1" {
				t.Errorf("ALPN = %v, want [http/1.1]", alpn.AlpnProtocols)
			}
		}
	}
	if !found {
		t.Error("chrome hello has no ALPN extension")
	}
}
