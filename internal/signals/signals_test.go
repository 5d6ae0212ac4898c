package signals

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketintel/internal/core"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"momentum": 0.4,
			"sentiment": -0.2,
			"competitive_pressure": 0.7,
			"capital_flow": 1.5,
			"hiring_index": 102.3,
			"price_index": 98.0,
			"sources": [{"name": "exchange feed", "url": "https://example.com/feed"}]
		}`))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.URL, "secret", 5*time.Second)
	pack, err := fetcher.Fetch(context.Background(), "fintech")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotPath != "/signals?industry=fintech" {
		t.Errorf("Request path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if pack.Momentum != 0.4 || pack.Sentiment != -0.2 {
		t.Errorf("Momentum = %f, Sentiment = %f", pack.Momentum, pack.Sentiment)
	}
	if pack.HiringIndex == nil || *pack.HiringIndex != 102.3 {
		t.Errorf("HiringIndex = %v", pack.HiringIndex)
	}
	if pack.SearchInterest != nil {
		t.Errorf("Missing optional indicator should stay nil, got %v", *pack.SearchInterest)
	}
	if len(pack.Sources) != 1 || pack.Sources[0].Name != "exchange feed" {
		t.Errorf("Sources = %v", pack.Sources)
	}
}

func TestHTTPFetcher_ClampsOutOfRangeValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"momentum": 3.0, "sentiment": -2.0, "competitive_pressure": 1.8}`))
	}))
	defer srv.Close()

	pack, err := NewHTTPFetcher(srv.URL, "", 0).Fetch(context.Background(), "fintech")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if pack.Momentum != 1 || pack.Sentiment != -1 || pack.CompetitivePressure != 1 {
		t.Errorf("Clamped pack = %+v", pack)
	}
}

func TestHTTPFetcher_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL, "", 0).Fetch(context.Background(), "fintech")
	if err == nil {
		t.Fatal("Expected an error for a non-200 response")
	}
}

func TestDerivedFetcher_EmptyCorpus(t *testing.T) {
	fetcher := NewDerivedFetcher(func(context.Context, string, int) ([]core.Article, error) {
		return nil, nil
	})
	pack, err := fetcher.Fetch(context.Background(), "fintech")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if pack.Momentum != 0 || pack.Sentiment != 0 {
		t.Errorf("Empty corpus should yield zeroed indicators, got %+v", pack)
	}
	if len(pack.Sources) != 1 {
		t.Errorf("Sources = %v", pack.Sources)
	}
}

func TestDerivedFetcher_MomentumFromCadence(t *testing.T) {
	now := time.Now().UTC()
	articles := []core.Article{
		{Source: "wire", PublishedAt: now.Add(-24 * time.Hour), Sentiment: 0.4},
		{Source: "wire", PublishedAt: now.Add(-48 * time.Hour), Sentiment: 0.2},
		{Source: "ledger", PublishedAt: now.Add(-10 * 24 * time.Hour), Sentiment: 0.0},
	}
	fetcher := NewDerivedFetcher(func(context.Context, string, int) ([]core.Article, error) {
		return articles, nil
	})
	pack, err := fetcher.Fetch(context.Background(), "fintech")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	// two recent vs one prior: (2-1)/(2+1)
	want := 1.0 / 3.0
	if pack.Momentum < want-1e-9 || pack.Momentum > want+1e-9 {
		t.Errorf("Momentum = %f, want %f", pack.Momentum, want)
	}
	if pack.CompetitivePressure != 0.2 {
		t.Errorf("CompetitivePressure = %f, want 0.2 for two outlets", pack.CompetitivePressure)
	}
}
