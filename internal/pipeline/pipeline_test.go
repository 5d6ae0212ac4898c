package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketintel/internal/apperr"
	"marketintel/internal/core"
	"marketintel/internal/signals"
	"marketintel/internal/snapshot"
	"marketintel/internal/vectorstore"
)

type fakeSources struct {
	articles []core.Article
}

func (f *fakeSources) FetchAll(context.Context, string, time.Time) []core.Article {
	return f.articles
}

type fakeStore struct {
	upsertErr error
	recent    []core.Article
	stored    int
}

func (f *fakeStore) UpsertBatch(_ context.Context, articles []core.Article) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.stored = len(articles)
	return len(articles), nil
}

func (f *fakeStore) Search(context.Context, vectorstore.SearchQuery) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (f *fakeStore) RecentArticles(context.Context, string, int) ([]core.Article, error) {
	return f.recent, nil
}

func (f *fakeStore) CountForIndustry(context.Context, string) (int, error) {
	return f.stored, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeFetcher struct {
	pack core.SignalPack
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, industry string) (core.SignalPack, error) {
	if f.err != nil {
		return core.SignalPack{}, f.err
	}
	pack := f.pack
	pack.Industry = industry
	return pack, nil
}

type fakeWriter struct {
	saved   []core.MarketSnapshot
	saveErr error
}

func (f *fakeWriter) Save(_ context.Context, snap core.MarketSnapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, snap)
	return nil
}

type fakeCacher struct {
	set []core.MarketSnapshot
	err error
}

func (f *fakeCacher) Set(_ context.Context, snap core.MarketSnapshot) error {
	if f.err != nil {
		return f.err
	}
	f.set = append(f.set, snap)
	return nil
}

func corpus(now time.Time) []core.Article {
	return []core.Article{
		{Source: "wire", Title: "AI spend up", URL: "https://example.com/1",
			PublishedAt: now.Add(-24 * time.Hour), Content: "body",
			Sentiment: 0.4, Embedding: []float64{1, 0}},
		{Source: "blog", Title: "AI hiring grows", URL: "https://example.com/2",
			PublishedAt: now.Add(-48 * time.Hour), Content: "body",
			Sentiment: 0.3, Embedding: []float64{0.98, 0.1}},
	}
}

func testPipeline(store *fakeStore, fetcher *fakeFetcher, writer *fakeWriter, cacher SnapshotCacher) *Pipeline {
	return New(
		&fakeSources{articles: store.recent},
		store,
		fetcher,
		signals.NewScorer(),
		snapshot.NewDrafter("v1", 360),
		writer,
		cacher,
		7*24*time.Hour,
	)
}

func TestRun_DraftsRequestedCards(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{recent: corpus(now)}
	writer := &fakeWriter{}
	cacher := &fakeCacher{}
	p := testPipeline(store, &fakeFetcher{pack: core.SignalPack{Sentiment: 0.3}}, writer, cacher)

	cards := []core.Card{core.CardMarketSignals, core.CardBusinessTrends}
	result, err := p.Run(context.Background(), "ai", cards)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Snapshots) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(result.Snapshots))
	}
	if len(writer.saved) != 2 {
		t.Errorf("Expected 2 persisted snapshots, got %d", len(writer.saved))
	}
	if len(cacher.set) != 2 {
		t.Errorf("Expected 2 cached snapshots, got %d", len(cacher.set))
	}
	for i, card := range cards {
		if result.Snapshots[i].Card != card {
			t.Errorf("Snapshot %d card = %q, want %q", i, result.Snapshots[i].Card, card)
		}
		if result.Snapshots[i].Industry != "ai" {
			t.Errorf("Snapshot industry = %q", result.Snapshots[i].Industry)
		}
	}
}

func TestRun_StorageFailureAborts(t *testing.T) {
	store := &fakeStore{upsertErr: apperr.New(apperr.CodeStorage, "db down", errors.New("down"))}
	writer := &fakeWriter{}
	p := testPipeline(store, &fakeFetcher{}, writer, nil)

	_, err := p.Run(context.Background(), "ai", []core.Card{core.CardMarketSignals})
	if !apperr.Is(err, apperr.CodeStorage) {
		t.Fatalf("Expected storage error, got %v", err)
	}
	if len(writer.saved) != 0 {
		t.Error("No snapshot should be drafted after a storage failure")
	}
}

func TestRun_QuantFailureDegrades(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{recent: corpus(now)}
	writer := &fakeWriter{}
	p := testPipeline(store, &fakeFetcher{err: errors.New("feed down")}, writer, nil)

	result, err := p.Run(context.Background(), "ai", []core.Card{core.CardMarketSignals})
	if err != nil {
		t.Fatalf("Run should survive a quant outage: %v", err)
	}
	if len(result.Snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(result.Snapshots))
	}
}

func TestRun_SaveFailureAborts(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{recent: corpus(now)}
	writer := &fakeWriter{saveErr: apperr.New(apperr.CodeStorage, "insert failed", nil)}
	p := testPipeline(store, &fakeFetcher{}, writer, nil)

	_, err := p.Run(context.Background(), "ai", []core.Card{core.CardMarketSignals})
	if !apperr.Is(err, apperr.CodeStorage) {
		t.Fatalf("Expected storage error, got %v", err)
	}
}

func TestRun_CacheFailureIsNonFatal(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{recent: corpus(now)}
	writer := &fakeWriter{}
	cacher := &fakeCacher{err: errors.New("redis down")}
	p := testPipeline(store, &fakeFetcher{}, writer, cacher)

	result, err := p.Run(context.Background(), "ai", []core.Card{core.CardMarketSignals})
	if err != nil {
		t.Fatalf("Run should survive a cache failure: %v", err)
	}
	if len(result.Snapshots) != 1 {
		t.Errorf("Expected 1 snapshot, got %d", len(result.Snapshots))
	}
	if len(writer.saved) != 1 {
		t.Errorf("Snapshot should still persist, got %d", len(writer.saved))
	}
}

func TestRun_ThemesFromClustering(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{recent: corpus(now)}
	p := testPipeline(store, &fakeFetcher{}, &fakeWriter{}, nil)

	result, err := p.Run(context.Background(), "ai", []core.Card{core.CardBusinessTrends})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Themes == 0 {
		t.Error("Similar embeddings should cluster into at least one theme")
	}
}
