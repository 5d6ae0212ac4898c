package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketintel/internal/apperr"
	"marketintel/internal/core"
)

type fakeEmbedder struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float64, error) {
	f.calls++
	if f.failFor[text] {
		return nil, errors.New("embedding unavailable")
	}
	return []float64{0.1, 0.2, 0.3}, nil
}

func storedArticle(url string, published time.Time) core.Article {
	return core.Article{
		Industry:    "fintech",
		Source:      "wire",
		Title:       "t",
		URL:         url,
		PublishedAt: published,
		Content:     "Title: t\n\nContent: body " + url,
	}
}

func TestUpsertBatch_StoresArticles(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPgVectorStore(db, &fakeEmbedder{}, WithBatching(5, 0))
	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO market_articles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO market_articles").WillReturnResult(sqlmock.NewResult(0, 1))

	stored, err := store.UpsertBatch(context.Background(), []core.Article{
		storedArticle("https://example.com/1", published),
		storedArticle("https://example.com/2", published),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatch_DuplicateKeySubmittedTwice(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	embedder := &fakeEmbedder{}
	store := NewPgVectorStore(db, embedder, WithBatching(5, 0))
	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	// One row and one embedding call for the pair of identical submissions.
	mock.ExpectExec("INSERT INTO market_articles").WillReturnResult(sqlmock.NewResult(0, 1))

	stored, err := store.UpsertBatch(context.Background(), []core.Article{
		storedArticle("https://example.com/1", published),
		storedArticle("https://example.com/1", published),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.Equal(t, 1, embedder.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatch_ConflictCountsAsZero(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPgVectorStore(db, &fakeEmbedder{}, WithBatching(5, 0))
	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	// ON CONFLICT DO NOTHING reports zero rows affected for the re-ingest.
	mock.ExpectExec("INSERT INTO market_articles").WillReturnResult(sqlmock.NewResult(0, 0))

	stored, err := store.UpsertBatch(context.Background(), []core.Article{
		storedArticle("https://example.com/1", published),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
}

func TestUpsertBatch_EmbeddingFailureSkipsItem(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	bad := storedArticle("https://example.com/bad", published)
	good := storedArticle("https://example.com/good", published)
	embedder := &fakeEmbedder{failFor: map[string]bool{bad.Content: true}}
	store := NewPgVectorStore(db, embedder, WithBatching(5, 0))

	mock.ExpectExec("INSERT INTO market_articles").WillReturnResult(sqlmock.NewResult(0, 1))

	stored, err := store.UpsertBatch(context.Background(), []core.Article{bad, good})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatch_StorageFailureAborts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPgVectorStore(db, &fakeEmbedder{}, WithBatching(5, 0))
	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO market_articles").WillReturnError(errors.New("connection lost"))

	_, err = store.UpsertBatch(context.Background(), []core.Article{
		storedArticle("https://example.com/1", published),
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeStorage))
}

func TestSearch_MapsRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPgVectorStore(db, &fakeEmbedder{})
	published := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "industry", "source", "title", "url", "published_at",
		"summary", "content", "sentiment", "similarity",
	}).AddRow("id-1", "fintech", "wire", "t", "https://example.com/1",
		published, "s", "c", 0.2, 0.91)
	mock.ExpectQuery("FROM market_articles").WillReturnRows(rows)

	results, err := store.Search(context.Background(), SearchQuery{
		Embedding: []float64{0.1, 0.2, 0.3},
		Limit:     5,
		Threshold: 0.8,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/1", results[0].Article.URL)
	assert.Equal(t, 0.91, results[0].Similarity)
}

func TestSearch_ErrorWrapped(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPgVectorStore(db, &fakeEmbedder{})
	mock.ExpectQuery("FROM market_articles").WillReturnError(errors.New("down"))

	_, err = store.Search(context.Background(), SearchQuery{Embedding: []float64{0.1}})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeSearch))
}

func TestDefaultSearchQuery(t *testing.T) {
	q := DefaultSearchQuery([]float64{0.1, 0.2})
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 0.8, q.Threshold)
	assert.Empty(t, q.Industry)
	assert.Len(t, q.Embedding, 2)
}

func TestCountForIndustry(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	store := NewPgVectorStore(db, &fakeEmbedder{})
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("fintech").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := store.CountForIndustry(context.Background(), "fintech")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestFormatVector(t *testing.T) {
	got := formatVector([]float64{0.5, -1, 0})
	assert.Equal(t, "[0.500000,-1.000000,0.000000]", got)
	assert.Equal(t, "[]", formatVector(nil))
}

func TestParseVector_RoundTrip(t *testing.T) {
	vec := parseVector("[0.500000,-1.000000,0.000000]")
	require.Len(t, vec, 3)
	assert.Equal(t, 0.5, vec[0])
	assert.Equal(t, -1.0, vec[1])
}
