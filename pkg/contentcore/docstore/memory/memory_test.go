package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modularcms/content-core/pkg/contentcore/docstore"
)

func seedCollection(t *testing.T) docstore.Collection {
	t.Helper()
	coll := New().Collection("items")
	ctx := context.Background()
	docs := []docstore.Document{
		{"name": "alpha", "rank": 1, "tags": []any{"x", "y"}, "status": "published"},
		{"name": "bravo", "rank": 2, "status": "draft"},
		{"name": "charlie", "rank": 3, "status": "published", "meta": map[string]any{"title": "Third"}},
	}
	for _, doc := range docs {
		_, err := coll.InsertOne(ctx, doc)
		require.NoError(t, err)
	}
	return coll
}

func TestFindPlainEquality(t *testing.T) {
	coll := seedCollection(t)

	result, err := coll.Find(context.Background(), docstore.Filter{"status": "published"}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Len(t, result.Docs, 2)
}

func TestFindComparisonOperators(t *testing.T) {
	coll := seedCollection(t)
	ctx := context.Background()

	result, err := coll.Find(ctx, docstore.Filter{"rank": map[string]any{"$gte": 2}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)

	result, err = coll.Find(ctx, docstore.Filter{"rank": map[string]any{"$lt": 2}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "alpha", result.Docs[0]["name"])

	result, err = coll.Find(ctx, docstore.Filter{"name": map[string]any{"$ne": "bravo"}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}

func TestFindNotEqualMatchesMissingField(t *testing.T) {
	coll := seedCollection(t)

	// Only charlie carries meta.title; alpha and bravo lack the field
	// entirely and still count as "not equal".
	result, err := coll.Find(context.Background(), docstore.Filter{"meta.title": map[string]any{"$ne": "Third"}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	for _, doc := range result.Docs {
		assert.NotEqual(t, "charlie", doc["name"])
	}
}

func TestFindInNinExists(t *testing.T) {
	coll := seedCollection(t)
	ctx := context.Background()

	result, err := coll.Find(ctx, docstore.Filter{"name": map[string]any{"$in": []any{"alpha", "charlie"}}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)

	result, err = coll.Find(ctx, docstore.Filter{"name": map[string]any{"$nin": []any{"alpha"}}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)

	result, err = coll.Find(ctx, docstore.Filter{"meta": map[string]any{"$exists": true}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)

	result, err = coll.Find(ctx, docstore.Filter{"meta": map[string]any{"$exists": false}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}

func TestFindRegex(t *testing.T) {
	coll := seedCollection(t)
	ctx := context.Background()

	result, err := coll.Find(ctx, docstore.Filter{"name": map[string]any{"$regex": "ALPH", "$options": "i"}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)

	result, err = coll.Find(ctx, docstore.Filter{"name": map[string]any{"$regex": "ALPH"}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)

	result, err = coll.Find(ctx, docstore.Filter{"name": map[string]any{"$not": map[string]any{"$regex": "^a"}}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}

func TestFindCombinators(t *testing.T) {
	coll := seedCollection(t)

	filter := docstore.Filter{
		"$or": []any{
			map[string]any{"name": "alpha"},
			map[string]any{"$and": []any{
				map[string]any{"status": "published"},
				map[string]any{"rank": map[string]any{"$gt": 2}},
			}},
		},
	}
	result, err := coll.Find(context.Background(), filter, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}

func TestFindDottedPath(t *testing.T) {
	coll := seedCollection(t)

	result, err := coll.Find(context.Background(), docstore.Filter{"meta.title": "Third"}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "charlie", result.Docs[0]["name"])
}

func TestFindSortLimitSkip(t *testing.T) {
	coll := seedCollection(t)

	result, err := coll.Find(context.Background(), nil, docstore.FindOptions{
		Sort:  []docstore.Sort{{Field: "rank", Desc: true}},
		Limit: 1,
		Skip:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total, "total counts all matches before paging")
	require.Len(t, result.Docs, 1)
	assert.Equal(t, "bravo", result.Docs[0]["name"])
}

func TestFindUnsupportedOperator(t *testing.T) {
	coll := seedCollection(t)

	_, err := coll.Find(context.Background(), docstore.Filter{"name": map[string]any{"$elemMatch": "x"}}, docstore.FindOptions{})
	assert.ErrorIs(t, err, docstore.ErrUnsupportedOperator)
}

func TestFindOne(t *testing.T) {
	coll := seedCollection(t)
	ctx := context.Background()

	doc, err := coll.FindOne(ctx, docstore.Filter{"name": "bravo"})
	require.NoError(t, err)
	assert.Equal(t, "draft", doc["status"])

	_, err = coll.FindOne(ctx, docstore.Filter{"name": "delta"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestUpdateMany(t *testing.T) {
	coll := seedCollection(t)
	ctx := context.Background()

	updated, err := coll.UpdateMany(ctx, docstore.Filter{"status": "published"}, docstore.Document{"status": "historic"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	result, err := coll.Find(ctx, docstore.Filter{"status": "historic"}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}

func TestDeleteMany(t *testing.T) {
	coll := seedCollection(t)
	ctx := context.Background()

	deleted, err := coll.DeleteMany(ctx, docstore.Filter{"status": "published"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	result, err := coll.Find(ctx, nil, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestDocumentsAreIsolatedCopies(t *testing.T) {
	coll := seedCollection(t)
	ctx := context.Background()

	doc, err := coll.FindOne(ctx, docstore.Filter{"name": "alpha"})
	require.NoError(t, err)
	doc["name"] = "mutated"

	fresh, err := coll.FindOne(ctx, docstore.Filter{"name": "alpha"})
	require.NoError(t, err)
	assert.Equal(t, "alpha", fresh["name"])
}

func TestNumericEqualityAcrossTypes(t *testing.T) {
	coll := New().Collection("nums")
	ctx := context.Background()
	_, err := coll.InsertOne(ctx, docstore.Document{"v": float64(5)})
	require.NoError(t, err)

	result, err := coll.Find(ctx, docstore.Filter{"v": 5}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)

	result, err = coll.Find(ctx, docstore.Filter{"v": map[string]any{"$in": []any{5}}}, docstore.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}
