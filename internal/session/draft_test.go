package session

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseDraftStore(t *testing.T, store DraftStore) {
	t.Helper()
	ctx := context.Background()
	key := Key{Session: "abc", SurveyID: 3}

	empty, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = store.Merge(ctx, key, url.Values{"question_1_10": {"a"}, "question_2_20": {"x", "y"}})
	require.NoError(t, err)
	merged, err := store.Merge(ctx, key, url.Values{"question_1_10": {"b"}, "question_2_20": nil, "question_3_30": {"c"}})
	require.NoError(t, err)
	assert.Equal(t, url.Values{"question_1_10": {"b"}, "question_3_30": {"c"}}, merged)

	other, err := store.Load(ctx, Key{Session: "abc", SurveyID: 4})
	require.NoError(t, err)
	assert.Empty(t, other)

	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, merged, loaded)

	require.NoError(t, store.Delete(ctx, key))
	loaded, err = store.Load(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestMemoryDraftStore(t *testing.T) {
	exerciseDraftStore(t, NewMemoryDraftStore(time.Hour))
}

func TestMemoryDraftStoreExpires(t *testing.T) {
	store := NewMemoryDraftStore(time.Minute)
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }
	key := Key{Session: "s", SurveyID: 1}
	_, err := store.Merge(context.Background(), key, url.Values{"f": {"v"}})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	loaded, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRedisDraftStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisDraftStore(client, "", time.Hour)
	exerciseDraftStore(t, store)

	_, err := store.Merge(context.Background(), Key{Session: "s", SurveyID: 9}, url.Values{"f": {"v"}})
	require.NoError(t, err)
	assert.True(t, mr.Exists("survey:draft:s:9"))
	assert.Greater(t, mr.TTL("survey:draft:s:9"), time.Duration(0))

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists("survey:draft:s:9"))
}

func TestAnswersDropsSeed(t *testing.T) {
	draft := url.Values{SeedField: {"42"}, "question_1_10": {"Ada"}}
	assert.Equal(t, url.Values{"question_1_10": {"Ada"}}, Answers(draft))
	assert.Equal(t, "42", draft.Get(SeedField))
	assert.Empty(t, Answers(url.Values{SeedField: {"1"}}))
}
