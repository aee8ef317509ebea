package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dscraper/pkg/discord"
	errs "dscraper/pkg/errors"
	"dscraper/pkg/logger"
	"dscraper/pkg/retry"
	"dscraper/pkg/snowflake"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSearcher struct {
	mu      sync.Mutex
	pages   []*discord.SearchResponse
	errAt   int
	err     error
	queries []discord.SearchQuery
}

func (m *mockSearcher) SearchMessages(ctx context.Context, q discord.SearchQuery) (*discord.SearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.queries)
	m.queries = append(m.queries, q)
	if m.err != nil && idx == m.errAt {
		return nil, m.err
	}
	if idx >= len(m.pages) {
		return &discord.SearchResponse{Messages: [][]*discordgo.Message{}}, nil
	}
	return m.pages[idx], nil
}

func msg(id string) *discordgo.Message {
	return &discordgo.Message{ID: id}
}

func day(t *testing.T) snowflake.Window {
	t.Helper()
	w, err := snowflake.DayWindow(1, 1, 2020, time.UTC)
	require.NoError(t, err)
	return w
}

func TestFlatten(t *testing.T) {
	groups := [][]*discordgo.Message{
		{msg("1"), msg("2")},
		{},
		{nil, msg("3")},
	}
	got := Flatten(groups)
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[2].ID)

	assert.NotNil(t, Flatten(nil))
	assert.Empty(t, Flatten(nil))
}

func TestSearchSinglePage(t *testing.T) {
	m := &mockSearcher{pages: []*discord.SearchResponse{{
		TotalResults: 40,
		Messages:     [][]*discordgo.Message{{msg("1")}, {msg("2")}},
	}}}
	p := NewPaginator(m, Options{Filter: "has=image&include_nsfw=true", Logger: logger.NewTestLogger()})

	got, err := p.Search(context.Background(), "200", day(t), "100")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.Len(t, m.queries, 1, "default is one request per day")
	q := m.queries[0]
	assert.Equal(t, "100", q.ServerID)
	assert.Equal(t, "200", q.ChannelID)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, "has=image&include_nsfw=true", q.Filter)
	assert.Equal(t, day(t).Start, q.MinID)
	assert.Equal(t, day(t).End, q.MaxID)
}

func TestSearchFollowsOffsets(t *testing.T) {
	page := func(n int) *discord.SearchResponse {
		groups := make([][]*discordgo.Message, n)
		for i := range groups {
			groups[i] = []*discordgo.Message{msg(fmt.Sprint(i))}
		}
		return &discord.SearchResponse{TotalResults: 30, Messages: groups}
	}
	m := &mockSearcher{pages: []*discord.SearchResponse{page(25), page(5)}}
	p := NewPaginator(m, Options{MaxPages: 5})

	got, err := p.Search(context.Background(), "200", day(t), "")
	require.NoError(t, err)
	assert.Len(t, got, 30)
	require.Len(t, m.queries, 2, "stops once total_results is reached")
	assert.Equal(t, 25, m.queries[1].Offset)
	assert.True(t, m.queries[1].IsDirect())
}

func TestSearchFailureIsEmptyNotNil(t *testing.T) {
	m := &mockSearcher{err: errs.FromStatus(403, "missing access")}
	log := logger.NewTestLogger()
	p := NewPaginator(m, Options{Logger: log})

	got, err := p.Search(context.Background(), "200", day(t), "100")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeAPI))
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.True(t, log.HasMessage("WARN", "Search failed"))
}

func TestSearchLaterPageFailureKeepsCollected(t *testing.T) {
	m := &mockSearcher{
		pages: []*discord.SearchResponse{{TotalResults: 50, Messages: make([][]*discordgo.Message, 25)}},
		errAt: 1,
		err:   errs.New(errs.ErrorTypeTransport, "reset"),
	}
	m.pages[0].Messages[0] = []*discordgo.Message{msg("1")}
	p := NewPaginator(m, Options{MaxPages: 3})

	got, err := p.Search(context.Background(), "200", day(t), "100")
	require.Error(t, err)
	assert.Len(t, got, 1)
}

// A 429 must be retried with backoff, never reported as an empty day.
func TestSearchRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.01")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"message":"You are being rate limited.","retry_after":0.01,"global":false}`)
			return
		}
		fmt.Fprint(w, `{"total_results":1,"messages":[[{"id":"42","attachments":[{"url":"https://cdn/a/1/x.png"}]}]]}`)
	}))
	defer srv.Close()

	client := discord.NewClient(discord.Options{
		BaseURL:    srv.URL,
		Token:      "token",
		MaxRetries: 3,
		Backoff:    retry.NewErrorTypeBackoff(time.Millisecond, 50*time.Millisecond, 2),
		Logger:     logger.NewTestLogger(),
	})
	p := NewPaginator(client, Options{Timeout: 5 * time.Second})

	got, err := p.Search(context.Background(), "200", day(t), "100")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].ID)
	assert.Equal(t, int32(2), calls.Load())
}
