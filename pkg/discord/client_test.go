package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	errs "dscraper/pkg/errors"
	"dscraper/pkg/logger"
	"dscraper/pkg/retry"
	"dscraper/pkg/snowflake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff() *retry.ErrorTypeBackoff {
	b := &retry.ConstantBackoff{Delay: time.Millisecond}
	return &retry.ErrorTypeBackoff{
		TransportBackoff:   b,
		RateLimitBackoff:   b,
		ServerErrorBackoff: b,
		DefaultBackoff:     b,
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server, *logger.TestLogger) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger()
	client := NewClient(Options{
		BaseURL:      srv.URL,
		Token:        "secret-token",
		Agent:        "dscraper-test",
		BrowserAgent: "Mozilla/5.0 test",
		Timeout:      2 * time.Second,
		MaxRetries:   3,
		Backoff:      fastBackoff(),
		Logger:       log,
	})
	return client, srv, log
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchGuild(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v9/guilds/100", r.URL.Path)
		assert.Equal(t, "secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "dscraper-test", r.Header.Get("User-Agent"))
		writeJSON(w, http.StatusOK, map[string]string{"id": "100", "name": "Gophers"})
	}))

	guild, err := client.FetchGuild(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "Gophers", guild.Name)
}

func TestFetchChannelNotFound(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Unknown Channel"})
	}))

	_, err := client.FetchChannel(context.Background(), "200")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
}

func TestSearchGuildRequest(t *testing.T) {
	window, err := snowflake.DayWindow(1, 1, 2020, time.UTC)
	require.NoError(t, err)

	var seen *http.Request
	client, srv, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"total_results": 2,
			"messages": [][]map[string]interface{}{
				{{"id": "1", "attachments": []map[string]string{{"url": "https://cdn/a/b.png"}}}},
				{{"id": "2"}, {"id": "3"}},
			},
		})
	}))

	resp, err := client.SearchMessages(context.Background(), SearchQuery{
		ServerID:  "100",
		ChannelID: "200",
		MinID:     window.Start,
		MaxID:     window.End,
		Filter:    "has=image&include_nsfw=true",
	})
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "/api/v9/guilds/100/messages/search", seen.URL.Path)
	q := seen.URL.Query()
	assert.Equal(t, "200", q.Get("channel_id"))
	assert.Equal(t, window.Start.String(), q.Get("min_id"))
	assert.Equal(t, window.End.String(), q.Get("max_id"))
	assert.Equal(t, "image", q.Get("has"))
	assert.Equal(t, "true", q.Get("include_nsfw"))
	assert.Equal(t, srv.URL+"/channels/100/200", seen.Header.Get("Referer"))

	assert.Equal(t, 2, resp.TotalResults)
	require.Len(t, resp.Messages, 2)
	assert.Len(t, resp.Messages[1], 2)
	assert.Equal(t, "https://cdn/a/b.png", resp.Messages[0][0].Attachments[0].URL)
}

func TestSearchDirectRequestUsesMeReferer(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v9/channels/300/messages/search", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("channel_id"))
		assert.Equal(t, r.Header.Get("Referer"), "http://"+r.Host+"/channels/@me/300")
		writeJSON(w, http.StatusOK, map[string]interface{}{"total_results": 0, "messages": []interface{}{}})
	}))

	resp, err := client.SearchMessages(context.Background(), SearchQuery{ChannelID: "300", MinID: 1 << 22, MaxID: 2 << 22})
	require.NoError(t, err)
	assert.Empty(t, resp.Messages)
}

func TestRefererOverlayDoesNotLeakIntoBaseHeaders(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"messages": []interface{}{}})
	}))

	_, err := client.SearchMessages(context.Background(), SearchQuery{ServerID: "1", ChannelID: "2"})
	require.NoError(t, err)
	assert.Empty(t, client.apiHeaders.Get("Referer"))
}

func TestSearchRetriesRateLimitHonouringRetryAfter(t *testing.T) {
	var calls atomic.Int32
	var firstAt, secondAt time.Time

	client, _, log := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			firstAt = time.Now()
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"message":     "You are being rate limited.",
				"retry_after": 0.05,
				"global":      false,
			})
		default:
			secondAt = time.Now()
			writeJSON(w, http.StatusOK, map[string]interface{}{"total_results": 0, "messages": []interface{}{}})
		}
	}))

	resp, err := client.SearchMessages(context.Background(), SearchQuery{ServerID: "1", ChannelID: "2"})
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, secondAt.Sub(firstAt), 45*time.Millisecond)
	assert.True(t, log.HasMessage("WARN", "Rate limit"))
}

func TestSearchIndexNotReadyIsRetried(t *testing.T) {
	var calls atomic.Int32
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusAccepted, map[string]interface{}{"message": "Index not yet available.", "retry_after": 0.01})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"messages": []interface{}{}})
	}))

	_, err := client.SearchMessages(context.Background(), SearchQuery{ServerID: "1", ChannelID: "2"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitExhaustionReturnsTypedError(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"retry_after": 0})
	}))

	_, err := client.SearchMessages(context.Background(), SearchQuery{ServerID: "1", ChannelID: "2"})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeRateLimit, errs.TypeOf(err))
}

func TestSearchMalformedBody(t *testing.T) {
	tests := map[string]func(w http.ResponseWriter){
		"not json": func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html>"))
		},
		"empty body": func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
		},
	}

	for name, write := range tests {
		t.Run(name, func(t *testing.T) {
			client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				write(w)
			}))
			_, err := client.SearchMessages(context.Background(), SearchQuery{ServerID: "1", ChannelID: "2"})
			assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
		})
	}
}

func TestSearchMissingMessagesField(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"total_results": 0})
	}))

	_, err := client.SearchMessages(context.Background(), SearchQuery{ServerID: "1", ChannelID: "2"})
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "1", "name": "ok"})
	}))

	_, err := client.FetchGuild(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestForbiddenIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.FetchGuild(context.Background(), "1")
	assert.Equal(t, errs.ErrorTypeAPI, errs.TypeOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportFailure(t *testing.T) {
	client := NewClient(Options{
		BaseURL:    "http://127.0.0.1:1",
		Timeout:    200 * time.Millisecond,
		MaxRetries: 0,
		Logger:     logger.NewNopLogger(),
	})

	_, err := client.FetchGuild(context.Background(), "1")
	assert.Equal(t, errs.ErrorTypeTransport, errs.TypeOf(err))
}

func TestCancelledContext(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchGuild(ctx, "1")
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestOpenAttachmentUsesBrowserAgentWithoutToken(t *testing.T) {
	client, srv, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "Mozilla/5.0 test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("png-bytes"))
	}))

	body, err := client.OpenAttachment(context.Background(), srv.URL+"/attachments/1/2/cat.png")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestOpenAttachmentNotFound(t *testing.T) {
	client, srv, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.OpenAttachment(context.Background(), srv.URL+"/attachments/1/2/gone.png")
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
}
