// Package search runs the per-day message searches of a scan.
package search

import (
	"context"
	"time"

	"dscraper/pkg/discord"
	errs "dscraper/pkg/errors"
	"dscraper/pkg/logger"
	"dscraper/pkg/metrics"
	"dscraper/pkg/snowflake"

	"github.com/bwmarrin/discordgo"
)

// Searcher runs a single search page
type Searcher interface {
	SearchMessages(ctx context.Context, q discord.SearchQuery) (*discord.SearchResponse, error)
}

// Options configures a Paginator
type Options struct {
	// Filter is the encoded has=/include_nsfw fragment.
	Filter string
	// MaxPages caps the requests per window. Values below 1 mean 1.
	MaxPages int
	// Timeout bounds each request including retries. Zero disables it.
	Timeout time.Duration
	Logger  logger.Logger
}

// Paginator searches one channel over one time window
type Paginator struct {
	api      Searcher
	filter   string
	maxPages int
	timeout  time.Duration
	logger   logger.Logger
}

// NewPaginator creates a paginator over api
func NewPaginator(api Searcher, opts Options) *Paginator {
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Paginator{
		api:      api,
		filter:   opts.Filter,
		maxPages: opts.MaxPages,
		timeout:  opts.Timeout,
		logger:   log.WithField("component", "search"),
	}
}

// Search returns the messages posted in channelID during window. serverID
// selects the guild endpoint; empty means a direct-message channel.
//
// The result is never nil. When the first page fails it is empty and the
// typed error is returned; when a later page fails the messages collected
// so far are returned together with the error.
func (p *Paginator) Search(ctx context.Context, channelID string, window snowflake.Window, serverID string) ([]*discordgo.Message, error) {
	q := discord.SearchQuery{
		ServerID:  serverID,
		ChannelID: channelID,
		MinID:     window.Start,
		MaxID:     window.End,
		Filter:    p.filter,
	}

	messages := make([]*discordgo.Message, 0)
	groups := 0
	for page := 0; page < p.maxPages; page++ {
		q.Offset = page * discord.SearchPageSize

		resp, err := p.fetch(ctx, q)
		if err != nil {
			metrics.RecordSearch(metrics.OutcomeFailed)
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"channel": channelID,
				"window":  window.String(),
				"offset":  q.Offset,
			}).Warn("Search failed")
			return messages, err
		}
		metrics.RecordSearch(metrics.OutcomeOK)

		messages = append(messages, Flatten(resp.Messages)...)
		groups += len(resp.Messages)
		if len(resp.Messages) == 0 || groups >= resp.TotalResults {
			break
		}
	}
	return messages, nil
}

func (p *Paginator) fetch(ctx context.Context, q discord.SearchQuery) (*discord.SearchResponse, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.api.SearchMessages(ctx, q)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errs.New(errs.ErrorTypeParsing, "empty search response")
	}
	return resp, nil
}

// Flatten concatenates the message groups of a search response in order,
// dropping nil entries
func Flatten(groups [][]*discordgo.Message) []*discordgo.Message {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]*discordgo.Message, 0, n)
	for _, g := range groups {
		for _, m := range g {
			if m != nil {
				out = append(out, m)
			}
		}
	}
	return out
}
