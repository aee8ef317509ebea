package discord

import (
	"net/url"
	"strconv"
	"strings"

	"dscraper/pkg/snowflake"
)

const (
	// DefaultBaseURL is the web origin API paths hang off
	DefaultBaseURL = "https://discord.com"

	// DefaultAPIVersion is the REST API version used for every call
	DefaultAPIVersion = "v9"

	// SearchPageSize is how many message groups one search page returns
	SearchPageSize = 25
)

// Endpoints builds API and web URLs for one base origin and API version
type Endpoints struct {
	base    string
	version string
}

// NewEndpoints creates an endpoint builder. Empty arguments fall back to the defaults.
func NewEndpoints(baseURL, version string) Endpoints {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultAPIVersion
	}
	return Endpoints{base: strings.TrimRight(baseURL, "/"), version: version}
}

// API returns the REST root, e.g. https://discord.com/api/v9
func (e Endpoints) API() string {
	return e.base + "/api/" + e.version
}

// Guild returns the guild metadata URL
func (e Endpoints) Guild(guildID string) string {
	return e.API() + "/guilds/" + url.PathEscape(guildID)
}

// Channel returns the channel metadata URL
func (e Endpoints) Channel(channelID string) string {
	return e.API() + "/channels/" + url.PathEscape(channelID)
}

// SearchQuery describes one search request
type SearchQuery struct {
	// ServerID selects the guild search endpoint when set; empty means a DM channel.
	ServerID  string
	ChannelID string
	MinID     snowflake.ID
	MaxID     snowflake.ID
	Offset    int
	// Filter is an already encoded query fragment such as "has=image&include_nsfw=true".
	Filter string
}

// IsDirect reports whether the query targets a direct-message channel
func (q SearchQuery) IsDirect() bool {
	return q.ServerID == ""
}

// Search returns the search URL for q
func (e Endpoints) Search(q SearchQuery) string {
	params := url.Values{}
	var path string
	if q.IsDirect() {
		path = e.Channel(q.ChannelID) + "/messages/search"
	} else {
		path = e.Guild(q.ServerID) + "/messages/search"
		params.Set("channel_id", q.ChannelID)
	}
	params.Set("min_id", q.MinID.String())
	params.Set("max_id", q.MaxID.String())
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}

	query := params.Encode()
	if f := strings.TrimLeft(q.Filter, "&"); f != "" {
		query += "&" + f
	}
	return path + "?" + query
}

// Referer returns the web client URL of the channel being searched
func (e Endpoints) Referer(q SearchQuery) string {
	scope := q.ServerID
	if q.IsDirect() {
		scope = "@me"
	}
	return e.base + "/channels/" + scope + "/" + q.ChannelID
}
