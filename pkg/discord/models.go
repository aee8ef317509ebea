package discord

import (
	"github.com/bwmarrin/discordgo"
)

// SearchResponse is the body of a message search. Each inner slice is one
// hit together with its surrounding context messages.
type SearchResponse struct {
	TotalResults int                    `json:"total_results"`
	Messages     [][]*discordgo.Message `json:"messages"`
}

// rateLimitBody is sent with 429 responses and with 202 responses while the
// search index is still being built
type rateLimitBody struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}
