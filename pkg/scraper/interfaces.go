package scraper

import (
	"dscraper/internal/downloader"
	"dscraper/pkg/resolver"
	"dscraper/pkg/search"
)

// DiscordAPI is the part of the Discord client a scan drives
type DiscordAPI interface {
	resolver.MetadataFetcher
	search.Searcher
	downloader.Fetcher
}
