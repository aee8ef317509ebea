// Package classifier decides which attachments a scan keeps and shapes the
// search filter sent with each request.
package classifier

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"dscraper/pkg/config"

	"github.com/bwmarrin/discordgo"
)

// Category is the coarse kind of an attachment
type Category int

const (
	Other Category = iota
	Image
	Video
)

func (c Category) String() string {
	switch c {
	case Image:
		return "image"
	case Video:
		return "video"
	default:
		return "other"
	}
}

// Classify maps a filename or URL to a category by its MIME type. Unknown
// extensions are Other.
func Classify(name string) Category {
	major, _, _ := strings.Cut(MimeType(name), "/")
	switch major {
	case "image":
		return Image
	case "video":
		return Video
	default:
		return Other
	}
}

// Flag is a has= filter understood by the search endpoint
type Flag string

const (
	FlagImage Flag = "image"
	FlagVideo Flag = "video"
	FlagFile  Flag = "file"
	FlagEmbed Flag = "embed"
	FlagLink  Flag = "link"
)

// Config is the immutable classification policy of a run
type Config struct {
	IncludeImages bool
	IncludeVideos bool
	IncludeOther  bool
	// IncludeNSFW only affects the outbound query.
	IncludeNSFW   bool
	RequiredFlags []Flag
}

// FromConfig derives the policy from the types and query sections
func FromConfig(cfg *config.Config) Config {
	c := Config{
		IncludeImages: cfg.Types.Images,
		IncludeVideos: cfg.Types.Videos,
		IncludeOther:  cfg.Types.Files,
		IncludeNSFW:   cfg.Query.NSFW,
	}
	for _, f := range []struct {
		on   bool
		flag Flag
	}{
		{cfg.Query.Images, FlagImage},
		{cfg.Query.Videos, FlagVideo},
		{cfg.Query.Files, FlagFile},
		{cfg.Query.Embeds, FlagEmbed},
		{cfg.Query.Links, FlagLink},
	} {
		if f.on {
			c.RequiredFlags = append(c.RequiredFlags, f.flag)
		}
	}
	return c
}

// Include reports whether attachments of cat are downloaded
func (c Config) Include(cat Category) bool {
	switch cat {
	case Image:
		return c.IncludeImages
	case Video:
		return c.IncludeVideos
	default:
		return c.IncludeOther
	}
}

// QueryFragment encodes the search filter, e.g. "has=image&has=video&include_nsfw=true"
func (c Config) QueryFragment() string {
	params := url.Values{}
	for _, f := range c.RequiredFlags {
		params.Add("has", string(f))
	}
	params.Set("include_nsfw", strconv.FormatBool(c.IncludeNSFW))
	return params.Encode()
}

// Attachment is a file selected for download
type Attachment struct {
	// URL is the address fetched, the proxy URL when the API sent one.
	URL      string
	Filename string
	Category Category
	// MessageID is the message the attachment belongs to.
	MessageID string
}

// Select classifies every attachment of msgs and returns the included ones
// in encounter order
func (c Config) Select(msgs []*discordgo.Message) []Attachment {
	var out []Attachment
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		for _, att := range msg.Attachments {
			if att == nil || (att.URL == "" && att.ProxyURL == "") {
				continue
			}

			source := att.URL
			if path.Ext(pathOf(source)) == "" && att.Filename != "" {
				source = att.Filename
			}
			cat := Classify(source)
			if !c.Include(cat) {
				continue
			}

			target := att.ProxyURL
			if target == "" {
				target = att.URL
			}
			out = append(out, Attachment{
				URL:       target,
				Filename:  att.Filename,
				Category:  cat,
				MessageID: msg.ID,
			})
		}
	}
	return out
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
