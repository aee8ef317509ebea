// Package resolver turns server and channel IDs into folder names and
// creates the folders a target downloads into.
package resolver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	errs "dscraper/pkg/errors"
	"dscraper/pkg/logger"
	"dscraper/pkg/metrics"
	"dscraper/pkg/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// RootFolder is created under the base directory
	RootFolder = "Discord Scrapes"
	// DirectFolder holds every direct-message target
	DirectFolder = "Direct Messages"
	// StateFolder keeps checkpoints and run reports inside the root
	StateFolder = ".dscraper"

	cacheSize = 1024
	cacheTTL  = 6 * time.Hour
)

// MetadataFetcher loads guild and channel metadata
type MetadataFetcher interface {
	FetchGuild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	FetchChannel(ctx context.Context, channelID string) (*discordgo.Channel, error)
}

// Resolver resolves display names and owns the folder layout
type Resolver struct {
	api    MetadataFetcher
	root   string
	names  *expirable.LRU[string, string]
	logger logger.Logger
}

// New creates a resolver rooted at baseDir, which is made absolute. An empty
// baseDir means the working directory.
func New(api MetadataFetcher, baseDir string, log logger.Logger) (*Resolver, error) {
	root, err := rootDir(baseDir)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Resolver{
		api:    api,
		root:   root,
		names:  expirable.NewLRU[string, string](cacheSize, nil, cacheTTL),
		logger: log.WithField("component", "resolver"),
	}, nil
}

func rootDir(baseDir string) (string, error) {
	if baseDir == "" {
		baseDir = "."
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeFilesystem, "failed to resolve base directory", err)
	}
	return filepath.Join(abs, RootFolder), nil
}

// StateDir returns the state folder under the scrape root of baseDir
func StateDir(baseDir string) (string, error) {
	root, err := rootDir(baseDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, StateFolder), nil
}

// Root returns the absolute scrape root
func (r *Resolver) Root() string {
	return r.root
}

// Sanitize strips characters that are invalid in folder names
func Sanitize(name string) string {
	return storage.SafeName(name)
}

// ResolveServerName returns "{id}_{name}". When the guild cannot be loaded
// a random suffix stands in for the name. A done ctx returns "" and caches
// nothing.
func (r *Resolver) ResolveServerName(ctx context.Context, serverID string) string {
	key := "guild:" + serverID
	if name, ok := r.names.Get(key); ok {
		return name
	}

	var display string
	guild, err := r.api.FetchGuild(ctx, serverID)
	switch {
	case ctx.Err() != nil:
		return ""
	case err != nil:
		display = r.fallback("server", serverID, err)
	case Sanitize(guild.Name) == "":
		display = r.fallback("server", serverID, errs.New(errs.ErrorTypeNotFound, "guild has no name"))
	default:
		display = serverID + "_" + Sanitize(guild.Name)
	}

	r.names.Add(key, display)
	return display
}

// ResolveChannelName returns "{id}_{name}". Direct and group channels have
// no name, so their recipients' usernames are used instead. Like
// ResolveServerName it returns "" once ctx is done.
func (r *Resolver) ResolveChannelName(ctx context.Context, channelID string) string {
	key := "channel:" + channelID
	if name, ok := r.names.Get(key); ok {
		return name
	}

	var display string
	channel, err := r.api.FetchChannel(ctx, channelID)
	if ctx.Err() != nil {
		return ""
	}
	if err != nil {
		display = r.fallback("channel", channelID, err)
	} else if name := Sanitize(channelName(channel)); name == "" {
		display = r.fallback("channel", channelID, errs.New(errs.ErrorTypeNotFound, "channel has no name"))
	} else {
		display = channelID + "_" + name
	}

	r.names.Add(key, display)
	return display
}

func channelName(ch *discordgo.Channel) string {
	if ch.Name != "" {
		return ch.Name
	}
	users := make([]string, 0, len(ch.Recipients))
	for _, u := range ch.Recipients {
		if u != nil && u.Username != "" {
			users = append(users, u.Username)
		}
	}
	return strings.Join(users, ", ")
}

func (r *Resolver) fallback(kind, id string, cause error) string {
	name := id + "_" + randomSuffix()
	metrics.RecordNameFallback(kind)
	r.logger.WithError(cause).WithFields(map[string]interface{}{
		"kind":     kind,
		"id":       id,
		"fallback": name,
	}).Warn("Could not resolve name, using fallback")
	return name
}

// randomSuffix returns 12 uppercase hex characters
func randomSuffix() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:12])
}

// CreateFolder creates <root>/<server>/<channel> and returns its path
func (r *Resolver) CreateFolder(serverDisplay, channelDisplay string) (string, error) {
	return r.mkdir(Sanitize(serverDisplay), Sanitize(channelDisplay))
}

// CreateDirectFolder creates <root>/Direct Messages/<alias>/<channelID> and
// returns its path
func (r *Resolver) CreateDirectFolder(alias, channelID string) (string, error) {
	return r.mkdir(DirectFolder, Sanitize(alias), Sanitize(channelID))
}

func (r *Resolver) mkdir(parts ...string) (string, error) {
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return "", errs.New(errs.ErrorTypeFilesystem, fmt.Sprintf("invalid folder name %q", p))
		}
	}
	dir := filepath.Join(append([]string{r.root}, parts...)...)
	if err := mkdirAll(dir); err != nil {
		return "", errs.Wrap(errs.ErrorTypeFilesystem, "failed to create folder "+dir, err)
	}
	return dir, nil
}
