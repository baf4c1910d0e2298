// Package cli implements the stackbuild command-line interface.
//
// Every command reads the workspace file (stackbuild.toml by default, see
// --config) and drives the pipeline stages:
//   - resolve: compute the dependency closure of the seeds
//   - order: print or draw the build order of the closure
//   - build: build the closure with the workspace's build script
//   - status: show the persisted status of the last build
//   - serve: expose build status over HTTP
//   - cache: manage the response cache
//   - completion: generate shell completion scripts
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/cache"
	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/deps/ruby"
	"github.com/matzehuels/stackbuild/pkg/integrations/apt"
	"github.com/matzehuels/stackbuild/pkg/integrations/rubygems"
	"github.com/matzehuels/stackbuild/pkg/pipeline"
	"github.com/matzehuels/stackbuild/pkg/prune"
	"github.com/matzehuels/stackbuild/pkg/status"
)

const (
	// appName is the application name used for directories and display.
	appName = "stackbuild"

	// defaultGemTTL is how long RubyGems responses stay cached.
	defaultGemTTL = 24 * time.Hour
)

// Environment variables selecting shared backends.
const (
	EnvRedisURL = "STACKBUILD_REDIS_URL" // response and closure cache
	EnvMongoURI = "STACKBUILD_MONGO_URI" // build status history
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the workspace file, set by the --config flag.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Stackbuild resolves and builds Debian package stacks",
		Long:         `Stackbuild computes the dependency closure of a software stack, prunes what an ancestor release already publishes, and builds the rest concurrently in dependency order.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", config.DefaultFileName, "workspace file")

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.orderCommand())
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), buildinfo.String()+"\n")
			return err
		},
	}
}

func (c *CLI) loadWorkspace() (*config.Workspace, error) {
	ws, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("loaded workspace", "path", ws.Path(), "packages", len(ws.Packages()))
	return ws, nil
}

// newRunner creates a pipeline runner for the workspace.
func (c *CLI) newRunner(ctx context.Context, ws *config.Workspace, noCache, refresh bool) (*pipeline.Runner, error) {
	store, err := newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	r := pipeline.NewRunner(store, nil, c.Logger)
	r.Provider = ws
	r.Releases = ws.Releases()

	gems := ws.Config.RubyGems
	if gems.Offline {
		r.Index = ws.LocalIndex()
	} else {
		url := gems.URL
		if url == "" {
			url = rubygems.DefaultBaseURL
		}
		ttl := gems.CacheTTL
		if ttl == 0 {
			ttl = defaultGemTTL
		}
		r.Index = ruby.NewIndexWithClient(rubygems.NewClientWithURL(store, ttl, url), refresh)
	}
	if repo := ws.Config.Prune.Repository; repo != "" {
		r.Packages = apt.NewClient(repo, ws.Config.Prune.Component)
	}
	return r, nil
}

// newCache selects the cache backend: Redis when STACKBUILD_REDIS_URL is
// set, otherwise a file cache under the user cache directory.
func newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if url := os.Getenv(EnvRedisURL); url != "" {
		rc, err := cache.NewRedisCache(ctx, url)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/stackbuild/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// pipelineOptions fills the resolve and prune options from the workspace.
// Seeds given on the command line replace the configured ones.
func pipelineOptions(ws *config.Workspace, seeds []string, release, arch string) pipeline.Options {
	cfg := ws.Config.WithDefaults()
	if len(seeds) == 0 {
		seeds = ws.Seeds()
	}
	if release == "" {
		release = cfg.Build.Release
		if arch == "" {
			arch = cfg.Build.Arch
		}
	}
	return pipeline.Options{
		Seeds:       seeds,
		Pins:        ws.Pins(),
		Fingerprint: ws.Fingerprint(),
		Policies:    ws.Policies(),
		Release:     release,
		Arch:        arch,
		Blacklist:   cfg.Prune.Blacklist,
		Naming:      cfg.Naming,
		Priorities:  cfg.Priorities,
		Parallel:    cfg.Build.Parallel,
		IdleTimeout: cfg.Build.IdleTimeout,
	}
}

// statusStore opens where build status is kept: the workspace status file,
// plus MongoDB when STACKBUILD_MONGO_URI is set. The returned store reads
// from MongoDB when available. closeFn releases the connection.
func statusStore(ctx context.Context, ws *config.Workspace) (store status.Store, sink status.Sink, closeFn func(), err error) {
	file := status.NewFileSink(ws.Resolve(ws.Config.WithDefaults().Build.StatusFile))
	uri := os.Getenv(EnvMongoURI)
	if uri == "" {
		return file, file, func() {}, nil
	}
	mongo, err := status.NewMongoSink(ctx, uri)
	if err != nil {
		return nil, nil, nil, err
	}
	return mongo, status.MultiSink{file, mongo}, func() { _ = mongo.Close(context.WithoutCancel(ctx)) }, nil
}

var _ prune.PackageIndex = (*apt.Client)(nil)
