package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/sphinxql/pkg/client"
	"github.com/platinummonkey/sphinxql/pkg/config"
	"github.com/platinummonkey/sphinxql/pkg/observability"
)

// openClient connects to searchd; tests replace it
var openClient = func(cfg *config.Config, logger *logrus.Logger) (*client.Client, io.Closer, error) {
	conns, err := client.NewConnectionManager(cfg.Sphinx.ConnectionConfig(), logger)
	if err != nil {
		return nil, nil, err
	}
	return client.New(conns, logger, nil).WithMeta(cfg.Sphinx.FetchMeta), conns, nil
}

// connFlags override the searchd settings loaded from SPHINXQL_* and the
// config file
type connFlags struct {
	fs *flag.FlagSet

	addr     string
	user     string
	password string
	timeout  time.Duration
	meta     bool
	verbose  bool
}

func registerConnFlags(fs *flag.FlagSet) *connFlags {
	c := &connFlags{fs: fs}

	fs.StringVar(&c.addr, "addr", "", "searchd SphinxQL address (default from config)")
	fs.StringVar(&c.user, "user", "", "SphinxQL user")
	fs.StringVar(&c.password, "password", "", "SphinxQL password")
	fs.DurationVar(&c.timeout, "timeout", 0, "Connect/read timeout")
	fs.BoolVar(&c.meta, "meta", false, "Fetch SHOW META after the query")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging")

	return c
}

// load resolves config and applies the flags that were set
func (c *connFlags) load() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Sphinx.PrimaryAddr = c.addr
			cfg.Sphinx.ReplicaAddrs = nil
		case "user":
			cfg.Sphinx.User = c.user
		case "password":
			cfg.Sphinx.Password = c.password
		case "timeout":
			cfg.Sphinx.Timeout = c.timeout
		case "meta":
			cfg.Sphinx.FetchMeta = c.meta
		}
	})
	return cfg, nil
}

func (c *connFlags) logger() *logrus.Logger {
	level := logrus.WarnLevel
	if c.verbose {
		level = logrus.DebugLevel
	}
	return observability.NewLogger(level, os.Stderr)
}

func (c *connFlags) connect() (*client.Client, io.Closer, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, nil, err
	}

	cl, closer, err := openClient(cfg, c.logger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.Sphinx.PrimaryAddr, err)
	}
	return cl, closer, nil
}
