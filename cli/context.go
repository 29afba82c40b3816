package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
	"github.com/ankit-chaubey/image-metadata-surgery/core/history"
	"github.com/ankit-chaubey/image-metadata-surgery/core/scrub"
	"github.com/ankit-chaubey/image-metadata-surgery/internal/config"
	"github.com/ankit-chaubey/image-metadata-surgery/internal/logging"
)

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the configuration once and layers the global flags
// over it.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if v := strings.ToLower(strings.TrimSpace(c.flags.logLevel)); v != "" {
			cfg.Logging.Level = v
		}
		if v := strings.ToLower(strings.TrimSpace(c.flags.logFormat)); v != "" {
			cfg.Logging.Format = v
		}
		if c.flags.quiet {
			cfg.Logging.Level = "error"
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the stderr logger. An interactive terminal gets the
// console format unless --log-format was given explicitly.
func (c *commandContext) ensureLogger(stderr io.Writer) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		format := cfg.Logging.Format
		if strings.TrimSpace(c.flags.logFormat) == "" && logging.IsTerminal(stderr) {
			format = "console"
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: format,
			Writer: stderr,
		})
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) newEngine(cmd *cobra.Command) (*scrub.Engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	opts := []scrub.Option{scrub.WithLogger(logger)}
	if cfg.History.Enabled {
		h, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		opts = append(opts, scrub.WithHistory(h))
	}
	return scrub.New(opts...), nil
}

func (c *commandContext) printer(cmd *cobra.Command, format string) (*core.Printer, error) {
	jsonMode, err := parseOutputFormat(format)
	if err != nil {
		return nil, err
	}
	return core.NewPrinter(cmd.OutOrStdout(), jsonMode, !jsonMode && logging.IsTerminal(cmd.OutOrStdout())), nil
}

func parseOutputFormat(format string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "table":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("output format: unsupported value %q (want table or json)", format)
	}
}
