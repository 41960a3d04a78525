// Package initcmder provides the init command for initializing a local .drift
// directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/drift/pkg/cliui"
	"github.com/papercomputeco/drift/pkg/config"
	"github.com/papercomputeco/drift/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .drift/ directory in the current working directory.

Creates a local .drift/ directory that takes precedence over the default
~/.drift/ directory, and writes a config.toml into it. Without --preset the
defaults are written, unless a config.toml already exists.

--preset takes either a built-in preset name (ollama, openai) or an http(s)
URL serving a config.toml. A preset always overwrites an existing config.

Examples:
  drift init
  drift init --preset openai
  drift init --preset https://example.com/drift/config.toml`

const initShortDesc string = "Initialize a local .drift/ directory"

const fetchTimeout = 30 * time.Second

type initCommander struct {
	preset string
	out    io.Writer
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Preset name ("+strings.Join(config.ValidPresetNames(), ", ")+") or URL of a config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	// Resolve the preset before touching the filesystem so a bad preset
	// leaves nothing behind.
	var cfg *config.Config
	if c.preset != "" {
		cfg, err = c.resolvePreset(ctx)
		if err != nil {
			return err
		}
	}

	dir, created, err := dotdir.NewManager().InitLocal(cwd)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(c.out, "  %s Initialized %s\n", cliui.SuccessMark, dir)
	} else {
		fmt.Fprintf(c.out, "  %s Already initialized: %s\n", cliui.SuccessMark, dir)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg == nil {
		if _, err := os.Stat(cfger.GetTarget()); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking config: %w", err)
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s Wrote %s\n", cliui.SuccessMark, filepath.Base(cfger.GetTarget()))
	return nil
}

func (c *initCommander) resolvePreset(ctx context.Context) (*config.Config, error) {
	if strings.HasPrefix(c.preset, "http://") || strings.HasPrefix(c.preset, "https://") {
		return fetchConfig(ctx, c.preset)
	}
	return config.PresetConfig(c.preset)
}

// fetchConfig downloads and validates a remote config.toml.
func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
