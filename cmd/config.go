package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/periodic/internal/config"
	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage periodic configuration",
	Long: `Read and write periodic configuration.

The config file is $PERIODIC_CONFIG when set, else config.json in the
current directory. PERIODIC_* environment variables override it and
command-line flags override both.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.FilePath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		notef(cmd, "✓ Created %s", path)
		notef(cmd, "  Set time_anchor and on_duplicates to match your data.")
		return nil
	},
}

// configOut is the --format json shape of config get.
type configOut struct {
	Format       string `json:"default_format"`
	DBPath       string `json:"db_path"`
	TimeAnchor   string `json:"time_anchor"`
	OnDuplicates string `json:"on_duplicates"`
	Workers      int    `json:"workers"`
	MaxReported  int    `json:"max_reported"`
	LogLevel     string `json:"log_level"`
	ConfigFile   string `json:"config_file"`
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		cfg := deps.Config

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}
		workers := "GOMAXPROCS"
		if cfg.Workers > 0 {
			workers = strconv.Itoa(cfg.Workers)
		}

		switch resolveFormat(cfg.Format) {
		case render.FormatJSON, render.FormatJSONL:
			enc := json.NewEncoder(cmd.OutOrStdout())
			if resolveFormat(cfg.Format) == render.FormatJSON {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(configOut{
				Format:       cfg.Format,
				DBPath:       cfg.DBPath,
				TimeAnchor:   cfg.TimeAnchor,
				OnDuplicates: cfg.OnDuplicates,
				Workers:      cfg.Workers,
				MaxReported:  cfg.MaxReported,
				LogLevel:     cfg.LogLevel,
				ConfigFile:   src,
			})
		}

		tbl := &model.Table{
			Header: []string{"KEY", "VALUE"},
			Rows: [][]string{
				{"default_format", cfg.Format},
				{"db_path", cfg.DBPath},
				{"time_anchor", cfg.TimeAnchor},
				{"on_duplicates", cfg.OnDuplicates},
				{"workers", workers},
				{"max_reported", strconv.Itoa(cfg.MaxReported)},
				{"log_level", cfg.LogLevel},
				{"config_file", src},
			},
		}
		return emit(cmd, deps, newResult(model.KindTable, "config get", tbl, len(tbl.Rows), started))
	},
}

var configKeys = []string{
	"default_format", "db_path", "time_anchor", "on_duplicates",
	"workers", "max_reported", "log_level",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the config file",
	Example: `  periodic config set time_anchor end
  periodic config set on_duplicates keep_last
  periodic config set db_path ~/data/periodic.db`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		val := args[1]

		path, err := config.FilePath()
		if err != nil {
			return err
		}
		f := config.Template()
		if existing, err := config.ReadFile(path); err == nil {
			f = *existing
		} else if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
			return err
		}

		switch key {
		case "default_format", "format":
			f.DefaultFormat = val
		case "db_path":
			f.DBPath = val
		case "time_anchor", "anchor":
			f.TimeAnchor = val
		case "on_duplicates":
			f.OnDuplicates = val
		case "workers":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("workers must be an integer")
			}
			f.Workers = n
		case "max_reported":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("max_reported must be an integer")
			}
			f.MaxReported = n
		case "log_level":
			f.LogLevel = val
		default:
			return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(configKeys, ", "))
		}

		if err := f.Resolve().Validate(); err != nil {
			return err
		}
		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		notef(cmd, "✓ Set %s in %s", key, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
