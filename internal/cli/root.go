// Package cli implements the mrl command line: resolving, listing and
// materializing resources from configured repositories.
package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"mrl.software/mrl/mrl"
	"mrl.software/mrl/repository"
)

// New builds the root command with all subcommands attached.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mrl",
		Short:         "resolve and materialize versioned resources",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}
	registerGlobalFlags(cmd.PersistentFlags())
	cmd.AddCommand(newListCommand(), newResolveCommand(), newPrepareCommand())
	return cmd
}

func registerGlobalFlags(flags *pflag.FlagSet) {
	flags.String("config", DefaultConfigPath(), "path to the mrl configuration file")
	flags.String("repo", "", "repository name from the configuration, or a location string")
	flags.String("cache-dir", "", "override the cache root directory")
	flags.String("loglevel", "warn", "set the log level (debug, info, warn, error)")
	flags.String("logformat", "text", "set the log format (text, json)")
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, err := cmd.Flags().GetString("loglevel")
	if err != nil {
		return nil, err
	}
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", levelName)
	}

	format, err := cmd.Flags().GetString("logformat")
	if err != nil {
		return nil, err
	}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}

// repositoryFromFlags assembles the repository a command operates on from the
// --config, --repo and --cache-dir flags.
func repositoryFromFlags(cmd *cobra.Command) (repository.Repository, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	nameOrLocation, err := cmd.Flags().GetString("repo")
	if err != nil {
		return nil, err
	}
	if nameOrLocation == "" {
		return nil, fmt.Errorf("no repository given, use --repo")
	}
	repoCfg := cfg.Repository(nameOrLocation)

	var opts []repository.Option
	cacheDir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return nil, err
	}
	if cacheDir == "" {
		cacheDir = cfg.CacheDir
	}
	if cacheDir != "" {
		opts = append(opts, repository.WithCacheDir(cacheDir))
	}

	return repository.New(repoCfg.Name, repoCfg.Location, opts...)
}

// parseMRL parses the <category>/<group>/<name> argument form, e.g.
// "cv/ai.test/toy".
func parseMRL(arg string) (mrl.MRL, error) {
	parts := strings.Split(arg, "/")
	if len(parts) != 3 {
		return mrl.MRL{}, fmt.Errorf("invalid resource %q, expected <category>/<group>/<name>", arg)
	}
	return mrl.New(mrl.Category(parts[0]), parts[1], parts[2]), nil
}

// parseProperties turns repeated k=v flag values into a filter map.
func parseProperties(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	filter := make(map[string]string, len(values))
	for _, value := range values {
		k, v, ok := strings.Cut(value, "=")
		if !ok {
			return nil, fmt.Errorf("invalid property %q, expected key=value", value)
		}
		filter[k] = v
	}
	return filter, nil
}
