package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/backkem/traverse/pkg/config"
	"github.com/backkem/traverse/pkg/transport"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

// options holds the persistent flags and the state derived from them.
type options struct {
	configPath string
	logLevel   string
	overrides  []string

	resolver      *config.Resolver
	loggerFactory *logging.DefaultLoggerFactory
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "traverse",
		Short:         "STUN stack and public address discovery",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "disabled, error, warn, info, debug or trace")
	flags.StringArrayVar(&opts.overrides, "set", nil, "override a setting as key=value (repeatable)")

	cmd.AddCommand(
		newServeCmd(opts),
		newBindingCmd(opts),
		newHarvestCmd(opts),
		newDiscoverCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// load builds the logger factory and the configuration chain:
// --set flags, then the environment, then the file.
func (o *options) load(cmd *cobra.Command) error {
	level, err := parseLogLevel(o.logLevel)
	if err != nil {
		return err
	}
	o.loggerFactory = logging.NewDefaultLoggerFactory()
	o.loggerFactory.DefaultLogLevel = level
	o.loggerFactory.Writer = cmd.ErrOrStderr()

	overrides := config.MapSource{}
	for _, kv := range o.overrides {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("--set %q: want key=value", kv)
		}
		key = strings.TrimSpace(key)
		if _, known := config.Lookup(config.Key(key)); !known {
			return fmt.Errorf("--set %q: unknown setting %q", kv, key)
		}
		overrides[key] = value
	}

	chain := config.Chain{overrides, config.NewEnvSource(config.DefaultEnvPrefix)}
	if o.configPath != "" {
		file, err := config.LoadFile(o.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		chain = append(chain, file)
	}

	o.resolver = config.NewResolver(config.ResolverConfig{
		Source:        chain,
		LoggerFactory: o.loggerFactory,
	})
	return nil
}

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	level, ok := logLevels[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// resolveServer resolves host[:port], defaulting to the STUN port.
func resolveServer(hostport string) (*net.UDPAddr, error) {
	if _, _, err := net.SplitHostPort(hostport); err != nil {
		hostport = net.JoinHostPort(hostport, strconv.Itoa(transport.DefaultPort))
	}
	return net.ResolveUDPAddr("udp", hostport)
}
