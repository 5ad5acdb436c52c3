// Package cli defines the dirmon command tree. Command bodies are supplied by
// the caller so the tree can be exercised without opening sockets.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"dirmon/internal/config"
	"dirmon/internal/version"

	"github.com/spf13/cobra"
)

const defaultDialTimeout = 2 * time.Second

type ServeOptions struct {
	ConfigPath  string
	Channel     string
	LogLevel    string
	MetricsAddr string
	Dirs        []string

	channelSet     bool
	logLevelSet    bool
	metricsAddrSet bool
}

// Overrides returns config overrides for the flags given on the command line.
func (options ServeOptions) Overrides() map[string]any {
	overrides := map[string]any{}
	if options.channelSet {
		overrides[config.KeyChannel] = options.Channel
	}
	if options.logLevelSet {
		overrides[config.KeyLogLevel] = options.LogLevel
	}
	if options.metricsAddrSet {
		overrides[config.KeyMetricsAddr] = options.MetricsAddr
	}
	if len(options.Dirs) > 0 {
		overrides[config.KeyDirs] = append([]string(nil), options.Dirs...)
	}
	return overrides
}

type ClientOptions struct {
	Channel     string
	DialTimeout time.Duration
}

// Commands holds the bodies run by serve and client.
type Commands struct {
	Serve  func(ctx context.Context, options ServeOptions, stdout io.Writer) error
	Client func(ctx context.Context, options ClientOptions, stdin io.Reader, stdout io.Writer) error
}

func NewRootCommand(commands Commands, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "dirmon",
		Short:         "Stream directory create and remove notifications to a local client",
		Version:       version.GetVersionInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	root.AddCommand(newServeCommand(commands.Serve))
	root.AddCommand(newClientCommand(commands.Client))
	root.AddCommand(newVersionCommand())
	return root
}

func newServeCommand(run func(context.Context, ServeOptions, io.Writer) error) *cobra.Command {
	options := ServeOptions{}
	command := &cobra.Command{
		Use:   "serve [DIR...]",
		Short: "Watch directories and serve notifications on the channel",
		Long: `Watch the configured directories (plus any given as arguments) and write
one line per create or remove to the connected client. A client line
containing QUIT stops the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if run == nil {
				return usageError(fmt.Errorf("serve is not available"))
			}
			flags := cmd.Flags()
			options.Dirs = args
			options.channelSet = flags.Changed("channel")
			options.logLevelSet = flags.Changed("log-level")
			options.metricsAddrSet = flags.Changed("metrics-addr")
			return run(cmd.Context(), options, cmd.OutOrStdout())
		},
	}
	flags := command.Flags()
	flags.StringVarP(&options.ConfigPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	flags.StringVar(&options.Channel, "channel", "", "channel name or socket path")
	flags.StringVar(&options.LogLevel, "log-level", "", "log level (debug, info, warning, error)")
	flags.StringVar(&options.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return command
}

func newClientCommand(run func(context.Context, ClientOptions, io.Reader, io.Writer) error) *cobra.Command {
	options := ClientOptions{}
	command := &cobra.Command{
		Use:   "client",
		Short: "Connect to a running server, print notifications and forward stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if run == nil {
				return usageError(fmt.Errorf("client is not available"))
			}
			return run(cmd.Context(), options, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	flags := command.Flags()
	flags.StringVar(&options.Channel, "channel", "DirMon", "channel name or socket path")
	flags.DurationVar(&options.DialTimeout, "timeout", defaultDialTimeout, "connection timeout")
	return command
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo().Format("dirmon"))
		},
	}
}
