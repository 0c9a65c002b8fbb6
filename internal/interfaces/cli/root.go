package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"garagelink.app/client/internal/core/domain"
	"garagelink.app/client/internal/infrastructure/config"
	"garagelink.app/client/internal/interfaces/di"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

const shutdownTimeout = 5 * time.Second

// Options customise the command tree. Tests use them to swap storage and
// the network transport.
type Options struct {
	ContainerOptions []di.Option
	Out              io.Writer
	ErrOut           io.Writer
	In               io.Reader
}

// app is shared by every command of one invocation.
type app struct {
	opts        Options
	configPath  string
	container   *di.Container
	unsubscribe func()
}

// NewRootCommand builds the garagelink command tree. The container is built
// in PersistentPreRunE, after flags are parsed.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	a := &app{opts: opts}

	rootCmd := &cobra.Command{
		Use:   "garagelink",
		Short: "GarageLink marketplace client",
		Long: `GarageLink connects drivers with mechanics.

This client signs in as the driver app or the mechanic app, keeps the session
fresh in the background, and calls the marketplace API on your behalf.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	rootCmd.SetOut(opts.Out)
	rootCmd.SetErr(opts.ErrOut)
	rootCmd.SetIn(opts.In)

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file path (default is $HOME/.config/garagelink/config.yaml)")
	flags.String("identity", "", "Client identity: driver-app or mechanic-app")
	flags.String("api-url", "", "API endpoint URL")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("pretty", false, "Human-readable logs")

	rootCmd.AddCommand(newLoginCommand(a))
	rootCmd.AddCommand(newLogoutCommand(a))
	rootCmd.AddCommand(newStatusCommand(a))
	rootCmd.AddCommand(newRefreshCommand(a))
	rootCmd.AddCommand(newProfileCommand(a))
	rootCmd.AddCommand(newAppointmentsCommand(a))
	rootCmd.AddCommand(newWalletCommand(a))

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	cfg.App.Version = Version

	container, err := di.NewContainer(cmd.Context(), cfg, a.opts.ContainerOptions...)
	if err != nil {
		return err
	}
	a.container = container

	errOut := cmd.ErrOrStderr()
	a.unsubscribe = container.Session.Subscribe(func(reason domain.InvalidationReason) {
		if reason == domain.ReasonRefreshFailed {
			fmt.Fprintln(errOut, "Session expired. Run 'garagelink login' to sign in again.")
		}
	})
	return nil
}

func (a *app) teardown() error {
	if a.container == nil {
		return nil
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.container.Shutdown(ctx)
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	rootCmd := NewRootCommand(Options{})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		return 1
	}
	return 0
}
