// Command potactl imports and inspects POTA park lists from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/pota/internal/config"
	"github.com/JonMunkholm/pota/internal/core"
	"github.com/JonMunkholm/pota/internal/logging"
	"github.com/JonMunkholm/pota/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "potactl",
	Short:         "Import and browse POTA park lists",
	Long:          "Parses the POTA all-parks CSV export, validates every row and upserts the parks into the local park database.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		// stdout carries command output; logs go to stderr.
		logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

// openService opens the configured store and wraps it in a Service.
// The caller closes the returned store.
func openService(ctx context.Context) (*core.Service, store.Store, error) {
	st, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, nil, eris.Wrap(err, "open park store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate park store")
	}
	return core.NewService(st, cfg.ServiceConfig()), st, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", errorText(err))
		os.Exit(1)
	}
}

// errorText returns the operator message for known failures and the raw
// error for everything else, such as flag parsing errors. The technical
// error behind a mapped message is logged at debug level.
func errorText(err error) string {
	if !core.IsUserFacing(err) {
		return err.Error()
	}
	ue := core.NewUserError(err)
	slog.Debug("command failed", "error", ue.Technical, "code", ue.User.Code)
	return core.FormatUserError(ue.Technical)
}
