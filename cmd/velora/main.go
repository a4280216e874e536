package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Hemanshudhaduk/Velora/internal/apiclient"
	"github.com/Hemanshudhaduk/Velora/internal/cart"
	"github.com/Hemanshudhaduk/Velora/internal/domain"
	"github.com/Hemanshudhaduk/Velora/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	err := c.execute(ctx, newRootCommand(c))
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describeError(err))
		os.Exit(1)
	}
}

// cli carries global flags and the app built for the running command.
type cli struct {
	opts globalOptions
	app  *app
}

// execute runs root and then closes the app the command built, whether or not it failed.
func (c *cli) execute(ctx context.Context, root *cobra.Command) error {
	defer c.shutdown(context.WithoutCancel(ctx))
	return root.ExecuteContext(ctx)
}

func (c *cli) shutdown(ctx context.Context) {
	if c.app == nil {
		return
	}
	c.app.close(ctx)
	c.app = nil
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "velora",
		Short:         "Shop the Velora apparel store from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			c.app = a
			a.bootstrap(cmd.Context())
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.envFile, "env-file", ".env", "dotenv file with local overrides")
	flags.StringVar(&c.opts.apiBaseURL, "api", "", "storefront backend base URL")
	flags.StringVar(&c.opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&c.opts.logFormat, "log-format", "", "log encoding (json or console)")
	flags.StringVar(&c.opts.stateDir, "state-dir", "", "directory holding the persisted session")

	root.AddCommand(
		newAuthCommand(c),
		newCatalogCommand(c),
		newCartCommand(c),
		newWishlistCommand(c),
		newAddressCommand(c),
		newCheckoutCommand(c),
		newOrdersCommand(c),
		newProfileCommand(c),
	)
	return root
}

// describeError renders the backend's display message where there is one.
func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, session.ErrSessionExpired):
		return "please sign in first (velora auth signin)"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out of stock"
	case errors.Is(err, cart.ErrRefreshAfterWrite):
		return "saved, but the updated list could not be loaded; run the command again to see it"
	}
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}
	return apiclient.Message(err)
}
