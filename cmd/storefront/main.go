package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/gateway"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/view"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

func main() {
	if err := newRootCmd(&app{out: os.Stdout}).Execute(); err != nil {
		var shown *shownError
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// shownError has already been rendered to the user.
type shownError struct{ error }

func (e *shownError) Unwrap() error { return e.error }

type app struct {
	out io.Writer
	cfg *config.Config
	// newGateway is replaced in tests.
	newGateway func(cfg *config.Config) gateway.Gateway

	sess *session.Session
}

func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// session starts the session on first use.
func (a *app) session(ctx context.Context) (*session.Session, error) {
	if a.sess != nil {
		return a.sess, nil
	}
	if err := a.load(); err != nil {
		return nil, err
	}
	log := logging.NewWriter(os.Stderr, a.cfg.LogLevel)
	var gw gateway.Gateway
	if a.newGateway != nil {
		gw = a.newGateway(a.cfg)
	} else {
		gw = gateway.NewHTTPClient(a.cfg.GatewayURL, gateway.WithToken(a.cfg.Token), gateway.WithLogger(log))
	}
	s := session.New(gw, session.WithLogger(log))
	if err := s.Start(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to %s: %w", a.cfg.GatewayURL, err)
	}
	a.sess = s
	return s, nil
}

func (a *app) close() {
	if a.sess != nil {
		a.sess.Close()
		a.sess = nil
	}
}

// run gives fn a started session and a context bounded by the configured
// timeout.
func (a *app) run(fn func(ctx context.Context, s *session.Session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if err := a.load(); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
		defer cancel()
		s, err := a.session(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, s)
	}
}

// toast reports a mutation outcome. A failure is returned already shown.
func (a *app) toast(err error, success string) error {
	view.Toast(a.out, err, success)
	if err != nil {
		return &shownError{err}
	}
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Browse and shop the storefront from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)

	root.AddCommand(productsCmd(a), searchCmd(a), productCmd(a))
	root.AddCommand(cartCmd(a), checkoutCmd(a))
	root.AddCommand(ordersCmd(a), orderCmd(a))
	root.AddCommand(profileCmd(a), roleCmd(a))
	root.AddCommand(registerCmd(a), loginCmd(a))
	root.AddCommand(adminCmd(a))
	return root
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}
