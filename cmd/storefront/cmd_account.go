package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/query"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/view"
	"github.com/Skotchmaster/storefront/pkg/authclient"
)

func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or save your profile",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, s *session.Session) error {
			r := query.Fetch(ctx, s.Client, s.Queries.CallerProfile())
			view.Profile(a.out, r)
			return failed(r)
		}),
	}

	var p models.UserProfile
	set := &cobra.Command{
		Use:   "set",
		Short: "Save your profile",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, s *session.Session) error {
			if err := a.toast(s.Mutations.SaveProfile(ctx, p), "Profile saved"); err != nil {
				return err
			}
			view.Profile(a.out, query.Fetch(ctx, s.Client, s.Queries.CallerProfile()))
			return nil
		}),
	}
	set.Flags().StringVar(&p.Name, "name", "", "full name")
	set.Flags().StringVar(&p.Address, "address", "", "delivery address")
	set.Flags().StringVar(&p.Phone, "phone", "", "phone number")
	cmd.AddCommand(set)
	return cmd
}

func roleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "role",
		Short: "Show the role of the current session",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, s *session.Session) error {
			r := query.Fetch(ctx, s.Client, s.Queries.CallerRole())
			view.Role(a.out, r)
			return failed(r)
		}),
	}
}

type credFlags struct {
	username string
	password string
}

func (f *credFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "account name")
	cmd.Flags().StringVar(&f.password, "password", "", "password (default $STOREFRONT_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
}

func (f *credFlags) credentials() (authclient.Credentials, error) {
	pw := f.password
	if pw == "" {
		pw = os.Getenv("STOREFRONT_PASSWORD")
	}
	if pw == "" {
		return authclient.Credentials{}, errors.New("password is required (--password or STOREFRONT_PASSWORD)")
	}
	return authclient.Credentials{Username: f.username, Password: pw}, nil
}

func registerCmd(a *app) *cobra.Command {
	var f credFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := f.credentials()
			if err != nil {
				return err
			}
			if err := a.load(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()
			res, err := authclient.NewClient(a.cfg.GatewayURL).Register(ctx, creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered %s (%s)\n", res.Username, res.Role)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var f credFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := f.credentials()
			if err != nil {
				return err
			}
			if err := a.load(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()
			res, err := authclient.NewClient(a.cfg.GatewayURL).Login(ctx, creds)
			if err != nil {
				return err
			}
			if err := config.SaveToken(a.cfg.TokenFile, res.AccessToken); err != nil {
				return err
			}
			a.cfg.Token = res.AccessToken
			fmt.Fprintf(a.out, "Logged in as %s (%s), session expires %s\n",
				creds.Username, res.Role, humanize.Time(time.Unix(res.AccessExp, 0)))
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}
