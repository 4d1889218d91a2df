package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	authbridge "github.com/opengovern/authbridge"
	"github.com/opengovern/authbridge/api"
)

func (a *app) requestCmd() *cobra.Command {
	var (
		data    string
		headers []string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send a raw request and print the response body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &authbridge.RequestOptions{Timeout: timeout}
			if data != "" {
				opts.Body = []byte(data)
			}
			if len(headers) > 0 {
				opts.Headers = make(map[string]string, len(headers))
				for _, h := range headers {
					k, v, ok := strings.Cut(h, ":")
					if !ok {
						return fmt.Errorf("header %q: want NAME:VALUE", h)
					}
					opts.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
				}
			}

			resp, err := a.bridge.Request(cmd.Context(), strings.ToUpper(args[0]), args[1], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "status %d\n", resp.StatusCode)
			_, err = cmd.OutOrStdout().Write(append(resp.Data, '\n'))
			return err
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "Raw JSON request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header NAME:VALUE (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Override the request timeout")
	return cmd
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.api.FetchUser(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
}

func (a *app) feedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "List the feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			posts, err := a.api.FetchFeed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range posts {
				fmt.Fprintf(out, "@%s  %s  %s\n", p.User.Username, p.CreatedAt.Format(time.RFC3339), p.Content)
			}
			return nil
		},
	}
}

func (a *app) discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover QUERY",
		Short: "Search for users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.api.Discover(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No user found with username %q\n", args[0])
				return nil
			}
			for _, u := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  @%s  %s\n", u.ID, u.Username, u.FullName)
			}
			return nil
		},
	}
}

func (a *app) connectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "Show followers, following, connections and pending requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conns, err := a.api.FetchConnections(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), conns)
		},
	}
}

func (a *app) userActionCmd(name, short string, action func(*api.Client, context.Context, string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " USER_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := action(a.api, cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

// burstCmd fires concurrent GETs; with an expired session every one of them
// hits 401 at once and the report shows how many renewals that cost.
func (a *app) burstCmd() *cobra.Command {
	var count, parallel int
	cmd := &cobra.Command{
		Use:   "burst PATH",
		Short: "Send concurrent GETs and report renewal statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			var ok, failed atomic.Int64
			g, ctx := errgroup.WithContext(cmd.Context())
			if parallel > 0 {
				g.SetLimit(parallel)
			}
			start := time.Now()
			for i := 0; i < count; i++ {
				g.Go(func() error {
					if _, err := a.bridge.Request(ctx, http.MethodGet, args[0], nil); err != nil {
						failed.Add(1)
						return nil
					}
					ok.Add(1)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			stats := a.bridge.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "requests=%d ok=%d failed=%d renewals=%d renewal_failures=%d elapsed=%s\n",
				count, ok.Load(), failed.Load(), stats.Renewals, stats.Failures, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of requests")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Maximum in-flight requests (0 = unlimited)")
	return cmd
}
