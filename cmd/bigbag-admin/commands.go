package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/cache"
	"bigbag/internal/config"
	"bigbag/internal/credits"
	"bigbag/internal/models"
	"bigbag/internal/notify"
	"bigbag/internal/seed"
	"bigbag/internal/shares"
	"bigbag/internal/shops"
	"bigbag/internal/store"
	"bigbag/internal/store/mongostore"
)

// app holds the connections shared by every command. Tests set store and
// cache up front so connect becomes a no-op.
type app struct {
	store    store.Store
	cache    cache.Cache
	notifier *notify.Notifier
	cacheTTL time.Duration
	welcome  int
	closers  []func()
}

func (a *app) connect(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	st, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.Close(ctx)
	})

	rc, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, using in-process cache", "error", err)
		a.cache = cache.NewMemory()
	} else {
		a.cache = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}

	a.store = st
	a.notifier = notify.NewNotifier(st, notify.NewExpo(cfg.ExpoPushURL, cfg.PushEnabled))
	a.cacheTTL = cfg.LeaderboardCacheTTL
	a.welcome = cfg.WelcomeRolls
	return nil
}

// close waits for queued pushes and releases connections in reverse order.
func (a *app) close() {
	a.notifier.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) credits() *credits.Service { return credits.NewService(a.store, a.notifier) }

func (a *app) shares() *shares.Service {
	ttl := a.cacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return shares.NewService(a.store, a.cache, ttl)
}

func (a *app) shops() *shops.Service {
	return shops.NewService(a.store, a.credits(), a.notifier, a.welcome)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "bigbag-admin",
		Short:         "Operator tools for the BigBag backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect(cmd.Context())
		},
	}
	root.AddCommand(
		newSeedCmd(a),
		newShopCmd(a),
		newCreditsCmd(a),
		newLeaderboardCmd(a),
		newUserCmd(a),
	)
	return root
}

func newSeedCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert categories and roll packages from a YAML catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			if err := cat.Apply(cmd.Context(), a.store); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d categories and %d packages\n", len(cat.Categories), len(cat.Packages))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yaml", "catalog file")
	return cmd
}

func newShopCmd(a *app) *cobra.Command {
	shop := &cobra.Command{Use: "shop", Short: "Moderate shops"}

	var reason string
	status := &cobra.Command{
		Use:   "status <shopID> <approved|rejected|suspended>",
		Short: "Change a shop's moderation status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid shop id %q", args[0])
			}
			s, err := a.shops().SetStatus(cmd.Context(), id, args[1], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "shop %s (%s) is now %s\n", s.ID.Hex(), s.Name, s.Status)
			return nil
		},
	}
	status.Flags().StringVar(&reason, "reason", "", "reason shown to the owner")
	shop.AddCommand(status)
	return shop
}

func newCreditsCmd(a *app) *cobra.Command {
	cr := &cobra.Command{Use: "credits", Short: "Manage vendor roll credits"}

	var reason string
	grant := &cobra.Command{
		Use:   "grant <userID> <rolls>",
		Short: "Add roll credits to a vendor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rolls must be an integer: %w", err)
			}
			p, err := a.credits().Grant(cmd.Context(), id, n, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %d rolls; %d available\n", n, p.AvailableRolls)
			return nil
		},
	}
	grant.Flags().StringVar(&reason, "reason", "admin", "note stored with the grant")
	cr.AddCommand(grant)
	return cr
}

func newLeaderboardCmd(a *app) *cobra.Command {
	var (
		country string
		week    string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the weekly most-shared shops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var at time.Time
			if week != "" {
				t, err := time.Parse(time.DateOnly, week)
				if err != nil {
					return fmt.Errorf("week must be YYYY-MM-DD: %w", err)
				}
				at = t
			}
			lb, err := a.shares().Leaderboard(cmd.Context(), country, at, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "week of %s", lb.WeekStart.Format(time.DateOnly))
			if lb.Country != "" {
				fmt.Fprintf(out, " in %s", lb.Country)
			}
			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tSHOP\tSHARES\tID")
			for _, e := range lb.Entries {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", e.Rank, e.ShopName, e.Shares, e.ShopID.Hex())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&country, "country", "", "ISO country code; empty for all countries")
	cmd.Flags().StringVar(&week, "week", "", "any date inside the week (YYYY-MM-DD); default this week")
	cmd.Flags().IntVar(&limit, "limit", shares.DefaultLimit, "number of shops")
	return cmd
}

func newUserCmd(a *app) *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage accounts"}

	promote := &cobra.Command{
		Use:   "promote <email> <user|vendor|admin>",
		Short: "Change an account's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := args[1]
			switch role {
			case models.RoleUser, models.RoleVendor, models.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			email := strings.ToLower(strings.TrimSpace(args[0]))
			u, err := a.store.GetUserByEmail(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("find %s: %w", email, err)
			}
			if err := a.store.SetUserRole(cmd.Context(), u.ID, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Email, role)
			return nil
		},
	}
	user.AddCommand(promote)
	return user
}
