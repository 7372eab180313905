// Package shares counts shop share events per ISO week and country and ranks
// shops on a weekly leaderboard.
package shares

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/apperr"
	"bigbag/internal/cache"
	"bigbag/internal/models"
	"bigbag/internal/store"
	"bigbag/internal/telemetry"
)

const (
	// UnknownCountry is recorded when the sharer's country is not known.
	UnknownCountry = "ZZ"

	DefaultLimit   = 10
	MaxLimit       = 100
	DefaultWeeks   = 8
	MaxWeeks       = 52
	cachedPageSize = MaxLimit
)

type Store interface {
	store.ShopStore
	store.ShareStore
}

type Service struct {
	store    Store
	cache    cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewService(st Store, c cache.Cache, cacheTTL time.Duration) *Service {
	return &Service{
		store:    st,
		cache:    c,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// WeekStart returns Monday 00:00 UTC of t's ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
}

// NormalizeCountry upper-cases a country code; empty becomes UnknownCountry.
func NormalizeCountry(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return UnknownCountry
	}
	return c
}

func leaderboardKey(week time.Time, country string) string {
	if country == "" {
		country = "ALL"
	}
	return fmt.Sprintf("leaderboard:%s:%s", week.Format(time.DateOnly), country)
}

// Record counts one share of shopID from country in the current week.
func (s *Service) Record(ctx context.Context, shopID primitive.ObjectID, country string) error {
	if _, err := s.store.GetShop(ctx, shopID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("shop")
		}
		return err
	}

	country = NormalizeCountry(country)
	week := WeekStart(s.now())
	if err := s.store.IncrementWeeklyShare(ctx, shopID, country, week, 1); err != nil {
		return fmt.Errorf("increment weekly share: %w", err)
	}
	if err := s.store.IncrementShopShares(ctx, shopID, 1); err != nil {
		return fmt.Errorf("increment shop shares: %w", err)
	}

	if err := s.cache.Delete(ctx, leaderboardKey(week, country), leaderboardKey(week, "")); err != nil {
		slog.Warn("Leaderboard cache invalidation failed", "week", week, "error", err)
	}
	telemetry.ShareRecorded(country)
	slog.Info("Shop share recorded", "shop_id", shopID.Hex(), "country", country)
	return nil
}

// Leaderboard ranks shops by shares in the week containing week (the current
// week when zero). An empty country ranks across all countries.
func (s *Service) Leaderboard(ctx context.Context, country string, week time.Time, limit int) (*models.Leaderboard, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if week.IsZero() {
		week = s.now()
	}
	start := WeekStart(week)
	if country != "" {
		country = NormalizeCountry(country)
	}

	key := leaderboardKey(start, country)
	var board models.Leaderboard
	err := cache.GetJSON(ctx, s.cache, key, &board)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("Leaderboard cache read failed", "key", key, "error", err)
		}
		built, err := s.build(ctx, start, country)
		if err != nil {
			return nil, err
		}
		board = *built
		if err := cache.SetJSON(ctx, s.cache, key, board, s.cacheTTL); err != nil {
			slog.Warn("Leaderboard cache write failed", "key", key, "error", err)
		}
	}

	if len(board.Entries) > limit {
		board.Entries = board.Entries[:limit]
	}
	return &board, nil
}

func (s *Service) build(ctx context.Context, week time.Time, country string) (*models.Leaderboard, error) {
	tallies, err := s.store.TopShops(ctx, week, country, cachedPageSize)
	if err != nil {
		return nil, fmt.Errorf("top shops: %w", err)
	}

	ids := make([]primitive.ObjectID, len(tallies))
	for i, t := range tallies {
		ids[i] = t.ShopID
	}
	shops, err := s.store.GetShops(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load shops: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.Shop, len(shops))
	for _, sh := range shops {
		byID[sh.ID] = sh
	}

	board := &models.Leaderboard{WeekStart: week, Country: country, Entries: []models.LeaderboardEntry{}}
	for _, t := range tallies {
		sh, ok := byID[t.ShopID]
		if !ok {
			continue
		}
		board.Entries = append(board.Entries, models.LeaderboardEntry{
			Rank:     len(board.Entries) + 1,
			ShopID:   t.ShopID,
			ShopName: sh.Name,
			Logo:     sh.Logo,
			Shares:   t.Count,
		})
	}
	return board, nil
}

// History returns the shop's weekly totals for the last weeks weeks, oldest
// first, with empty weeks reported as zero.
func (s *Service) History(ctx context.Context, shopID primitive.ObjectID, weeks int) ([]models.WeeklyTotal, error) {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	if weeks > MaxWeeks {
		weeks = MaxWeeks
	}
	if _, err := s.store.GetShop(ctx, shopID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("shop")
		}
		return nil, err
	}

	current := WeekStart(s.now())
	since := current.AddDate(0, 0, -7*(weeks-1))
	rows, err := s.store.ShopWeeklyShares(ctx, shopID, since)
	if err != nil {
		return nil, err
	}

	sums := make(map[time.Time]int64, weeks)
	for _, r := range rows {
		sums[r.WeekStart.UTC()] += r.Count
	}
	out := make([]models.WeeklyTotal, weeks)
	for i := range out {
		w := since.AddDate(0, 0, 7*i)
		out[i] = models.WeeklyTotal{WeekStart: w, Shares: sums[w]}
	}
	return out, nil
}

// RetentionHorizon is the first week kept when retaining weeks weeks.
func (s *Service) RetentionHorizon(weeks int) time.Time {
	return WeekStart(s.now()).AddDate(0, 0, -7*weeks)
}

// Prune deletes counters of weeks starting before before.
func (s *Service) Prune(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.store.PruneWeeklyShares(ctx, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Pruned weekly share counters", "before", before, "deleted", n)
	}
	return n, nil
}
