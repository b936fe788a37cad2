package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finledger/api/internal/model"
	"github.com/finledger/api/internal/stats"
)

// Cache TTLs follow how quickly each answer goes stale: category rankings
// shift with every new expense, trend windows only move once a month.
const (
	categoryCacheTTL = time.Hour
	trendCacheTTL    = 2 * time.Hour
)

// StatsService fronts the aggregation engine for the HTTP layer and caches
// the two expensive read shapes in Redis. The cache is best effort: a nil
// client or a Redis failure degrades to computing fresh.
type StatsService struct {
	engine *stats.Engine
	cache  *redis.Client
}

func NewStatsService(engine *stats.Engine, cache *redis.Client) *StatsService {
	return &StatsService{engine: engine, cache: cache}
}

// MonthlyBalance returns the balance of the calendar month containing month.
func (s *StatsService) MonthlyBalance(ctx context.Context, ownerID string, month time.Time) (model.MonthlyBalance, error) {
	return s.engine.MonthlyBalance(ctx, ownerID, month)
}

// MonthlyBalances returns one balance per month from startMonth through
// endMonth inclusive.
func (s *StatsService) MonthlyBalances(ctx context.Context, ownerID string, startMonth, endMonth time.Time) ([]model.MonthlyBalance, error) {
	return s.engine.MonthlyBalances(ctx, ownerID, startMonth, endMonth)
}

// CategoryExpenses returns the ranked expense breakdown for [start, end],
// served from cache when a recent identical query exists.
func (s *StatsService) CategoryExpenses(ctx context.Context, ownerID string, start, end time.Time) ([]model.CategoryExpense, error) {
	key := fmt.Sprintf("stats:categories:%s:%s:%s", ownerID, start.Format("2006-01-02"), end.Format("2006-01-02"))

	var cached []model.CategoryExpense
	if s.readCache(ctx, key, &cached) {
		return cached, nil
	}

	expenses, err := s.engine.CategoryExpenses(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, expenses, categoryCacheTTL)
	return expenses, nil
}

// TrendAnalysis returns the trailing trend window, cached per owner and
// month count.
func (s *StatsService) TrendAnalysis(ctx context.Context, ownerID string, months int) (*model.TrendAnalysis, error) {
	key := fmt.Sprintf("stats:trends:%s:%d", ownerID, months)

	var cached model.TrendAnalysis
	if s.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	analysis, err := s.engine.TrendAnalysis(ctx, ownerID, months)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, analysis, trendCacheTTL)
	return analysis, nil
}

func (s *StatsService) readCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Stats cache read failed for %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Printf("Stats cache entry %s is corrupt, recomputing: %v", key, err)
		return false
	}
	return true
}

func (s *StatsService) writeCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("Stats cache write failed for %s: %v", key, err)
	}
}
