package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/finledger/api/internal/middleware"
	"github.com/finledger/api/internal/repository"
	"github.com/finledger/api/internal/service"
	"github.com/finledger/api/pkg/response"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"

	minTrendMonths = 1
	maxTrendMonths = 24
)

type StatisticsHandler struct {
	service *service.StatsService
	now     func() time.Time
}

func NewStatisticsHandler(svc *service.StatsService) *StatisticsHandler {
	return &StatisticsHandler{
		service: svc,
		now:     time.Now,
	}
}

// MonthlyBalance handles GET /api/statistics/monthly-balance
func (h *StatisticsHandler) MonthlyBalance(c *fiber.Ctx) error {
	month := h.now().UTC()
	if raw := c.Query("month"); raw != "" {
		parsed, err := time.Parse(monthLayout, raw)
		if err != nil {
			return response.ValidationError(c, "Month must be in YYYY-MM format", nil)
		}
		month = parsed
	}

	result, err := h.service.MonthlyBalance(c.Context(), middleware.GetUserID(c), month)
	if err != nil {
		return h.statsError(c, err)
	}
	return response.OK(c, result)
}

// MonthlyBalances handles GET /api/statistics/monthly-balances
func (h *StatisticsHandler) MonthlyBalances(c *fiber.Ctx) error {
	startMonth, err := time.Parse(monthLayout, c.Query("startMonth"))
	if err != nil {
		return response.ValidationError(c, "startMonth must be in YYYY-MM format", nil)
	}
	endMonth, err := time.Parse(monthLayout, c.Query("endMonth"))
	if err != nil {
		return response.ValidationError(c, "endMonth must be in YYYY-MM format", nil)
	}

	result, err := h.service.MonthlyBalances(c.Context(), middleware.GetUserID(c), startMonth, endMonth)
	if err != nil {
		return h.statsError(c, err)
	}
	return response.OK(c, result)
}

// CategoryExpenses handles GET /api/statistics/category-expenses
func (h *StatisticsHandler) CategoryExpenses(c *fiber.Ctx) error {
	start, err := time.Parse(dateLayout, c.Query("startDate"))
	if err != nil {
		return response.ValidationError(c, "startDate must be in YYYY-MM-DD format", nil)
	}
	end, err := time.Parse(dateLayout, c.Query("endDate"))
	if err != nil {
		return response.ValidationError(c, "endDate must be in YYYY-MM-DD format", nil)
	}
	if end.Before(start) {
		return response.ValidationError(c, "startDate must not be after endDate", nil)
	}

	// The end date covers the whole day.
	end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)

	result, err := h.service.CategoryExpenses(c.Context(), middleware.GetUserID(c), start, end)
	if err != nil {
		return h.statsError(c, err)
	}
	return response.OK(c, result)
}

// Trends handles GET /api/statistics/trends
func (h *StatisticsHandler) Trends(c *fiber.Ctx) error {
	months := service.DefaultTrendMonths
	if raw := c.Query("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < minTrendMonths || parsed > maxTrendMonths {
			return response.ValidationError(c, "months must be between 1 and 24", nil)
		}
		months = parsed
	}

	result, err := h.service.TrendAnalysis(c.Context(), middleware.GetUserID(c), months)
	if err != nil {
		return h.statsError(c, err)
	}
	return response.OK(c, result)
}

func (h *StatisticsHandler) statsError(c *fiber.Ctx, err error) error {
	if errors.Is(err, repository.ErrUnavailable) {
		return response.ServiceError(c, "Transaction data is unavailable")
	}
	return response.ServiceError(c, "Failed to compute statistics")
}
