package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/finledger/api/internal/auth"
	"github.com/finledger/api/internal/handler"
	"github.com/finledger/api/internal/middleware"
	"github.com/finledger/api/internal/model"
	"github.com/finledger/api/internal/render"
	"github.com/finledger/api/internal/service"
	"github.com/finledger/api/internal/stats"
	"github.com/finledger/api/internal/store"
	"github.com/finledger/api/internal/worker"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testUserID    = "test-user-123"
)

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *store.MemoryStore
}

// fixedReader serves a static transaction set for every owner.
type fixedReader struct {
	txns []model.Transaction
}

func (r *fixedReader) FetchTransactions(ctx context.Context, ownerID string, start, end time.Time) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range r.txns {
		if !t.CreatedAt.Before(start) && !t.CreatedAt.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// syncDispatcher runs jobs inline so tests observe terminal states without
// polling.
type syncDispatcher struct {
	worker *worker.ReportWorker
}

func (d *syncDispatcher) Dispatch(ctx context.Context, job *model.ReportJob) error {
	return d.worker.Execute(ctx, job.OwnerID, job.ID)
}

func testTransactions() []model.Transaction {
	return []model.Transaction{
		{
			ID:           "t1",
			Amount:       decimal.NewFromInt(3000),
			Type:         model.TransactionIncome,
			CategoryName: "Salary",
			CreatedAt:    time.Date(2026, 7, 5, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:            "t2",
			Amount:        decimal.NewFromInt(450),
			Type:          model.TransactionExpense,
			CategoryName:  "Groceries",
			CategoryColor: "#40c057",
			CreatedAt:     time.Date(2026, 7, 12, 18, 30, 0, 0, time.UTC),
		},
		{
			ID:            "t3",
			Amount:        decimal.NewFromInt(900),
			Type:          model.TransactionExpense,
			CategoryName:  "Rent",
			CategoryColor: "#fa5252",
			CreatedAt:     time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

// setupApp wires the report and statistics surface the way main.go does, but
// on in-memory stores and an inline dispatcher so no Redis is needed.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	memStore := store.NewMemoryStore()
	reader := &fixedReader{txns: testTransactions()}
	engine := stats.NewEngine(reader)
	renderer := render.NewWorkbookRenderer()

	reportWorker := worker.NewReportWorker(memStore, memStore, reader, engine, renderer, nil)
	dispatcher := &syncDispatcher{worker: reportWorker}

	reportService := service.NewReportService(memStore, memStore, dispatcher, renderer)
	statsService := service.NewStatsService(engine, nil)

	validate := validator.New()
	reportHandler := handler.NewReportHandler(reportService, validate)
	statsHandler := handler.NewStatisticsHandler(statsService)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	reports := api.Group("/reports")
	reports.Post("/", reportHandler.Submit)
	reports.Get("/:jobId/status", reportHandler.Status)
	reports.Get("/:jobId/download", reportHandler.Download)

	statistics := api.Group("/statistics")
	statistics.Get("/monthly-balance", statsHandler.MonthlyBalance)
	statistics.Get("/monthly-balances", statsHandler.MonthlyBalances)
	statistics.Get("/category-expenses", statsHandler.CategoryExpenses)
	statistics.Get("/trends", statsHandler.Trends)

	return &testApp{app: app, store: memStore}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.GenerateToken(testUserID, "test@example.com", testJWTSecret)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}
