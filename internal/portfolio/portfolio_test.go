package portfolio

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradeking/tradeking-api/internal/account"
	"github.com/tradeking/tradeking-api/internal/database"
	"github.com/tradeking/tradeking-api/internal/market"
	"github.com/tradeking/tradeking-api/internal/storage"
	"github.com/tradeking/tradeking-api/pkg/response"
)

func newTestService(t *testing.T, prices market.Source) (*Service, *account.Account, *storage.Database) {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	store := storage.NewDatabase(db)

	acct := account.New(100000)
	if _, err := acct.Buy("NVDA.US", 10, 100); err != nil {
		t.Fatal(err)
	}
	return NewService(acct, prices, store), acct, store
}

func TestAssets(t *testing.T) {
	svc, _, _ := newTestService(t, market.NewStaticSource(map[string]float64{"NVDA.US": 120}))

	assets, err := svc.Assets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if assets.PositionsValue != 1200 || assets.TotalUnrealizedPnL != 200 {
		t.Errorf("unexpected assets %+v", assets)
	}

	costOnly, _, _ := newTestService(t, nil)
	assets, _ = costOnly.Assets(context.Background())
	if assets.PositionsValue != 1000 || assets.TotalAssets != 100000 {
		t.Errorf("expected cost basis valuation without a price source, got %+v", assets)
	}
}

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewGinHandlers(svc)

	r := gin.New()
	r.GET("/account", h.AccountHandler())
	r.GET("/positions", h.PositionsHandler())
	r.GET("/orders", h.OrdersHandler())
	r.GET("/assets", h.AssetsHandler())
	r.GET("/latest", h.LatestSnapshotHandler())
	r.GET("/equity-curve", h.EquityCurveHandler())
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHandlers(t *testing.T) {
	svc, _, store := newTestService(t, nil)
	r := newRouter(svc)

	if w := get(r, "/latest"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any snapshot, got %d", w.Code)
	}
	if w := get(r, "/equity-curve?model_choice=gpt5"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for empty curve, got %d", w.Code)
	}

	base := time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)
	for i, total := range []float64{100000, 102000} {
		err := store.CreateSnapshot(&storage.PortfolioSnapshot{
			SnapshotID:    "SNAP_" + string(rune('a'+i)),
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			ModelChoice:   "gpt5",
			TotalValue:    total,
			CashBalance:   99000,
			Positions:     `{}`,
			UnrealizedPnL: total - 100000,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		target string
		status int
	}{
		{"/account", http.StatusOK},
		{"/positions", http.StatusOK},
		{"/orders?limit=1", http.StatusOK},
		{"/orders?limit=0", http.StatusBadRequest},
		{"/assets", http.StatusOK},
		{"/latest", http.StatusOK},
		{"/latest?model_choice=GPT5", http.StatusOK},
		{"/latest?model_choice=deepseek", http.StatusNotFound},
		{"/latest?model_choice=llama", http.StatusBadRequest},
		{"/equity-curve", http.StatusBadRequest},
		{"/equity-curve?model_choice=llama", http.StatusBadRequest},
		{"/equity-curve?model_choice=gpt5&limit=10001", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := get(r, tt.target); w.Code != tt.status {
			t.Errorf("%s: expected %d, got %d: %s", tt.target, tt.status, w.Code, w.Body.String())
		}
	}

	for _, target := range []string{"/latest?model_choice=llama", "/equity-curve?model_choice=llama"} {
		var failed struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(get(r, target).Body.Bytes(), &failed); err != nil {
			t.Fatal(err)
		}
		if failed.Error.Code != response.ErrCodeValidationFailed {
			t.Errorf("%s: expected %s, got %q", target, response.ErrCodeValidationFailed, failed.Error.Code)
		}
	}

	w := get(r, "/equity-curve?model_choice=gpt5")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data storage.EquityCurve `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data.DataPoints) != 2 || math.Abs(body.Data.TotalReturnPct-2) > 1e-9 {
		t.Errorf("unexpected curve %+v", body.Data)
	}
}
