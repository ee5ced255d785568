package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/dailygoods/internal/metrics"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/cart"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/catalog"
	httpsvc "github.com/vladislavdragonenkov/dailygoods/internal/service/http"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/order"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/user"
	"github.com/vladislavdragonenkov/dailygoods/internal/storage/memory"
)

func newShopServer(t *testing.T) *httptest.Server {
	t.Helper()

	m := metrics.NewShopMetricsWithRegisterer(prometheus.NewRegistry())
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	entry := log.NewEntry(logger)

	users := memory.NewUserStore()
	catalogSvc := catalog.NewService(memory.NewProductRepository(), catalog.WithLogger(entry))
	router := httpsvc.NewRouter(httpsvc.Services{
		Catalog: catalogSvc,
		Cart:    cart.NewService(users, catalogSvc, m, entry),
		Orders:  order.NewService(memory.NewOrderRepository(), users, users, nil, m, entry),
		Users:   user.NewService(users, bcrypt.MinCost, entry),
	}, m, entry)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    loadMode
		wantErr string
	}{
		{name: "browse", input: "browse", want: modeBrowse},
		{name: "cart", input: " cart ", want: modeCart},
		{name: "checkout", input: "checkout", want: modeCheckout},
		{name: "unsupported", input: "bad", wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMode(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected mode: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		cfg, err := parseConfig([]string{
			"-base-url=http://127.0.0.1:5000/",
			"-mode=checkout",
			"-total=12",
			"-concurrency=3",
			"-timeout=2s",
			"-product-id= P1 ",
			"-price=4.25",
			"-quantity=2",
			"-email-tag=stage",
			"-output=/tmp/out.json",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.totalSet {
			t.Fatalf("expected totalSet=true")
		}
		if cfg.baseURL != "http://127.0.0.1:5000" {
			t.Fatalf("trailing slash must be trimmed, got %q", cfg.baseURL)
		}
		if cfg.mode != modeCheckout || cfg.productID != "P1" {
			t.Fatalf("unexpected config: %+v", cfg)
		}
		if cfg.total != 12 || cfg.concurrency != 3 || cfg.quantity != 2 {
			t.Fatalf("unexpected numeric config: %+v", cfg)
		}
		if !cfg.price.Equal(decimal.RequireFromString("4.25")) {
			t.Fatalf("unexpected price: %s", cfg.price)
		}
		if cfg.timeout != 2*time.Second {
			t.Fatalf("unexpected timeout: %s", cfg.timeout)
		}
	})

	t.Run("duration mode", func(t *testing.T) {
		cfg, err := parseConfig([]string{"-duration=3s", "-concurrency=2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.duration != 3*time.Second {
			t.Fatalf("unexpected duration: %s", cfg.duration)
		}
		if cfg.totalSet {
			t.Fatalf("expected totalSet=false when -total was not provided")
		}
		if cfg.mode != modeBrowse {
			t.Fatalf("expected browse by default, got %s", cfg.mode)
		}
	})

	t.Run("validation errors", func(t *testing.T) {
		tests := []struct {
			name    string
			args    []string
			wantErr string
		}{
			{name: "invalid duration", args: []string{"-duration=bad"}, wantErr: "parse duration"},
			{name: "negative duration", args: []string{"-duration=-1s"}, wantErr: "duration must be >= 0"},
			{name: "invalid price", args: []string{"-price=cheap"}, wantErr: "parse price"},
			{name: "negative price", args: []string{"-price=-1"}, wantErr: "price must be >= 0"},
			{name: "zero quantity", args: []string{"-quantity=0"}, wantErr: "quantity must be > 0"},
			{name: "empty total", args: []string{"-duration=0s", "-total=0"}, wantErr: "total must be > 0"},
			{name: "empty base url", args: []string{"-base-url= "}, wantErr: "base-url is required"},
			{name: "zero concurrency", args: []string{"-concurrency=0"}, wantErr: "concurrency must be > 0"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := parseConfig(tc.args)
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
			})
		}
	})
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{total: 5})

		var got []int
		for v := range jobs {
			got = append(got, v)
		}
		if !slices.Equal(got, []int{0, 1, 2, 3, 4}) {
			t.Fatalf("unexpected jobs sequence: %v", got)
		}
	})

	t.Run("duration mode", func(t *testing.T) {
		jobs := make(chan int, 32)
		done := make(chan struct{})
		go func() {
			dispatchJobs(jobs, config{duration: 20 * time.Millisecond})
			close(done)
		}()

		count := 0
		for range jobs {
			count++
		}
		<-done
		if count == 0 {
			t.Fatalf("expected non-zero jobs for duration mode")
		}
	})

	t.Run("duration with explicit max total", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{duration: time.Second, total: 3, totalSet: true})
		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs, got %d", count)
		}
	})
}

func TestCollectorAndReport(t *testing.T) {
	c := newCollector()
	c.record(scenarioMethod, 10*time.Millisecond, "200", true)
	c.record(scenarioMethod, 20*time.Millisecond, "failed", false)
	c.record("Checkout", 15*time.Millisecond, "201", true)

	snap, ok := c.snapshot(scenarioMethod)
	if !ok {
		t.Fatalf("scenario snapshot missing")
	}
	if snap.Calls != 2 || snap.Success != 1 || snap.Failed != 1 {
		t.Fatalf("unexpected scenario snapshot: %+v", snap)
	}
	if snap.Codes["200"] != 1 || snap.Codes["failed"] != 1 {
		t.Fatalf("unexpected codes: %+v", snap.Codes)
	}
	if _, ok := c.snapshot("missing"); ok {
		t.Fatalf("unexpected snapshot for unknown method")
	}

	r := c.buildReport(time.Now(), 2*time.Second)
	if r.TotalScenarios != 2 || r.FailedScenarios != 1 {
		t.Fatalf("unexpected report totals: %+v", r)
	}
	if r.RPS <= 0 {
		t.Fatalf("expected positive rps, got %f", r.RPS)
	}
	if _, ok := r.Methods["Checkout"]; !ok {
		t.Fatalf("expected Checkout stats in report")
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	values := []float64{10, 20, 30, 40}
	summary := buildLatencySummary(values)
	if summary.P50 <= 0 || summary.P95 <= 0 || summary.Max != 40 || summary.Min != 10 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}
	if p := percentile(values, 95); p <= 0 {
		t.Fatalf("unexpected percentile: %f", p)
	}
	if (buildLatencySummary(nil) != latencySummary{}) {
		t.Fatalf("empty values must give zero summary")
	}

	if got := runTarget(config{total: 50}); got != "count:50" {
		t.Fatalf("unexpected run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second}); got != "duration:2s" {
		t.Fatalf("unexpected duration run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second, total: 10, totalSet: true}); got != "duration:2s,max-total:10" {
		t.Fatalf("unexpected capped duration run target: %s", got)
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	sample := report{TotalScenarios: 2, SuccessScenarios: 2}
	if err := writeJSONReport(path, sample); err != nil {
		t.Fatalf("writeJSONReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.TotalScenarios != 2 || decoded.SuccessScenarios != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}

	if err := writeJSONReport("../escape.json", sample); err == nil {
		t.Fatalf("expected error for path outside current directory")
	}
	if err := writeJSONReport(".", sample); err == nil {
		t.Fatalf("expected error for directory path")
	}
}

func TestPrintReport(t *testing.T) {
	r := report{
		TotalScenarios:   2,
		SuccessScenarios: 2,
		Methods: map[string]methodReport{
			scenarioMethod: {Calls: 2, Success: 2},
			"Checkout":     {Calls: 2, Success: 2},
		},
	}

	var out bytes.Buffer
	printReport(&out, r, config{mode: modeCheckout, total: 2})

	if !strings.Contains(out.String(), "Load test summary") {
		t.Fatalf("expected summary header, got: %s", out.String())
	}
	if !strings.Contains(out.String(), "Checkout: calls=2") {
		t.Fatalf("expected method section, got: %s", out.String())
	}
}

func TestRun_ScenariosAgainstShopAPI(t *testing.T) {
	srv := newShopServer(t)

	testCases := []struct {
		mode    loadMode
		methods []string
	}{
		{mode: modeBrowse, methods: []string{"CreateProduct", "ListProducts", "GetProduct"}},
		{mode: modeCart, methods: []string{"RegisterUser", "AddCartItem", "GetCart"}},
		{mode: modeCheckout, methods: []string{"RegisterUser", "AddCartItem", "GetCart", "Checkout", "ListOrders"}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.mode), func(t *testing.T) {
			cfg := config{
				baseURL:     srv.URL,
				total:       6,
				concurrency: 3,
				timeout:     2 * time.Second,
				mode:        tc.mode,
				price:       decimal.RequireFromString("2.50"),
				quantity:    2,
				emailTag:    "test-" + string(tc.mode),
			}

			var out bytes.Buffer
			result, err := run(context.Background(), cfg, srv.Client(), &out)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if result.TotalScenarios != 6 || result.FailedScenarios != 0 {
				t.Fatalf("unexpected totals: %+v", result)
			}
			for _, name := range tc.methods {
				stats, ok := result.Methods[name]
				if !ok || stats.Failed != 0 {
					t.Fatalf("unexpected %s stats: %+v (present=%v)", name, stats, ok)
				}
			}
			if !strings.Contains(out.String(), "mode="+string(tc.mode)) {
				t.Fatalf("expected report output, got: %s", out.String())
			}
		})
	}
}

func TestRun_UnknownProductFailsScenarios(t *testing.T) {
	srv := newShopServer(t)

	cfg := config{
		baseURL:     srv.URL,
		total:       2,
		concurrency: 1,
		timeout:     time.Second,
		mode:        modeBrowse,
		productID:   "missing",
		price:       decimal.NewFromInt(1),
		quantity:    1,
		emailTag:    "load",
	}

	var out bytes.Buffer
	result, err := run(context.Background(), cfg, srv.Client(), &out)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.FailedScenarios != 2 {
		t.Fatalf("expected every scenario to fail, got %+v", result)
	}
	if result.Methods["GetProduct"].Codes["404"] != 2 {
		t.Fatalf("expected 404 codes, got %+v", result.Methods["GetProduct"].Codes)
	}
	if _, ok := result.Methods["CreateProduct"]; ok {
		t.Fatalf("existing product id must skip product creation")
	}
}

func TestRun_UnreachableAPI(t *testing.T) {
	cfg := config{
		baseURL:     "http://127.0.0.1:1",
		total:       1,
		concurrency: 1,
		timeout:     200 * time.Millisecond,
		mode:        modeBrowse,
		price:       decimal.NewFromInt(1),
		quantity:    1,
		emailTag:    "load",
	}

	var out bytes.Buffer
	if _, err := run(context.Background(), cfg, &http.Client{}, &out); err == nil || !strings.Contains(err.Error(), "prepare product") {
		t.Fatalf("expected prepare product error, got %v", err)
	}
}
