package integration

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pigeonworks-llc/go-portalloc/pkg/ports"

	"github.com/pigeonworks-llc/npd-client/emulator/api"
	"github.com/pigeonworks-llc/npd-client/emulator/store"
	"github.com/pigeonworks-llc/npd-client/pkg/income"
	"github.com/pigeonworks-llc/npd-client/pkg/money"
	"github.com/pigeonworks-llc/npd-client/pkg/nalog"
)

type parallelTestServer struct {
	baseURL string
	store   *store.Store
}

func setupParallelTestServer(t *testing.T) *parallelTestServer {
	t.Helper()

	// Allocate a free port using go-portalloc
	allocator := ports.NewAllocator(nil)
	port, err := allocator.AllocateRange(1)
	if err != nil {
		t.Fatalf("Failed to allocate port: %v", err)
	}

	// Initialize store
	st, err := store.New(filepath.Join(t.TempDir(), "emulator.db"))
	if err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	if err := st.PutAccount(TestAccount()); err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/", api.NewServer(st, api.Config{SMSCode: testSMSCode, Logger: quiet}).Routes())

	// Start server in background
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		_ = server.ListenAndServe()
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	maxRetries := 10
	for i := 0; i < maxRetries; i++ {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if i == maxRetries-1 {
			st.Close()
			t.Fatalf("Server did not start: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Cleanup(func() {
		_ = server.Close()
		_ = st.Close()
	})

	return &parallelTestServer{
		baseURL: baseURL + "/api",
		store:   st,
	}
}

func (s *parallelTestServer) login(t *testing.T, deviceID string) *nalog.Client {
	t.Helper()

	client, err := nalog.NewClient(nalog.ClientConfig{
		BaseURL:  s.baseURL,
		DeviceID: deviceID,
		Logger:   quiet,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if _, err := client.CreateNewAccessToken(context.Background(), testINN, testPassword); err != nil {
		t.Fatalf("Failed to login: %v", err)
	}
	return client
}

func TestParallelIncome(t *testing.T) {
	t.Parallel()

	server := setupParallelTestServer(t)
	client := server.login(t, "paralleldevice0000001")
	builder := NewTestDataBuilder("Параллельно")

	const receipts = 5
	var mu sync.Mutex
	seen := make(map[string]bool)

	// Create receipts concurrently through one shared client
	t.Run("Create receipts", func(t *testing.T) {
		for i := 0; i < receipts; i++ {
			t.Run(fmt.Sprintf("Receipt_%d", i), func(t *testing.T) {
				t.Parallel()

				item, err := builder.Item(i, fmt.Sprintf("%d.50", 1000*(i+1)))
				if err != nil {
					t.Fatalf("Failed to build item: %v", err)
				}
				result, err := client.Income().CreateMultipleItems(context.Background(), []income.ServiceItem{item}, nil)
				if err != nil {
					t.Fatalf("Receipt %d: %v", i, err)
				}

				mu.Lock()
				seen[result.ApprovedReceiptUUID] = true
				mu.Unlock()
			})
		}
	})

	// Verify all receipts were stored under distinct ids
	t.Run("Stored receipts", func(t *testing.T) {
		if len(seen) != receipts {
			t.Fatalf("Expected %d distinct receipt ids, got %d", receipts, len(seen))
		}
		stored, err := server.store.ListReceipts(testINN, true)
		if err != nil {
			t.Fatalf("Failed to list receipts: %v", err)
		}
		if len(stored) != receipts {
			t.Errorf("Expected %d stored receipts, got %d", receipts, len(stored))
		}

		// 1000.50 + 2000.50 + ... + 5000.50
		total := money.AmountFromInt(0)
		for _, r := range stored {
			total = total.Add(money.AmountFromDecimal(r.TotalAmount))
		}
		if !total.Equal(money.MustAmount("15002.50")) {
			t.Errorf("Expected total 15002.50, got %s", total)
		}
	})
}

func TestParallelCancel(t *testing.T) {
	t.Parallel()

	server := setupParallelTestServer(t)
	builder := NewTestDataBuilder("Отмена")

	issuer := server.login(t, "paralleldevice0000002")
	item, err := builder.Item(0, "5000")
	if err != nil {
		t.Fatalf("Failed to build item: %v", err)
	}
	result, err := issuer.Income().CreateMultipleItems(context.Background(), []income.ServiceItem{item}, nil)
	if err != nil {
		t.Fatalf("Failed to create income: %v", err)
	}

	// Several devices race to cancel the same receipt; exactly one wins.
	const devices = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	performed := 0
	for i := 0; i < devices; i++ {
		client := server.login(t, fmt.Sprintf("racedevice%011d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := client.Receipt().Cancel(context.Background(), result.ApprovedReceiptUUID, income.CancelRefund)
			if err != nil {
				t.Errorf("Cancel failed: %v", err)
				return
			}
			if !res.AlreadyCancelled {
				mu.Lock()
				performed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if performed != 1 {
		t.Errorf("Expected exactly one performed cancellation, got %d", performed)
	}
}

func TestParallelStressTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	t.Parallel()

	server := setupParallelTestServer(t)
	client := server.login(t, "stressdevice000000001")
	builder := NewTestDataBuilder("Нагрузка")

	// Run 20 concurrent operations
	t.Run("Stress test with 20 operations", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			t.Run(fmt.Sprintf("Operation_%d", i), func(t *testing.T) {
				t.Parallel()

				ctx := context.Background()
				if i%2 == 0 {
					item, err := builder.Item(i, fmt.Sprintf("%d", 100*(i+1)))
					if err != nil {
						t.Fatalf("Failed to build item: %v", err)
					}
					if _, err := client.Income().CreateMultipleItems(ctx, []income.ServiceItem{item}, nil); err != nil {
						t.Errorf("Income %d: %v", i, err)
					}
				} else {
					if _, err := client.Tax().History(ctx, ""); err != nil {
						t.Errorf("Tax history %d: %v", i, err)
					}
				}
			})
		}
	})
}
