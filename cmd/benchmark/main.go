package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/voucherdesk/internal/config"
	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/gateway"
	"github.com/punchamoorthee/voucherdesk/internal/ledger"
	"github.com/punchamoorthee/voucherdesk/internal/voucher"
)

var (
	targetURL   string
	username    string
	password    string
	concurrency int
	duration    time.Duration
	workload    string
)

// Metrics
var (
	totalRequests uint64
	created       uint64
	conflicts     uint64 // 409 from concurrent edits
	rejected      uint64 // other 4xx
	failOther     uint64
)

func main() {
	cfg := config.LoadDefaults()
	flag.StringVar(&targetURL, "url", cfg.BackendBaseURL, "Backend base URL")
	flag.StringVar(&username, "user", cfg.BackendUsername, "Backend username")
	flag.StringVar(&password, "password", cfg.BackendPassword, "Backend password")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.Parse()
	if strings.TrimSpace(targetURL) == "" {
		log.Fatal("Backend URL is required: pass -url or set BACKEND_BASE_URL")
	}

	accounts, err := loadAccounts(cfg.BackendTimeout)
	if err != nil {
		log.Fatalf("Unable to load accounts: %v", err)
	}
	if len(accounts) < 2 {
		log.Fatal("Need at least two accounts; run the seeder first")
	}

	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, accounts, cfg.BackendTimeout)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func signIn(ctx context.Context, timeout time.Duration) (*gateway.Client, domain.User, error) {
	client, err := gateway.New(targetURL, timeout, nil)
	if err != nil {
		return nil, domain.User{}, err
	}
	user, err := client.Login(ctx, domain.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, domain.User{}, fmt.Errorf("login: %s", gateway.Message(err))
	}
	return client, user, nil
}

func loadAccounts(timeout time.Duration) ([]domain.LookupRecord, error) {
	ctx := context.Background()
	client, _, err := signIn(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return client.Lookup(ctx, domain.LookupAccounts)
}

func worker(wg *sync.WaitGroup, start time.Time, accounts []domain.LookupRecord, timeout time.Duration) {
	defer wg.Done()
	ctx := context.Background()

	// Each worker holds its own backend session.
	client, user, err := signIn(ctx, timeout)
	if err != nil {
		log.Printf("worker sign-in failed: %v", err)
		atomic.AddUint64(&failOther, 1)
		return
	}
	cfg, _ := voucher.ConfigFor(voucher.Journal)

	for time.Since(start) < duration {
		d := randomJournal(cfg, accounts)
		endpoint, body := d.Payload(user.ID.String())

		_, err := client.CreateVoucher(ctx, endpoint, body)
		atomic.AddUint64(&totalRequests, 1)

		var se *gateway.ServerError
		switch {
		case err == nil:
			atomic.AddUint64(&created, 1)
		case errors.As(err, &se) && se.Status == http.StatusConflict:
			atomic.AddUint64(&conflicts, 1)
		case errors.As(err, &se) && se.Status < http.StatusInternalServerError:
			atomic.AddUint64(&rejected, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
	}
}

// randomJournal builds a balanced journal: one to three debit lines and a
// single credit line carrying their sum.
func randomJournal(cfg voucher.Config, accounts []domain.LookupRecord) *voucher.Draft {
	d := voucher.NewDraft(cfg, time.Now())
	d.Header.Description = fmt.Sprintf("benchmark %s", d.ID[:8])

	total := decimal.Zero
	lines := rand.Intn(3) + 1
	for i := 0; i < lines; i++ {
		acct := pickAccount(accounts, 0)
		amount := decimal.New(int64(rand.Intn(100000)+1), -2)
		d.Rows.AddRow(acct.ID.String(), acct.Name, ledger.Debit, amount)
		total = total.Add(amount)
	}
	acct := pickAccount(accounts, 1)
	d.Rows.AddRow(acct.ID.String(), acct.Name, ledger.Credit, total)
	return d
}

func pickAccount(accounts []domain.LookupRecord, hot int) domain.LookupRecord {
	// Hotspot: 90% of lines post to the first two accounts
	if workload == "hotspot" && rand.Float32() < 0.90 {
		return accounts[hot]
	}
	return accounts[rand.Intn(len(accounts))]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&created)
	f409 := atomic.LoadUint64(&conflicts)
	f4xx := atomic.LoadUint64(&rejected)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var abortRate float64
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"success_created": ok,
		"aborts_conflict": f409,
		"abort_rate_pct":  abortRate,
		"rejected":        f4xx,
		"errors":          fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Unable to save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
