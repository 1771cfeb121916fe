package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/punchamoorthee/voucherdesk/internal/config"
	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/store"
)

const (
	defaultUsername = "admin"
	defaultPassword = "admin"
	// Generated suppliers and customers, on top of the named ones.
	GeneratedParties = 200
)

var lookups = map[domain.LookupKind][][2]string{
	domain.LookupAccounts: {
		{"1101", "Cash in hand"},
		{"1102", "Cash at bank"},
		{"1201", "Trade receivables"},
		{"1301", "Inventory"},
		{"2101", "Trade payables"},
		{"2201", "Accrued expenses"},
		{"3101", "Share capital"},
		{"4101", "Sales"},
		{"4201", "Other income"},
		{"5100", "Rent expense"},
		{"5200", "Salaries"},
		{"5300", "Utilities"},
		{"5400", "Contractor fees"},
	},
	domain.LookupCustomers:    {{"1", "Walk-in customer"}},
	domain.LookupSuppliers:    {{"1", "Landlord Ltd"}, {"2", "City Power"}},
	domain.LookupPaymentCodes: {{"CASH", "Cash"}, {"CHQ", "Cheque"}, {"TRF", "Bank transfer"}},
	domain.LookupContractors:  {{"1", "Site Works Co"}, {"2", "Northside Electrical"}},
	domain.LookupProjects:     {{"P-100", "Head office fit-out"}, {"P-200", "Warehouse extension"}},
}

func main() {
	cfg, err := config.LoadBackend()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	st, err := store.NewStore(cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer st.Close()

	log.Println("--- Seeding Database ---")

	if err := st.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	if err := seedUser(ctx, st, cfg); err != nil {
		log.Fatalf("Seeding user failed: %v", err)
	}

	var count int
	st.Db.QueryRow(ctx, "SELECT COUNT(*) FROM lookups").Scan(&count)
	if count > 0 {
		log.Printf("Database already has %d lookup records. Skipping.", count)
		return
	}

	// Bulk Insert using CopyFrom
	rows := [][]interface{}{}
	for kind, records := range lookups {
		for _, rec := range records {
			rows = append(rows, []interface{}{string(kind), rec[0], rec[1]})
		}
	}
	for i := 1; i <= GeneratedParties; i++ {
		rows = append(rows,
			[]interface{}{string(domain.LookupCustomers), fmt.Sprintf("%d", 100+i), fmt.Sprintf("Customer %03d", i)},
			[]interface{}{string(domain.LookupSuppliers), fmt.Sprintf("%d", 100+i), fmt.Sprintf("Supplier %03d", i)},
		)
	}

	copyCount, err := st.Db.CopyFrom(
		ctx,
		pgx.Identifier{"lookups"},
		[]string{"kind", "id", "name"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		log.Fatalf("Bulk insert failed: %v", err)
	}

	log.Printf("Successfully seeded %d lookup records.", copyCount)
}

func seedUser(ctx context.Context, st *store.Store, cfg *config.Config) error {
	username, password := cfg.BackendUsername, cfg.BackendPassword
	if username == "" || password == "" {
		username, password = defaultUsername, defaultPassword
		log.Printf("BACKEND_USERNAME/BACKEND_PASSWORD not set, seeding %q with the default password", username)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = st.Db.Exec(ctx,
		`INSERT INTO users (username, name, role, password_hash) VALUES ($1, $2, 'admin', $3)
		 ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash`,
		username, "Administrator", string(hash))
	if err == nil {
		log.Printf("User %q is ready.", username)
	}
	return err
}
