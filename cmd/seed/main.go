package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/khana-fast/api/internal/config"
	"github.com/khana-fast/api/internal/database"
	"github.com/khana-fast/api/internal/enum"
	"github.com/khana-fast/api/internal/service"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	withSamples := flag.Bool("samples", false, "Also create sample picker/packer accounts and orders")
	flag.Parse()

	// Fall back to environment variables
	if *email == "" {
		*email = os.Getenv("SEED_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}

	// Fall back to defaults
	if *email == "" {
		*email = "admin@khanafast.in"
	}
	if *password == "" {
		*password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}
	if *name == "" {
		*name = "Khana Admin"
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	adminID, err := seedUser(ctx, tx, *email, *password, *name, enum.UserRoleAdmin)
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}

	if *withSamples {
		if err := seedSamples(ctx, tx); err != nil {
			log.Fatalf("Failed to seed samples: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Admin ID: %s", adminID)
}

// seedUser creates an account if it doesn't exist yet.
func seedUser(ctx context.Context, tx pgx.Tx, email, password, fullName, role string) (uuid.UUID, error) {
	var existingID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1 LIMIT 1`, email).Scan(&existingID)
	if err == nil {
		log.Printf("User '%s' already exists (ID: %s), skipping", email, existingID)
		return existingID, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	var newID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, full_name, role, is_active)
		 VALUES ($1, $2, $3, $4, true)
		 RETURNING id`,
		email, string(hashed), fullName, role,
	).Scan(&newID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}

	log.Printf("Created %s user '%s' (ID: %s)", role, email, newID)
	return newID, nil
}

// seedSamples creates a picker, a packer, a customer account and two demo
// orders so a fresh install has something on the board.
func seedSamples(ctx context.Context, tx pgx.Tx) error {
	pickerID, err := seedUser(ctx, tx, "picker@khanafast.in", "password123", "Pia Picker", enum.UserRolePicker)
	if err != nil {
		return err
	}
	packerID, err := seedUser(ctx, tx, "packer@khanafast.in", "password123", "Pat Packer", enum.UserRolePacker)
	if err != nil {
		return err
	}
	// Customer accounts live in the storefront system; orders only carry the
	// customer id plus contact snapshots.
	customerID := uuid.New()

	queries := database.New(tx)
	picker, err := queries.GetUser(ctx, pickerID)
	if err != nil {
		return fmt.Errorf("load picker: %w", err)
	}
	packer, err := queries.GetUser(ctx, packerID)
	if err != nil {
		return fmt.Errorf("load packer: %w", err)
	}

	samples := []struct {
		name  string
		items []database.OrderItem
	}{
		{"Asha Verma", []database.OrderItem{
			{ProductID: uuid.New(), Name: "Basmati Rice 5kg", UnitPrice: decimal.NewFromInt(100), Quantity: 2},
			{ProductID: uuid.New(), Name: "Ghee 1l", UnitPrice: decimal.NewFromInt(50), Quantity: 1},
		}},
		{"Ravi Iyer", []database.OrderItem{
			{ProductID: uuid.New(), Name: "Toor Dal 2kg", UnitPrice: decimal.NewFromInt(80), Quantity: 3},
		}},
	}

	for i, s := range samples {
		next, err := queries.GetNextOrderNumber(ctx)
		if err != nil {
			return fmt.Errorf("next order number: %w", err)
		}
		total := service.ItemsTotal(s.items)
		_, err = queries.CreateOrder(ctx, database.CreateOrderParams{
			OrderNumber:     fmt.Sprintf("KF-%04d", next),
			CustomerID:      customerID,
			CustomerName:    s.name,
			ShippingAddress: fmt.Sprintf("%d Market Road, Mumbai", 10+i),
			ShippingPhone:   "+91-9000000000",
			Status:          enum.OrderStatusPending,
			Items:           s.items,
			TotalAmount:     service.DecimalToNumeric(total),
			Payment: database.PaymentDetails{
				Method:        enum.PaymentMethodCOD,
				Status:        enum.PaymentStatusPending,
				PayableAmount: total,
				PaidAmount:    decimal.Zero,
				Adjustment:    decimal.Zero,
			},
			Picker: &database.Assignment{
				UserID: picker.ID,
				Name:   picker.FullName,
				Status: enum.AssignmentStatusAssigned,
			},
			Packer: &database.Assignment{
				UserID: packer.ID,
				Name:   packer.FullName,
				Status: enum.AssignmentStatusAssigned,
			},
		})
		if err != nil {
			return fmt.Errorf("insert sample order: %w", err)
		}
	}

	log.Printf("Created %d sample orders", len(samples))
	return nil
}
