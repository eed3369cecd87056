// Package main provides the CLI for schema and company setup.
// Usage:
//
//	tenant migrate up
//	tenant company
//	tenant token --company <uuid> --user alice --role accountant
//	tenant product --company <uuid> --name "Widget" --qty 10 --min 2
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"facturo/internal/core/id"
	"facturo/internal/core/tenant"
	"facturo/internal/domain/auth"
	"facturo/internal/infrastructure/storage/postgres"
	"facturo/internal/infrastructure/storage/postgres/migrations"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	ctx := context.Background()

	switch os.Args[1] {
	case "migrate":
		runMigrate(ctx)
	case "company":
		fmt.Println(id.New())
	case "token":
		issueToken()
	case "product":
		createProduct(ctx)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Facturo setup CLI

Usage:
  tenant <command> [options]

Commands:
  migrate   Apply (up), revert (down N) or show (version) the schema
  company   Print a new company ID
  token     Issue a bearer token for a company user
  product   Create a product with an opening stock level
  help      Show this help

Environment Variables:
  DATABASE_URL   Connection string (migrate, product)
  JWT_SECRET     Token signing secret (token)
  JWT_ISSUER     Token issuer, default "facturo"

Examples:
  tenant migrate up
  tenant migrate down 1
  tenant token --company <uuid> --user alice --role accountant
  tenant product --company <uuid> --name "Widget" --qty 10 --min 2`)
}

// parseFlags reads "--name value" pairs following the command.
func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			flags[args[i][2:]] = args[i+1]
			i++
		}
	}
	return flags
}

func fail(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}

func getPool(ctx context.Context) *postgres.Pool {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fail("DATABASE_URL environment variable is required")
	}

	cfg := postgres.DefaultPoolConfig(dsn)
	cfg.MaxConns = 2
	cfg.MinConns = 0
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		fail("connecting to database: %v", err)
	}
	return pool
}

func runMigrate(ctx context.Context) {
	direction := "up"
	if len(os.Args) > 2 {
		direction = os.Args[2]
	}

	pool := getPool(ctx)
	defer pool.Close()

	switch direction {
	case "up":
		if err := migrations.Up(pool); err != nil {
			fail("%v", err)
		}
		fmt.Println("Migrations applied")
	case "down":
		steps := 1
		if len(os.Args) > 3 {
			n, err := strconv.Atoi(os.Args[3])
			if err != nil {
				fail("invalid step count %q", os.Args[3])
			}
			steps = n
		}
		if err := migrations.Down(pool, steps); err != nil {
			fail("%v", err)
		}
		fmt.Printf("Reverted %d migration(s)\n", steps)
	case "version":
		version, dirty, err := migrations.Version(pool)
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Version: %d (dirty: %t)\n", version, dirty)
	default:
		fail("unknown migrate direction %q (use up, down or version)", direction)
	}
}

func companyFlag(flags map[string]string) id.ID {
	companyID, err := id.Parse(flags["company"])
	if err != nil {
		fail("--company must be a UUID")
	}
	return companyID
}

func issueToken() {
	flags := parseFlags(os.Args[2:])

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fail("JWT_SECRET environment variable is required")
	}

	role := tenant.Role(flags["role"])
	if role == "" {
		role = tenant.RoleAccountant
	}
	tc := tenant.New(companyFlag(flags), flags["user"], role)
	if err := tc.Validate(); err != nil {
		fail("%v", err)
	}

	cfg := auth.DefaultJWTConfig(secret)
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		cfg.Issuer = issuer
	}

	token, expiresAt, err := auth.NewJWTService(cfg).GenerateToken(tc)
	if err != nil {
		fail("signing token: %v", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
}

func decimalFlag(flags map[string]string, name string) decimal.Decimal {
	raw, ok := flags[name]
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		fail("--%s must be a non-negative number", name)
	}
	return d
}

func createProduct(ctx context.Context) {
	flags := parseFlags(os.Args[2:])

	companyID := companyFlag(flags)
	name := flags["name"]
	if name == "" {
		fail("--name is required")
	}

	productID := id.New()
	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("products").
		SetMap(map[string]any{
			"id":           productID,
			"company_id":   companyID,
			"reference":    flags["ref"],
			"name":         name,
			"unit_price":   postgres.Numeric(decimalFlag(flags, "price")),
			"quantity":     postgres.Numeric(decimalFlag(flags, "qty")),
			"min_quantity": postgres.Numeric(decimalFlag(flags, "min")),
		}).
		ToSql()
	if err != nil {
		fail("building insert: %v", err)
	}

	pool := getPool(ctx)
	defer pool.Close()

	if _, err := pool.Exec(ctx, sql, args...); err != nil {
		fail("creating product: %v", err)
	}
	fmt.Println(productID)
}
