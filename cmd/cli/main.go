package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"

	"github.com/nuno2msilva/pocket-keeper/pkg/atcud"
	"github.com/nuno2msilva/pocket-keeper/pkg/backup"
	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/localstore"
	"github.com/nuno2msilva/pocket-keeper/pkg/resolver"
	"github.com/nuno2msilva/pocket-keeper/pkg/syncclient"
)

func usage() {
	fmt.Println("Usage: cli <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  scan <qr-payload>                      parse a receipt QR code")
	fmt.Println("  add-receipt <merchant> <date> [total]  record a receipt")
	fmt.Println("  add-item <receipt-id> <product> <qty> <unit-price>")
	fmt.Println("  list <products|merchants|receipts>")
	fmt.Println("  solidify-merchant <id> [name]")
	fmt.Println("  solidify-product <id> [name]")
	fmt.Println("  sync                                   push pending changes, pull deltas")
	fmt.Println("  bootstrap                              replace local data with server state")
	fmt.Println("  status                                 show server collection counts")
	fmt.Println("  export <file>")
	fmt.Println("  import <file>")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	store, err := localstore.Open(envOr("POCKET_KEEPER_DB", "pocket-keeper.db"), envOr("POCKET_KEEPER_OWNER", "local"))
	if err != nil {
		return err
	}
	defer store.Close()

	logger := slog.Default()
	res := resolver.New(store, logger)

	switch cmd {
	case "scan":
		if len(args) < 1 {
			return fmt.Errorf("usage: scan <qr-payload>")
		}
		return scan(args[0])
	case "add-receipt":
		if len(args) < 2 {
			return fmt.Errorf("usage: add-receipt <merchant> <date> [total]")
		}
		return addReceipt(store, res, args)
	case "add-item":
		if len(args) < 4 {
			return fmt.Errorf("usage: add-item <receipt-id> <product> <qty> <unit-price>")
		}
		return addItem(store, res, args)
	case "list":
		if len(args) < 1 {
			return fmt.Errorf("usage: list <products|merchants|receipts>")
		}
		return list(store, args[0])
	case "solidify-merchant":
		if len(args) < 1 {
			return fmt.Errorf("usage: solidify-merchant <id> [name]")
		}
		update := resolver.MerchantUpdate{}
		if len(args) > 1 {
			update.Name = &args[1]
		}
		m, err := res.SolidifyMerchant(args[0], update)
		if err != nil {
			return err
		}
		color.Green("Merchant %s solidified as %q", m.ID, m.Name)
		return nil
	case "solidify-product":
		if len(args) < 1 {
			return fmt.Errorf("usage: solidify-product <id> [name]")
		}
		update := resolver.ProductUpdate{}
		if len(args) > 1 {
			update.Name = &args[1]
		}
		p, err := res.SolidifyProduct(args[0], update)
		if err != nil {
			return err
		}
		color.Green("Product %s solidified as %q", p.ID, p.Name)
		return nil
	case "sync":
		return runSync(store, logger, false)
	case "bootstrap":
		return runSync(store, logger, true)
	case "status":
		return showStatus(store, logger)
	case "export":
		if len(args) < 1 {
			return fmt.Errorf("usage: export <file>")
		}
		return exportBackup(store, args[0])
	case "import":
		if len(args) < 1 {
			return fmt.Errorf("usage: import <file>")
		}
		return importBackup(store, args[0])
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func scan(payload string) error {
	if !atcud.IsValid(payload) {
		return fmt.Errorf("not a recognized receipt QR payload")
	}
	draft := atcud.Parse(payload)
	color.Cyan("Parsed receipt draft:")
	fmt.Printf("  merchant NIF:   %s\n", draft.NIF)
	if draft.CustomerNIF != "" {
		fmt.Printf("  customer NIF:   %s\n", draft.CustomerNIF)
	}
	fmt.Printf("  date:           %s\n", draft.Date)
	if draft.Time != "" {
		fmt.Printf("  time:           %s\n", draft.Time)
	}
	if draft.ReceiptNumber != "" {
		fmt.Printf("  receipt number: %s\n", draft.ReceiptNumber)
	}
	if draft.Total != nil {
		fmt.Printf("  total:          %.2f\n", *draft.Total)
	}
	return nil
}

func addReceipt(store *localstore.Store, res *resolver.Resolver, args []string) error {
	merchant, err := res.GetOrCreateMerchant(args[0], "")
	if err != nil {
		return err
	}
	receipt := domain.Receipt{MerchantID: merchant.ID, Date: args[1]}
	if len(args) > 2 {
		total, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid total: %w", err)
		}
		receipt.Total = total
	}
	saved, err := res.AddReceipt(receipt)
	if err != nil {
		return err
	}
	color.Green("Receipt %s recorded for %s (total %.2f)", saved.ID, merchant.Name, saved.Total)
	return nil
}

func addItem(store *localstore.Store, res *resolver.Resolver, args []string) error {
	qty, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid quantity: %w", err)
	}
	unit, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("invalid unit price: %w", err)
	}
	product, err := res.GetOrCreateProduct(args[1], "")
	if err != nil {
		return err
	}

	receipts, err := store.Receipts()
	if err != nil {
		return err
	}
	for i, r := range receipts {
		if r.ID != args[0] {
			continue
		}
		item := domain.NewReceiptItem(store.GenerateID(), product.ID, product.Name, qty, unit)
		receipts[i].Items = append(receipts[i].Items, item)
		if err := store.SetReceipts(receipts); err != nil {
			return err
		}
		if err := res.RecordPrice(product.ID, r.Date, unit, r.MerchantID); err != nil {
			return err
		}
		color.Green("Added %s x%.2f @ %.2f to receipt %s", product.Name, qty, unit, r.ID)
		return nil
	}
	return fmt.Errorf("receipt %s: %w", args[0], domain.ErrNotFound)
}

func list(store *localstore.Store, what string) error {
	switch what {
	case "products":
		products, err := store.Products()
		if err != nil {
			return err
		}
		for _, p := range products {
			fmt.Printf("%s  %s%s\n", p.ID, p.Name, solidifiedTag(p.IsSolidified))
		}
	case "merchants":
		merchants, err := store.Merchants()
		if err != nil {
			return err
		}
		for _, m := range merchants {
			fmt.Printf("%s  %s%s\n", m.ID, m.Name, solidifiedTag(m.IsSolidified))
		}
	case "receipts":
		receipts, err := store.Receipts()
		if err != nil {
			return err
		}
		for _, r := range receipts {
			fmt.Printf("%s  %s  %.2f (%d items)\n", r.ID, r.Date, r.Total, len(r.Items))
		}
	default:
		return fmt.Errorf("unknown collection %q", what)
	}
	return nil
}

func solidifiedTag(solidified bool) string {
	if solidified {
		return ""
	}
	return color.YellowString(" (limbo)")
}

func newEngine(store *localstore.Store, logger *slog.Logger) *syncclient.Engine {
	transport := syncclient.NewHTTPTransport(
		envOr("POCKET_KEEPER_SERVER", "http://localhost:3000"),
		os.Getenv("POCKET_KEEPER_TOKEN"),
	)
	return syncclient.NewEngine(store, transport, logger)
}

func runSync(store *localstore.Store, logger *slog.Logger, bootstrap bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	engine := newEngine(store, logger)
	var (
		report syncclient.Report
		err    error
	)
	if bootstrap {
		report, err = engine.Bootstrap(ctx)
	} else {
		report, err = engine.Sync(ctx)
	}
	if err != nil {
		return err
	}
	color.Green("Sync complete: pushed %d, pulled %d", report.Pushed, report.Pulled)
	for _, failed := range report.Failed {
		color.Yellow("  rejected %s: %s", failed.EntityID, failed.Error)
	}
	return nil
}

func showStatus(store *localstore.Store, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status, err := newEngine(store, logger).Status(ctx)
	if err != nil {
		return err
	}
	for entityType, col := range status.Collections {
		stamp := "never"
		if col.LastUpdatedAt != nil {
			stamp = col.LastUpdatedAt.Format(time.RFC3339)
		}
		fmt.Printf("%-12s %6d  last change %s\n", entityType, col.Count, stamp)
	}
	return nil
}

func exportBackup(store *localstore.Store, path string) error {
	b, err := backup.Export(store)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return err
	}
	color.Green("Exported backup to %s", path)
	return nil
}

func importBackup(store *localstore.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var b dto.Backup
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}
	if err := backup.Import(store, b); err != nil {
		return err
	}
	color.Green("Imported backup from %s", path)
	return nil
}
