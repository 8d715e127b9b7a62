package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

type MigrateOptions struct {
	*RootOptions
	Seed bool
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema",
		Long: `Create the products, orders and order_items tables when they do not exist.

With --seed a demo product (10 in stock at 10.00) and an empty order are
inserted, and their ids are printed.

Example:
  order-ledger migrate
  order-ledger migrate --seed --config ./config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "insert a demo product and order")

	return cmd
}

func runMigrate(ctx context.Context, opts *MigrateOptions, cmd *cobra.Command) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	store, closeStore, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", cfg.DBDriver)

	if !opts.Seed {
		return nil
	}

	product, order, err := seedDemo(ctx, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded product %d (stock %d, price %s) and order %d\n",
		product.ID, product.QuantityInStock, product.Price.StringFixed(2), order.ID)
	return nil
}

func seedDemo(ctx context.Context, store ledgerStore) (*domain.Product, *domain.Order, error) {
	product := &domain.Product{
		Name:            "Demo widget",
		Description:     "Seeded by order-ledger migrate",
		Price:           decimal.RequireFromString("10.00"),
		QuantityInStock: 10,
	}
	if err := store.CreateProduct(ctx, product); err != nil {
		return nil, nil, fmt.Errorf("seed product: %w", err)
	}

	order := &domain.Order{
		UserID:        "demo-user",
		CustomerName:  "Demo Customer",
		CustomerEmail: "demo@example.com",
	}
	if err := store.CreateOrder(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("seed order: %w", err)
	}
	return product, order, nil
}
