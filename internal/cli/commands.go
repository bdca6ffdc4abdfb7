// Package cli provides the Cobra-based operator CLI for the price list.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/example/pricelist/internal/domain/catalog"
	"github.com/example/pricelist/internal/domain/draft"
	"github.com/example/pricelist/internal/domain/order"
	"github.com/example/pricelist/internal/engine"
	"github.com/example/pricelist/internal/export"
	"github.com/example/pricelist/internal/infrastructure/store"
	"github.com/example/pricelist/internal/query"
	"github.com/example/pricelist/internal/summary"
)

// Opener builds the engine for one invocation. The returned close function
// releases the state store.
type Opener func(ctx context.Context, v *viper.Viper, onError func(error)) (*engine.Engine, func() error, error)

// DefaultOpener opens the configured state store and loads the engine with
// the draft persisted, so separate invocations share it.
func DefaultOpener(ctx context.Context, v *viper.Viper, onError func(error)) (*engine.Engine, func() error, error) {
	s, closeStore, err := store.Open(ctx, store.Options{
		Kind:        v.GetString("store"),
		FileDir:     v.GetString("store-dir"),
		RedisAddr:   v.GetString("redis-addr"),
		RedisPrefix: v.GetString("redis-prefix"),
		DatabaseURL: v.GetString("database-url"),
		MySQLDSN:    v.GetString("mysql-dsn"),
		DynamoTable: v.GetString("dynamo-table"),
	})
	if err != nil {
		return nil, nil, err
	}

	locale, err := language.Parse(v.GetString("locale"))
	if err != nil {
		_ = closeStore()
		return nil, nil, fmt.Errorf("locale: %w", err)
	}

	eng, err := engine.New(ctx, store.NewRepository(s), engine.Options{
		Locale:         locale,
		PersistDraft:   true,
		Summarizer:     summary.NewClient(v.GetString("summary-endpoint"), v.GetString("summary-model"), v.GetString("summary-api-key"), v.GetDuration("summary-timeout")),
		OnPersistError: onError,
	})
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}
	return eng, closeStore, nil
}

type app struct {
	v          *viper.Viper
	open       Opener
	engine     *engine.Engine
	close      func() error
	persistErr []error
	now        func() time.Time
}

// NewRootCmd assembles the command tree. Every invocation acts as the local
// operator and holds the catalog edit capability.
func NewRootCmd(open Opener) *cobra.Command {
	a := &app{v: viper.New(), open: open, now: time.Now}

	rootCmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Operate the wholesale price list, draft order and order ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg := a.v.GetString("config"); cfg != "" {
				a.v.SetConfigFile(cfg)
				if err := a.v.ReadInConfig(); err != nil {
					return err
				}
			}

			lvl := slog.LevelInfo
			switch strings.ToLower(a.v.GetString("log-level")) {
			case "debug":
				lvl = slog.LevelDebug
			case "warn", "warning":
				lvl = slog.LevelWarn
			case "error":
				lvl = slog.LevelError
			}
			slog.SetDefault(slog.New(
				slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}),
			))

			eng, closeFn, err := a.open(cmd.Context(), a.v, func(err error) {
				slog.Error("persist failed", "error", err)
				a.persistErr = append(a.persistErr, err)
			})
			if err != nil {
				return err
			}
			a.engine, a.close = eng, closeFn
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if a.close != nil {
				err = a.close()
			}
			return errors.Join(append(a.persistErr, err)...)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("store", "file", "store backend: memory|file|redis|postgres|pgx|mysql|dynamo")
	flags.String("store-dir", "data", "file store directory")
	flags.String("redis-addr", "127.0.0.1:6379", "redis address")
	flags.String("redis-prefix", "pricelist", "redis key prefix")
	flags.String("database-url", "", "postgres connection string")
	flags.String("mysql-dsn", "", "mysql data source name")
	flags.String("dynamo-table", "pricelist_state", "dynamodb table")
	flags.String("locale", "ru", "collation locale for sorting")
	flags.String("summary-endpoint", summary.DefaultEndpoint, "summary service endpoint")
	flags.String("summary-model", summary.DefaultModel, "summary model")
	flags.String("summary-api-key", "", "summary service api key")
	flags.Duration("summary-timeout", 30*time.Second, "summary request timeout")
	flags.String("config", "", "config file")
	flags.String("log-level", "info", "log level")
	_ = a.v.BindPFlags(flags)
	a.v.SetEnvPrefix("PRICELIST")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	rootCmd.AddCommand(
		a.listCmd(),
		a.categoriesCmd(),
		a.lowStockCmd(),
		a.setQtyCmd(),
		a.draftCmd(),
		a.clearDraftCmd(),
		a.summaryCmd(),
		a.placeOrderCmd(),
		a.ordersCmd(),
		a.markProcessedCmd(),
		a.setPaymentCmd(),
		a.deleteOrderCmd(),
		a.editCmd(),
		a.deleteProductCmd(),
		a.exportCSVCmd(),
	)
	return rootCmd
}

// Execute runs the CLI against the configured state store.
func Execute() error {
	return NewRootCmd(DefaultOpener).ExecuteContext(context.Background())
}

// ============================================
// Catalog view
// ============================================

type viewFlags struct {
	term, category, sort, dir string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.term, "q", "", "search term")
	cmd.Flags().StringVar(&f.category, "category", "", "category filter")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort key: model|category|price|stockQuantity")
	cmd.Flags().StringVar(&f.dir, "dir", "asc", "sort direction: asc|desc")
}

func (f *viewFlags) params() (query.Params, error) {
	key, err := query.ParseSortKey(f.sort)
	if err != nil {
		return query.Params{}, err
	}
	dir, err := query.ParseDirection(f.dir)
	if err != nil {
		return query.Params{}, err
	}
	return query.Params{Category: f.category, Term: f.term, Sort: query.SortConfig{Key: key, Direction: dir}}, nil
}

func (a *app) listCmd() *cobra.Command {
	var view viewFlags
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := view.params()
			if err != nil {
				return err
			}
			products := a.engine.SearchAndSort(params)
			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), products)
			}
			for _, p := range products {
				printProduct(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	view.register(cmd)
	cmd.Flags().StringVar(&output, "output", "", "output format")
	return cmd
}

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range a.engine.Categories() {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func (a *app) lowStockCmd() *cobra.Command {
	var threshold int
	cmd := &cobra.Command{
		Use:   "low-stock",
		Short: "List in-stock products at or below the threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range a.engine.LowStock(threshold) {
				printProduct(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&threshold, "threshold", catalog.DefaultLowStockThreshold, "stock threshold")
	return cmd
}

// ============================================
// Draft
// ============================================

func (a *app) setQtyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-qty <model> <quantity>",
		Short: "Set the requested quantity of a model in the draft order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be an integer: %q", args[1])
			}
			d, err := a.engine.SetDraftQuantity(cmd.Context(), engine.SetDraftQuantity{Model: args[0], Quantity: qty})
			if err != nil {
				return err
			}
			printDraft(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func (a *app) draftCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Show the draft order clamped to live stock",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := a.engine.Draft()
			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			printDraft(cmd.OutOrStdout(), d)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "output format")
	return cmd
}

func (a *app) clearDraftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-draft",
		Short: "Discard the draft order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.engine.ClearDraft(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "draft cleared")
			return nil
		},
	}
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Ask the summary service to describe the draft order",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.engine.SummarizeDraft(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Text)
			if s.Stale {
				slog.Warn("draft changed while summarizing")
			}
			return nil
		},
	}
}

// ============================================
// Orders
// ============================================

func (a *app) placeOrderCmd() *cobra.Command {
	var info order.CustomerInfo
	cmd := &cobra.Command{
		Use:   "place-order",
		Short: "Commit the draft as an order and decrement stock",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			o, err := a.engine.PlaceOrder(cmd.Context(), engine.PlaceOrder{CustomerInfo: info})
			if err != nil {
				slog.Error("place order failed", "error", err)
				return err
			}
			slog.Info("order placed", "order_id", o.ID, "duration_ms", time.Since(start).Milliseconds())
			return writeJSON(cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&info.ShopName, "shop", "", "shop name")
	cmd.Flags().StringVar(&info.CustomerName, "customer", "", "customer name")
	cmd.Flags().StringVar(&info.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&info.Address, "address", "", "address")
	return cmd
}

func (a *app) ordersCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := a.engine.Orders(engine.Admin)
			if err != nil {
				return err
			}
			if output == "json" {
				return writeJSON(cmd.OutOrStdout(), orders)
			}
			for _, o := range orders {
				fmt.Fprintf(cmd.OutOrStdout(), "%s | %s | %s | %d | %s | %s | %s\n",
					o.ID, o.Date.Format("02.01.2006 15:04"), o.CustomerInfo.ShopName,
					o.TotalItems(), o.GrandTotal.StringFixed(2), o.Status, o.PaymentStatus)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "output format")
	return cmd
}

func (a *app) markProcessedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-processed <order-id>",
		Short: "Mark an order as processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.engine.MarkProcessed(cmd.Context(), engine.Admin, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", o.ID, o.Status)
			return nil
		},
	}
}

func (a *app) setPaymentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-payment <order-id> <paid|unpaid>",
		Short: "Set the payment status of an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := a.engine.SetPaymentStatus(cmd.Context(), engine.Admin, engine.SetPayment{OrderID: args[0], Status: args[1]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", o.ID, o.PaymentStatus)
			return nil
		},
	}
}

func (a *app) deleteOrderCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete-order <order-id>",
		Short: "Delete an order and restore its stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm(cmd, fmt.Sprintf("Delete order %s and restore stock?", args[0])) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
			if err := a.engine.DeleteOrder(cmd.Context(), engine.Admin, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation")
	return cmd
}

// ============================================
// Catalog edits
// ============================================

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <product-id> <price|stockQuantity> <value>",
		Short: "Edit a product's price or stock inline",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.engine.InlineEdit(cmd.Context(), engine.Admin, engine.InlineEdit{ProductID: args[0], Field: args[1], Value: args[2]})
			if err != nil {
				return err
			}
			printProduct(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func (a *app) deleteProductCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete-product <product-id>",
		Short: "Delete a product from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm(cmd, fmt.Sprintf("Delete product %s?", args[0])) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
			if err := a.engine.DeleteProduct(cmd.Context(), engine.Admin, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation")
	return cmd
}

// ============================================
// Export
// ============================================

func (a *app) exportCSVCmd() *cobra.Command {
	var view viewFlags
	var file, orderID string
	cmd := &cobra.Command{
		Use:   "export-csv",
		Short: "Export the price list view, or one order with --order",
		RunE: func(cmd *cobra.Command, args []string) error {
			write := func(w io.Writer) error {
				params, err := view.params()
				if err != nil {
					return err
				}
				return export.WritePriceListCSV(w, a.engine.SearchAndSort(params))
			}
			name := export.PriceListFilename(a.now())
			if orderID != "" {
				o, err := a.engine.Order(engine.Admin, orderID)
				if err != nil {
					return err
				}
				write = func(w io.Writer) error { return export.WriteOrderCSV(w, o) }
				name = export.OrderFilename(o)
			}
			if file == "" {
				file = name
			}
			if file == "-" {
				return write(cmd.OutOrStdout())
			}

			f, err := os.Create(file)
			if err != nil {
				return err
			}
			if err := write(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			slog.Info("exported", "file", file)
			return nil
		},
	}
	view.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "output file, - for stdout")
	cmd.Flags().StringVar(&orderID, "order", "", "export this order instead of the price list")
	return cmd
}

// Helper functions

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printProduct(w io.Writer, p catalog.Product) {
	fmt.Fprintf(w, "%s | %s | %s | %d | %s\n", p.ID, p.Category, p.Price.StringFixed(2), p.StockQuantity, strings.Join(p.Parameters, "; "))
}

func printDraft(w io.Writer, d draft.Derivation) {
	for _, it := range d.Items {
		line := fmt.Sprintf("%s | %d x %s = %s", it.Product.Model, it.Quantity, it.Product.Price.StringFixed(2), it.LineTotal.StringFixed(2))
		if it.Clamped() {
			line += fmt.Sprintf(" (requested %d)", it.Requested)
		}
		fmt.Fprintln(w, line)
	}
	for _, it := range d.Unavailable {
		fmt.Fprintf(w, "%s | out of stock\n", it.Product.Model)
	}
	for _, m := range d.Missing {
		fmt.Fprintf(w, "%s | not in catalog\n", m)
	}
	fmt.Fprintf(w, "total: %d items, %s\n", d.TotalItems, d.GrandTotal.StringFixed(2))
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (y/N): ", prompt)
	resp, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && resp == "" {
		return false
	}
	resp = strings.TrimSpace(resp)
	return resp == "y" || resp == "Y"
}
