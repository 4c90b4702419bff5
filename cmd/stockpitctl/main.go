// stockpitctl runs market administration directly against the ledger
// file, for operators without the bot in front of them.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"stockpit/internal/config"
	"stockpit/internal/ledger"
	"stockpit/internal/market"
	"stockpit/internal/trading"
)

func main() {
	root := &cobra.Command{
		Use:          "stockpitctl",
		Short:        "Administer the stockpit market ledger",
		SilenceUsage: true,
	}

	root.AddCommand(
		newListCmd(),
		newAddStockCmd(),
		newRemoveStockCmd(),
		newSetPriceCmd(),
		newFundCmd(),
		newDefundCmd(),
		newPortfolioCmd(),
		newTickCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openStore() (*ledger.Store, config.CtlConfig, error) {
	cfg := config.LoadCtlFromEnv()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := ledger.Open(cfg.DBPath, logger)
	return store, cfg, err
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List companies and prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			companies, err := store.Companies(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range companies {
				fmt.Printf("%-24s %10.2f\n", c.Name, c.Price)
			}
			return nil
		},
	}
}

func newAddStockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "addstock NAME PRICE",
		Short: "List a new company",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid price %q", args[1])
			}
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if _, err := store.AddCompany(cmd.Context(), args[0], price); err != nil {
				return err
			}
			fmt.Printf("listed %s at %.2f\n", args[0], ledger.ClampPrice(price))
			return nil
		},
	}
}

func newRemoveStockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "removestock NAME",
		Short: "Delist a company and clear holdings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			ok, err := store.RemoveCompany(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("%s was not listed\n", args[0])
				return nil
			}
			fmt.Printf("delisted %s\n", args[0])
			return nil
		},
	}
}

func newSetPriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setprice NAME PRICE",
		Short: "Manually set a company's price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid price %q", args[1])
			}
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			ok, err := store.SetPrice(cmd.Context(), args[0], price)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("company %q not found", args[0])
			}
			fmt.Printf("%s priced at %.2f\n", args[0], ledger.ClampPrice(price))
			return nil
		},
	}
}

func newFundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund USER_ID AMOUNT",
		Short: "Credit a user's trading balance",
		Args:  cobra.ExactArgs(2),
		RunE:  runAdjust(false),
	}
}

func newDefundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defund USER_ID AMOUNT",
		Short: "Debit a user's trading balance",
		Args:  cobra.ExactArgs(2),
		RunE:  runAdjust(true),
	}
}

func runAdjust(debit bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		store, _, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		engine := trading.NewEngine(store, nil)

		var balance float64
		if debit {
			balance, err = engine.Defund(cmd.Context(), args[0], amount)
		} else {
			balance, err = engine.Fund(cmd.Context(), args[0], amount)
		}
		if err != nil {
			return err
		}
		fmt.Printf("balance for %s is now %.2f\n", args[0], balance)
		return nil
	}
}

func newPortfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio USER_ID",
		Short: "Show a user's holdings and net worth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			engine := trading.NewEngine(store, nil)
			worth, err := engine.Worth(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, p := range worth.Positions {
				fmt.Printf("%-24s %6d @ %10.2f = %12.2f\n",
					p.Company, p.Shares, p.Price, ledger.Notional(p.Price, p.Shares))
			}
			fmt.Printf("balance    %12.2f\n", worth.Balance)
			fmt.Printf("positions  %12.2f\n", worth.PortfolioValue)
			fmt.Printf("net worth  %12.2f\n", worth.NetWorth)
			return nil
		},
	}
}

func newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one market tick now",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			sim := market.New(store, nil, time.Minute, cfg.MaxJitter, cfg.Drift)
			if err := sim.Tick(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("tick complete")
			return nil
		},
	}
}
