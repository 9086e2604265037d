// Command qbo-sync runs one sync for a connected realm and prints the result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Checker-Finance/qbo-connector/internal/bootstrap"
	"github.com/Checker-Finance/qbo-connector/internal/quickbooks"
	"github.com/Checker-Finance/qbo-connector/internal/store"
	"github.com/Checker-Finance/qbo-connector/internal/syncer"
	"github.com/Checker-Finance/qbo-connector/pkg/config"
	"github.com/Checker-Finance/qbo-connector/pkg/logger"
	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

func main() {
	realm := flag.String("realm", "", "QuickBooks company (realm) id")
	categories := flag.String("categories", "accounts,customers,invoices,bills,payments", "comma separated categories; add reports for financial reports")
	start := flag.String("start", "", "window start date (YYYY-MM-DD)")
	end := flag.String("end", "", "window end date (YYYY-MM-DD)")
	flag.Parse()

	os.Exit(run(*realm, *categories, *start, *end))
}

func run(realm, categories, start, end string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger.Init(cfg.ServiceName+"-sync", cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()

	if realm == "" {
		fmt.Fprintln(os.Stderr, "qbo-sync: -realm is required")
		return 2
	}
	syncCfg, err := parseSyncConfig(categories, start, end)
	if err != nil {
		fmt.Fprintln(os.Stderr, "qbo-sync:", err)
		return 2
	}

	qc, err := bootstrap.OAuthConfig(ctx, cfg, nil, nil, logg.Desugar())
	if err != nil {
		logg.Errorw("failed to load QuickBooks OAuth config", "error", err)
		return 1
	}
	st, err := bootstrap.OpenStore(ctx, cfg, logg.Desugar())
	if err != nil {
		logg.Errorw("failed to init store", "error", err)
		return 1
	}
	defer st.Close()

	events, err := bootstrap.Notifier(cfg, logg.Desugar())
	if err != nil {
		logg.Errorw("failed to init event publisher", "backend", cfg.EventsBackend, "error", err)
		return 1
	}
	defer events.Close()

	bundle, err := st.LoadCredentials(ctx, realm)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "qbo-sync: realm %s is not connected\n", realm)
		return 1
	}
	if err != nil {
		logg.Errorw("failed to load credentials", "realm_id", realm, "error", err)
		return 1
	}

	rateMgr := bootstrap.RateManager(cfg)
	oauth := quickbooks.NewOAuthClient(qc, logg.Desugar(), quickbooks.WithOAuthRateManager(rateMgr))
	session := bootstrap.SessionFactory(logg.Desugar(), qc, oauth, rateMgr, st)(*bundle)

	res := syncer.New(logg.Desugar(), st, events).Run(ctx, session, syncCfg)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logg.Errorw("failed to encode result", "error", err)
		return 1
	}
	if !res.Success {
		return 1
	}
	return 0
}

// parseSyncConfig turns the -categories list into a SyncConfig.
func parseSyncConfig(categories, start, end string) (model.SyncConfig, error) {
	cfg := model.SyncConfig{StartDate: start, EndDate: end}
	for _, c := range strings.Split(categories, ",") {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "":
		case model.CategoryAccounts:
			cfg.SyncAccounts = true
		case model.CategoryCustomers:
			cfg.SyncCustomers = true
		case model.CategoryInvoices:
			cfg.SyncInvoices = true
		case model.CategoryBills:
			cfg.SyncBills = true
		case model.CategoryPayments:
			cfg.SyncPayments = true
		case model.CategoryReports:
			cfg.SyncReports = true
		default:
			return cfg, fmt.Errorf("unknown category %q", c)
		}
	}
	if err := quickbooks.ValidateRange(start, end); err != nil {
		return cfg, err
	}
	return cfg, nil
}
