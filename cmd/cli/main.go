package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	postgresRepo "github.com/corebank/ledger/internal/adapter/repository/postgres"
	redisRepo "github.com/corebank/ledger/internal/adapter/repository/redis"
	"github.com/corebank/ledger/internal/domain"
	"github.com/corebank/ledger/internal/infrastructure/compliance"
	"github.com/corebank/ledger/internal/infrastructure/config"
	"github.com/corebank/ledger/internal/infrastructure/postgres"
	"github.com/corebank/ledger/internal/infrastructure/redis"
	"github.com/corebank/ledger/internal/usecase"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "corebank-cli",
		Short: "Core banking ledger admin tool",
		Long:  `Administrative commands for the ledger: accounts, transactions, audit chain verification and reconciliation.`,
	}

	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(txnCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired use cases for one CLI invocation.
type app struct {
	ledger         *usecase.LedgerUseCase
	processor      *usecase.ProcessorUseCase
	audit          *usecase.AuditUseCase
	reconciliation *usecase.ReconciliationUseCase
	close          func()
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    2,
		MinConns:    1,
		ConnTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, err
	}

	closeFns := []func(){pool.Close}

	// The cache is optional, the CLI works against a bare database.
	var cache usecase.Cache
	if redisClient, err := redis.NewClient(ctx, cfg.RedisURL); err == nil {
		cache = redisRepo.NewCache(redisClient)
		closeFns = append(closeFns, func() { _ = redisClient.Close() })
	}

	log := zerolog.Nop()
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	journalRepo := postgresRepo.NewJournalRepository(pool)
	txnRepo := postgresRepo.NewTransactionRepository(pool)
	auditRepo := postgresRepo.NewAuditRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()

	checker := compliance.NewThresholdChecker(
		cfg.ComplianceReviewThreshold,
		cfg.ComplianceBlockThreshold,
		log,
	)

	// The CLI exits after one command and exposes no scrape endpoint, so the
	// use cases run without metrics.
	auditUC := usecase.NewAuditUseCase(txManager, auditRepo, idGen, nil)
	ledgerUC := usecase.NewLedgerUseCase(txManager, journalRepo, accountRepo, outboxRepo, auditUC, cache, idGen, nil)
	processorUC := usecase.NewProcessorUseCase(
		txManager, journalRepo, accountRepo, txnRepo, outboxRepo,
		auditUC, cache, checker, postgresRepo.NewRetrier(log), idGen, nil,
		usecase.SystemAccounts{
			CashClearingID:   cfg.CashClearingAccountID,
			FeeIncomeID:      cfg.FeeIncomeAccountID,
			InterestIncomeID: cfg.InterestIncomeAccountID,
		},
	)
	reconciliationUC := usecase.NewReconciliationUseCase(accountRepo, journalRepo, cache)

	return &app{
		ledger:         ledgerUC,
		processor:      processorUC,
		audit:          auditUC,
		reconciliation: reconciliationUC,
		close: func() {
			for _, fn := range closeFns {
				fn()
			}
		},
	}, nil
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	var name, accountType, currency string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ledger account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			account, err := a.ledger.CreateAccount(cmd.Context(), usecase.CreateAccountInput{
				Name:     name,
				Type:     domain.AccountType(accountType),
				Currency: domain.Currency(currency),
				ActorID:  "cli",
			})
			if err != nil {
				return err
			}

			fmt.Printf("created account %s (%s, %s)\n", account.ID, account.Type, account.Currency)
			return nil
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "account name")
	createCmd.Flags().StringVar(&accountType, "type", "", "account type: asset, liability, equity, revenue, expense")
	createCmd.Flags().StringVar(&currency, "currency", "USD", "ISO currency code")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("type")

	cmd.AddCommand(createCmd)
	return cmd
}

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check that ledger-wide debits equal credits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.reconciliation.CheckLedgerConsistency(cmd.Context()); err != nil {
				return err
			}

			fmt.Println("ledger is consistent")
			return nil
		},
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile [account-id]",
		Short: "Reconcile one account, or all accounts when no ID is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 1 {
				result, err := a.reconciliation.ReconcileAccount(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				printReconciliation(result)
				if !result.IsReconciled {
					os.Exit(1)
				}
				return nil
			}

			report, err := a.reconciliation.GenerateReport(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("accounts: %d reconciled: %d ledger consistent: %v\n",
				report.TotalAccounts, report.ReconciledAccounts, report.LedgerConsistent)
			for _, d := range report.Discrepancies {
				printReconciliation(d)
			}
			if len(report.Discrepancies) > 0 || !report.LedgerConsistent {
				os.Exit(1)
			}
			return nil
		},
	}

	var balanceCurrency string
	balanceCmd := &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Show the derived balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			balance, err := a.ledger.GetBalance(cmd.Context(), args[0], domain.Currency(balanceCurrency), nil)
			if err != nil {
				return err
			}

			fmt.Printf("%s %s\n", balance.Amount.StringFixed(2), balance.Currency)
			return nil
		},
	}
	balanceCmd.Flags().StringVar(&balanceCurrency, "currency", "USD", "ISO currency code")

	cmd.AddCommand(consistencyCmd, reconcileCmd, balanceCmd)
	return cmd
}

func printReconciliation(r *usecase.ReconciliationResult) {
	status := "OK"
	if !r.IsReconciled {
		status = "MISMATCH"
	}

	cached := "-"
	if r.CachedBalance != nil {
		cached = r.CachedBalance.String()
	}

	fmt.Printf("%s %s replayed=%s cached=%s diff=%s %s\n",
		r.AccountID, r.Currency, r.ReplayedBalance.String(), cached, r.Difference.String(), status)
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail operations",
	}

	var fromSeq, toSeq int64
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit hash chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.audit.VerifyIntegrity(cmd.Context(), fromSeq, toSeq)
			if err != nil {
				return err
			}

			if !result.Valid {
				fmt.Printf("chain BROKEN at entry %s (%d entries verified before the break)\n", result.BrokenAt, result.Checked)
				os.Exit(1)
			}

			fmt.Printf("chain valid, %d entries verified\n", result.Checked)
			return nil
		},
	}
	verifyCmd.Flags().Int64Var(&fromSeq, "from", 0, "first sequence to verify (0 = start of chain)")
	verifyCmd.Flags().Int64Var(&toSeq, "to", 0, "last sequence to verify (0 = end of chain)")

	var start, end string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit entries in a time window as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			startTime, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			endTime, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := a.audit.Export(cmd.Context(), startTime, endTime)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(entries)
		},
	}
	exportCmd.Flags().StringVar(&start, "start", "", "window start (RFC3339)")
	exportCmd.Flags().StringVar(&end, "end", "", "window end (RFC3339)")
	_ = exportCmd.MarkFlagRequired("start")
	_ = exportCmd.MarkFlagRequired("end")

	cmd.AddCommand(verifyCmd, exportCmd)
	return cmd
}

func txnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Transaction operations",
	}

	var (
		txnType     string
		from, to    string
		amount      string
		currency    string
		key         string
		description string
	)
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a transaction through the processor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount: %w", err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.processor.Process(cmd.Context(), &usecase.TransactionRequest{
				Type:           domain.TransactionType(txnType),
				FromAccountID:  from,
				ToAccountID:    to,
				Amount:         domain.Money{Amount: value, Currency: domain.Currency(currency)},
				Description:    description,
				IdempotencyKey: key,
				ActorID:        "cli",
			})
			if err != nil {
				return err
			}

			fmt.Printf("%s %s %s %s -> entry %s\n",
				result.TransactionID, result.Type, result.Amount, result.Status, result.JournalEntryID)
			return nil
		},
	}
	submitCmd.Flags().StringVar(&txnType, "type", "", "deposit, withdrawal, transfer, fee or interest")
	submitCmd.Flags().StringVar(&from, "from", "", "source account ID")
	submitCmd.Flags().StringVar(&to, "to", "", "target account ID")
	submitCmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 125.50")
	submitCmd.Flags().StringVar(&currency, "currency", "USD", "ISO currency code")
	submitCmd.Flags().StringVar(&key, "key", "", "idempotency key")
	submitCmd.Flags().StringVar(&description, "description", "", "freeform description")
	_ = submitCmd.MarkFlagRequired("type")
	_ = submitCmd.MarkFlagRequired("amount")
	_ = submitCmd.MarkFlagRequired("key")

	cmd.AddCommand(submitCmd)
	return cmd
}

func scheduleCmd() *cobra.Command {
	var (
		principal    string
		rate         string
		termMonths   int
		frequency    string
		currency     string
		firstPayment string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Amortization schedule preview",
	}

	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the level-payment schedule for the given terms",
		RunE: func(_ *cobra.Command, _ []string) error {
			principalValue, err := decimal.NewFromString(principal)
			if err != nil {
				return fmt.Errorf("invalid --principal: %w", err)
			}
			rateValue, err := decimal.NewFromString(rate)
			if err != nil {
				return fmt.Errorf("invalid --rate: %w", err)
			}
			firstDate, err := time.Parse("2006-01-02", firstPayment)
			if err != nil {
				return fmt.Errorf("invalid --first-payment: %w", err)
			}

			// Schedule construction is pure, no storage needed.
			interest := usecase.NewInterestUseCase(nil, nil, nil, nil, nil, nil, nil)
			lines, err := interest.BuildAmortizationSchedule(usecase.ScheduleTerms{
				Principal:        domain.Money{Amount: principalValue, Currency: domain.Currency(currency)},
				AnnualRate:       rateValue,
				TermMonths:       termMonths,
				FirstPaymentDate: firstDate,
				Frequency:        domain.PaymentFrequency(frequency),
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tdue\tpayment\tprincipal\tinterest\tbalance")
			for _, line := range lines {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					line.PaymentNumber,
					line.DueDate.Format("2006-01-02"),
					line.PaymentAmount.Amount.StringFixed(2),
					line.PrincipalComponent.Amount.StringFixed(2),
					line.InterestComponent.Amount.StringFixed(2),
					line.RemainingBalance.Amount.StringFixed(2),
				)
			}
			return w.Flush()
		},
	}
	previewCmd.Flags().StringVar(&principal, "principal", "", "loan principal, e.g. 25000")
	previewCmd.Flags().StringVar(&rate, "rate", "", "annual rate as a decimal, e.g. 0.0675")
	previewCmd.Flags().IntVar(&termMonths, "term-months", 0, "loan term in months")
	previewCmd.Flags().StringVar(&frequency, "frequency", "monthly", "monthly, quarterly or annually")
	previewCmd.Flags().StringVar(&currency, "currency", "USD", "ISO currency code")
	previewCmd.Flags().StringVar(&firstPayment, "first-payment", "", "first payment date, YYYY-MM-DD")
	_ = previewCmd.MarkFlagRequired("principal")
	_ = previewCmd.MarkFlagRequired("rate")
	_ = previewCmd.MarkFlagRequired("term-months")
	_ = previewCmd.MarkFlagRequired("first-payment")

	cmd.AddCommand(previewCmd)
	return cmd
}
