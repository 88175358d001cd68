package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/grofunds/grofunds/internal/config"
	"github.com/grofunds/grofunds/internal/enrich"
	"github.com/grofunds/grofunds/internal/gateway"
	"github.com/grofunds/grofunds/internal/model"
	"github.com/grofunds/grofunds/internal/session"
	"github.com/grofunds/grofunds/internal/storage"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

type submitOptions struct {
	kind string
	save bool
	wait time.Duration

	amount      string
	currency    string
	category    string
	date        string
	note        string
	merchant    string
	subcategory string
	source      string
	title       string
	dueDate     string
	startAmount string
}

func submitCmd() *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit [note]",
		Short: "Create a draft from a free-text note and watch its enrichment",
		Long: `Creates a pending draft from the note, runs the local enricher against it,
waits for the parsed fields, applies any explicit overrides, and optionally
saves the finalized entry.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", "expense", "entry kind (expense, income, goal)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save the entry after enrichment")
	cmd.Flags().DurationVar(&opts.wait, "wait", 10*time.Second, "how long to wait for enrichment")
	cmd.Flags().StringVar(&opts.amount, "amount", "", "override the parsed amount")
	cmd.Flags().StringVar(&opts.currency, "currency", "", "override the parsed currency")
	cmd.Flags().StringVar(&opts.category, "category", "", "override the parsed category or type")
	cmd.Flags().StringVar(&opts.date, "date", "", "override the parsed date (yyyy-MM-dd)")
	cmd.Flags().StringVar(&opts.note, "note", "", "attach a note to the saved entry")
	cmd.Flags().StringVar(&opts.merchant, "merchant", "", "override the parsed merchant (expense)")
	cmd.Flags().StringVar(&opts.subcategory, "subcategory", "", "override the parsed subcategory (expense)")
	cmd.Flags().StringVar(&opts.source, "source", "", "override the parsed income source (income)")
	cmd.Flags().StringVar(&opts.title, "title", "", "goal title (goal)")
	cmd.Flags().StringVar(&opts.dueDate, "due", "", "goal due date (goal, yyyy-MM-dd)")
	cmd.Flags().StringVar(&opts.startAmount, "start-amount", "", "goal starting progress (goal)")

	return cmd
}

func runSubmit(ctx context.Context, note string, opts submitOptions) error {
	kind, err := model.ParseKind(opts.kind)
	if err != nil {
		return err
	}

	settings := config.LoadSettings()

	store, err := storage.NewSQLiteStore(settings.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close document store", "error", err)
		}
	}()

	gw := gateway.NewWithConfig(store, gateway.Config{
		InputField:   settings.InputField,
		WriteTimeout: settings.WriteTimeout,
		ReadTimeout:  settings.ReadTimeout,
	})

	ctrl := session.New(gw, session.Config{
		UID:             settings.UID,
		DefaultCurrency: settings.DefaultCurrency,
		Locale:          settings.Locale,
		TimeZone:        settings.TimeZone,
	})

	if err := ctrl.Submit(ctx, kind, note); err != nil {
		return err
	}

	path := ctrl.Snapshot().Form.DocPath
	slog.Info("Draft created", "path", path)

	// Stand-in for the hosted enrichment service.
	enricher := enrich.New(store, settings.InputField, settings.DefaultCurrency)
	go func() {
		if err := enricher.Enrich(context.Background(), path); err != nil {
			slog.Warn("Local enrichment failed", "error", err)
		}
	}()

	if err := waitForParse(ctx, ctrl, opts.wait); err != nil {
		ctrl.Reset(context.Background(), kind)
		return err
	}

	applyOverrides(ctrl, opts)
	printSnapshot(ctrl.Snapshot())

	if !opts.save {
		// Nothing finalized; discard the draft.
		ctrl.Reset(ctx, kind)
		fmt.Println(labelStyle.Render("Discarded") + valueStyle.Render("run again with --save to keep the entry"))
		return nil
	}

	if err := ctrl.Save(ctx); err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}

	fmt.Println(headerStyle.Render("Saved ") + valueStyle.Render(path))
	return nil
}

func waitForParse(ctx context.Context, ctrl *session.Controller, wait time.Duration) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Waiting for enrichment..."),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for enrichment after %s", wait)
		case <-time.After(100 * time.Millisecond):
			_ = bar.Add(1)
			snap := ctrl.Snapshot()
			if snap.Form.ParseError != "" {
				return fmt.Errorf("enrichment failed: %s", snap.Form.ParseError)
			}
			if snap.Form.IsParsed {
				return nil
			}
		}
	}
}

func applyOverrides(ctrl *session.Controller, opts submitOptions) {
	if opts.amount != "" {
		ctrl.SetAmount(opts.amount)
	}
	if opts.currency != "" {
		ctrl.SetCurrency(opts.currency)
	}
	if opts.category != "" {
		ctrl.SetCategoryOrType(opts.category)
	}
	if opts.date != "" {
		ctrl.SetDate(opts.date)
	}
	if opts.note != "" {
		ctrl.SetNote(opts.note)
	}
	if opts.merchant != "" {
		ctrl.SetMerchant(opts.merchant)
	}
	if opts.subcategory != "" {
		ctrl.SetSubcategory(opts.subcategory)
	}
	if opts.source != "" {
		ctrl.SetIncomeSource(opts.source)
	}
	if opts.title != "" {
		ctrl.SetGoalTitle(opts.title)
	}
	if opts.dueDate != "" {
		ctrl.SetGoalDueDate(opts.dueDate)
	}
	if opts.startAmount != "" {
		ctrl.SetGoalStartAmount(opts.startAmount)
	}
}

func printSnapshot(snap session.Snapshot) {
	form := snap.Form

	fmt.Println(headerStyle.Render(fmt.Sprintf("Parsed %s", form.Kind)))

	row := func(label, value string) {
		if value != "" {
			fmt.Println(labelStyle.Render(label) + valueStyle.Render(value))
		}
	}

	row("Amount", form.Amount)
	row("Currency", form.Currency)
	row("Category", form.CategoryOrType)
	row("Date", form.Date)
	row("Note", form.Note)

	switch form.Kind {
	case model.KindExpense:
		row("Subcategory", form.Subcategory)
		row("Merchant", form.Merchant)
	case model.KindIncome:
		row("Source", form.IncomeSource)
	case model.KindGoal:
		row("Title", form.GoalTitle)
		row("Due date", form.GoalDueDate)
		row("Start amount", form.GoalStartAmount)
	}

	if form.ParseError != "" {
		fmt.Println(errorStyle.Render("Error ") + valueStyle.Render(form.ParseError))
	}
}
