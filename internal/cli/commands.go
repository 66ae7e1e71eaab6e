package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/services"
	"expenses/internal/validator"
)

type addInput struct {
	Amount      string `validate:"required,amount"`
	Description string `validate:"required,notblank,max=500"`
	Category    string `validate:"max=100"`
}

func newAddCommand(o *rootOptions) *cobra.Command {
	var category, at string

	cmd := &cobra.Command{
		Use:   "add AMOUNT DESCRIPTION",
		Short: "Record an expense",
		Long: `Record an expense. Without --category the category is chosen from the
keyword rules. An expense with the same amount and description within an hour
of an existing one is rejected.`,
		Example: `  expenses add 4,50 "Coffee with Anna"
  expenses add 120 "Train ticket" --category transport --at "2025-03-01 08:15"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := addInput{Amount: args[0], Description: args[1], Category: category}
			if err := validator.Struct(in); err != nil {
				return err
			}

			amount, _ := core.ParseAmount(in.Amount)
			when, err := o.parseWhen(at)
			if err != nil {
				return err
			}

			app, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			e := core.NewExpense(amount, strings.TrimSpace(in.Description), strings.TrimSpace(in.Category), when)
			if err := app.Service.Add(cmd.Context(), &e); err != nil {
				if errors.Is(err, core.ErrDuplicate) {
					return fmt.Errorf("%w; change the amount, description or time to record it anyway", err)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added expense #%d: %s\n", e.ID, describe(e))
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category, chosen from keyword rules when empty")
	cmd.Flags().StringVar(&at, "at", "", `date and time, "2006-01-02 15:04" or "2006-01-02" (default now)`)
	return cmd
}

type updateInput struct {
	ID          string `validate:"required,number"`
	Amount      string `validate:"omitempty,amount"`
	Description string `validate:"max=500"`
	Category    string `validate:"max=100"`
}

func newUpdateCommand(o *rootOptions) *cobra.Command {
	var amount, description, category, at string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of a recorded expense",
		Long: `Change fields of a recorded expense. Only the flags given are changed.
No duplicate check is made on update.`,
		Example: `  expenses update 7 --amount 5.20 --category food`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := updateInput{ID: args[0], Amount: amount, Description: description, Category: category}
			if err := validator.Struct(in); err != nil {
				return err
			}
			id, err := parseID(in.ID)
			if err != nil {
				return err
			}

			app, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			all, err := app.Service.GetAll(cmd.Context())
			if err != nil {
				return err
			}
			i := slices.IndexFunc(all, func(e core.Expense) bool { return e.ID == id })
			if i < 0 {
				return fmt.Errorf("update expense %d: %w", id, core.ErrNotFound)
			}
			e := all[i]

			flags := cmd.Flags()
			if flags.Changed("amount") {
				e.Amount, _ = core.ParseAmount(amount)
			}
			if flags.Changed("description") {
				e.Description = strings.TrimSpace(description)
			}
			if flags.Changed("category") {
				e.Category = strings.TrimSpace(category)
			}
			if flags.Changed("at") {
				if e.Timestamp, err = o.parseWhen(at); err != nil {
					return err
				}
			}
			if err := e.Validate(); err != nil {
				return err
			}

			if err := app.Service.Update(cmd.Context(), e); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated expense #%d: %s\n", e.ID, describe(e))
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "new amount")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "new category")
	cmd.Flags().StringVar(&at, "at", "", `new date and time, "2006-01-02 15:04" or "2006-01-02"`)
	return cmd
}

func newDeleteCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete an expense",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			app, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Service.Delete(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense #%d\n", id)
			return nil
		},
	}
}

type listInput struct {
	Filter string `validate:"max=200"`
	Sort   string `validate:"omitempty,oneof=date_desc date_asc amount_asc amount_desc"`
}

func newListCommand(o *rootOptions) *cobra.Command {
	var in listInput

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List expenses",
		Example: `  expenses list --filter food --sort amount_desc`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validator.Struct(in); err != nil {
				return err
			}
			order, err := services.ParseSortOrder(in.Sort)
			if err != nil {
				return err
			}

			app, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			expenses, err := app.Service.List(cmd.Context(), services.ListOptions{Filter: in.Filter, Sort: order})
			if err != nil {
				return err
			}

			return writeTable(cmd.OutOrStdout(), expenses, o.location())
		},
	}

	cmd.Flags().StringVarP(&in.Filter, "filter", "f", "", "keep expenses whose description, category or amount contains this text")
	cmd.Flags().StringVarP(&in.Sort, "sort", "s", string(services.SortDateDesc), "date_desc, date_asc, amount_asc or amount_desc")
	return cmd
}

func newForecastCommand(o *rootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Average of the last three months and next month's prediction",
		Long: `Average the expenses of the three months up to the reference date and
predict next month's spending. December and January are raised by 30%,
July and August by 20%.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := o.parseWhen(date)
			if err != nil {
				return err
			}

			app, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := app.Forecast.Summary(cmd.Context(), ref)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Window:\t%s to %s\t(%d expenses)\n", s.WindowStart.Format(DateLayout), s.Reference.Format(DateLayout), s.Count)
			fmt.Fprintf(w, "Monthly average:\t%s\n", core.FormatAmount(s.Average))
			fmt.Fprintf(w, "Seasonal factor:\t%s\t(%s)\n", s.Factor.StringFixed(2), s.NextMonth)
			fmt.Fprintf(w, "Predicted:\t%s\n", core.FormatAmount(s.Prediction))
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&date, "date", "", `reference date "2006-01-02" (default today)`)
	return cmd
}

func newCategoriesCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories an expense can get",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			matcher, err := loadMatcher(o.cfg, o.logger)
			if err != nil {
				return err
			}
			for _, name := range matcher.AvailableCategories() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newEventsCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print expense events from the broker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !o.cfg.EventsEnabled() {
				return errors.New("events are disabled: set AMQP_URL")
			}

			ctx, stop := ShutdownContext(cmd.Context())
			defer stop()

			client, err := amqp.NewClient(ctx, o.cfg.AMQPURL, o.cfg.AMQPExchange, o.cfg.AMQPRoutingKey)
			if err != nil {
				return err
			}
			defer client.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = client.ConsumeExpenseEvents(ctx, func(ev *amqp.ExpenseEvent) error {
				return enc.Encode(ev)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", s)
	}
	return id, nil
}

func describe(e core.Expense) string {
	return fmt.Sprintf("%s %s [%s] (%s)", core.FormatAmount(e.Amount), e.Description, e.Category, e.Status().DisplayName())
}

func writeTable(out io.Writer, expenses []core.Expense, loc *time.Location) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tDESCRIPTION\tCATEGORY\tSTATUS")
	for _, e := range expenses {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.Timestamp.In(loc).Format(DateTimeLayout),
			core.FormatAmount(e.Amount),
			e.Description,
			e.Category,
			e.Status().DisplayName())
	}
	return w.Flush()
}
