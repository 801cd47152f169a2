package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/finfacts-cli/internal/store"
)

var (
	factsCompany  string
	factsDocument string
	factsLimit    int
)

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Query pipeline outputs",
}

var factsBestCmd = &cobra.Command{
	Use:   "best",
	Short: "Show the winning fact per (period, line item, value type, scope)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if factsCompany == "" {
			return eris.New("--company is required")
		}
		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		best, err := svc.BestFacts(ctx, factsCompany)
		if err != nil {
			return err
		}
		return printJSON(best)
	},
}

var factsRejectionsCmd = &cobra.Command{
	Use:   "rejections",
	Short: "Show quarantined rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rejections, err := st.ListRejections(ctx, factsDocument, factsLimit)
		if err != nil {
			return err
		}
		return printJSON(rejections)
	},
}

var factsRawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Show raw extracted rows for a document, before normalization",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if factsDocument == "" {
			return eris.New("--document is required")
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		raw, err := st.ListRawFacts(ctx, factsDocument)
		if err != nil {
			return err
		}
		return printJSON(raw)
	},
}

var factsMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show derived growth and variance metrics",
	RunE:  listByCompany(func(ctx cmdCtx) (any, error) { return ctx.st.ListMetrics(ctx.ctx, ctx.companyID) }),
}

var factsQuestionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Show triggered analyst questions, highest priority first",
	RunE:  listByCompany(func(ctx cmdCtx) (any, error) { return ctx.st.ListQuestions(ctx.ctx, ctx.companyID) }),
}

var factsFindingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Show reconciliation findings (scale outliers, YTD mismatches)",
	RunE:  listByCompany(func(ctx cmdCtx) (any, error) { return ctx.st.ListFindings(ctx.ctx, ctx.companyID) }),
}

// cmdCtx bundles what the company-scoped list commands need.
type cmdCtx struct {
	ctx       context.Context
	st        store.Store
	companyID int64
}

// listByCompany wraps the shared resolve-company-then-list shape of the read
// subcommands.
func listByCompany(list func(cmdCtx) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if factsCompany == "" {
			return eris.New("--company is required")
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		company, err := st.GetCompanyByName(ctx, factsCompany)
		if err != nil {
			return err
		}
		out, err := list(cmdCtx{ctx: ctx, st: st, companyID: company.ID})
		if err != nil {
			return err
		}
		return printJSON(out)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	factsCmd.PersistentFlags().StringVar(&factsCompany, "company", "", "company name")
	factsRejectionsCmd.Flags().StringVar(&factsDocument, "document", "", "filter by document id")
	factsRejectionsCmd.Flags().IntVar(&factsLimit, "limit", 100, "maximum rows")
	factsRawCmd.Flags().StringVar(&factsDocument, "document", "", "document id")
	factsCmd.AddCommand(factsBestCmd, factsRejectionsCmd, factsRawCmd, factsMetricsCmd, factsQuestionsCmd, factsFindingsCmd)
	rootCmd.AddCommand(factsCmd)
}
