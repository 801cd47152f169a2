package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/finfacts-cli/internal/store"
)

var reconcileCompany string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-run best-fact resolution, metrics, and questions for a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if reconcileCompany == "" {
			return eris.New("--company is required")
		}

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer func(st store.Store) { _ = st.Close() }(st)

		return svc.ResolveCompany(ctx, reconcileCompany)
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileCompany, "company", "", "company to reconcile")
	rootCmd.AddCommand(reconcileCmd)
}
