package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/allocator"
	"github.com/sells-group/geobrowser/internal/browser"
)

var (
	allocateArgs      queryFlags
	allocateBudget    int64
	allocateFormat    string
	allocateOut       string
	allocateFromStore bool
)

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Split a budget across the districts a filter selects and export the plan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := loadDatasets(ctx, allocateFromStore)
		if err != nil {
			return err
		}
		if data.Electoral == nil {
			return eris.New("allocate: electoral dataset unavailable")
		}

		budget := allocateBudget
		if !cmd.Flags().Changed("budget") {
			budget = cfg.Allocator.DefaultBudget
		}
		plan, err := buildPlan(data, allocateArgs, budget)
		if err != nil {
			return err
		}

		out, err := createOutput(allocateOut)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		switch allocateFormat {
		case "csv":
			err = allocator.WriteCSV(out, plan)
		case "xlsx":
			err = allocator.WriteXLSX(out, plan)
		default:
			return eris.Errorf("unknown format %q (want csv or xlsx)", allocateFormat)
		}
		if err != nil {
			return err
		}
		zap.L().Info("allocation exported",
			zap.Int("rows", len(plan.Rows)),
			zap.Int64("budget", plan.Budget),
			zap.String("format", allocateFormat),
		)
		return nil
	},
}

func buildPlan(data browser.Datasets, q queryFlags, budget int64) (*allocator.Plan, error) {
	s, err := runQuery(data, q)
	if err != nil {
		return nil, err
	}
	return s.Allocate(budget)
}

func init() {
	allocateArgs.register(allocateCmd)
	allocateCmd.Flags().Int64Var(&allocateBudget, "budget", allocator.DefaultBudget, "total budget (default from config)")
	allocateCmd.Flags().StringVar(&allocateFormat, "format", "csv", "export format: csv or xlsx")
	allocateCmd.Flags().StringVarP(&allocateOut, "out", "o", "", "output file (default stdout)")
	allocateCmd.Flags().BoolVar(&allocateFromStore, "from-store", false, "allocate over the latest stored electoral import")
	rootCmd.AddCommand(allocateCmd)
}
