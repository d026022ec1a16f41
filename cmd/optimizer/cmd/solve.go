package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"PriceOptimizer/internal/model"
	"PriceOptimizer/internal/optimizer"
)

var (
	solveCost   string
	solveDemand string
	solvePNG    string
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7C3AED")).
			Bold(true).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF")).
			Width(20)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9FAFB")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4B5563")).
			Padding(1, 2)
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Compute the optimal price for one cost and demand function",
	Long: `Computes the profit-maximizing price without touching the database.

Example:
  optimizer solve --cost "10+2*q" --demand "100-p" --png profit.png`,
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVar(&solveCost, "cost", "", "cost function C(q) (required)")
	solveCmd.Flags().StringVar(&solveDemand, "demand", "", "demand function q(p) (required)")
	solveCmd.Flags().StringVar(&solvePNG, "png", "", "write the profit chart to this file")
	_ = solveCmd.MarkFlagRequired("cost")
	_ = solveCmd.MarkFlagRequired("demand")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("config", err)
		return err
	}
	svc := optimizer.New(serviceConfig(cfg), nil, nil, nil)

	ctx := context.Background()
	var res model.Result
	var png []byte
	if solvePNG != "" {
		res, png, err = svc.ComputeWithChart(ctx, solveCost, solveDemand)
	} else {
		_, res, err = svc.Compute(ctx, solveCost, solveDemand)
	}
	if err != nil {
		code, _ := optimizer.Code(err)
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(code)+" "+err.Error())
		return err
	}
	if png != nil {
		if err := os.WriteFile(solvePNG, png, 0o644); err != nil {
			printError("write chart", err)
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderResult(res, solvePNG))
	return nil
}

func renderResult(res model.Result, chartPath string) string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
	}
	rows := []string{
		titleStyle.Render("Optimal price"),
		row("Price", decimal.NewFromFloat(res.OptimalPrice).StringFixed(4)),
		row("Max profit", decimal.NewFromFloat(res.MaxProfit).StringFixed(4)),
		row("Profit function", res.ProfitFunction),
		row("Derivative", res.DerivativeFunction),
	}
	if !res.Verified {
		rows = append(rows, warnStyle.Render("no candidate passed the concavity test; best unverified candidate shown"))
	}
	if chartPath != "" {
		rows = append(rows, row("Chart", chartPath))
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}
