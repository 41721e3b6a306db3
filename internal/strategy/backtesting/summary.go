package backtesting

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var summaryPrinter = message.NewPrinter(language.English)

// FormatSummary renders a human-readable report of a backtest result.
func FormatSummary(result *BacktestResult) string {
	if result == nil {
		return "No results to display.\n"
	}
	m := result.Metrics
	rule := strings.Repeat("=", 50)

	var sb strings.Builder
	sb.WriteString("\n" + rule + "\n")
	if result.Symbol != "" {
		sb.WriteString(summaryPrinter.Sprintf("BACKTEST RESULTS: %s\n", result.Symbol))
	} else {
		sb.WriteString("BACKTEST RESULTS\n")
	}
	sb.WriteString(rule + "\n")
	sb.WriteString(summaryPrinter.Sprintf("Initial Capital:    $%.2f\n", m.InitialCapital))
	sb.WriteString(summaryPrinter.Sprintf("Final Value:        $%.2f\n", m.FinalValue))
	sb.WriteString(summaryPrinter.Sprintf("Total Return:       $%.2f\n", m.TotalReturn))
	sb.WriteString(summaryPrinter.Sprintf("Total Return %%:     %.2f%%\n", m.TotalReturnPct))
	sb.WriteString(summaryPrinter.Sprintf("Sharpe Ratio:       %.2f\n", m.SharpeRatio))
	sb.WriteString(summaryPrinter.Sprintf("Max Drawdown:       %.2f%%\n", m.MaxDrawdown))
	sb.WriteString(summaryPrinter.Sprintf("Total Trades:       %d\n", m.TotalTrades))
	sb.WriteString(summaryPrinter.Sprintf("Win Rate:           %.2f%%\n", m.WinRate))
	sb.WriteString(summaryPrinter.Sprintf("Commission Paid:    $%.2f\n", m.Commission))
	sb.WriteString(rule + "\n")
	return sb.String()
}
