package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"algoTrader/internal/domain"
	"algoTrader/internal/strategy/analytics"
	"algoTrader/internal/utils"
)

func main() {
	dir := flag.String("dir", "data", "Directory holding backtest trade logs")
	suffix := flag.String("suffix", "_trades.csv", "File name suffix of trade logs")
	flag.Parse()

	// Find all backtest trade files
	files, err := findTradeFiles(*dir, *suffix)
	if err != nil {
		log.Fatalf("Error finding backtest files: %v", err)
	}
	if len(files) == 0 {
		log.Println("No backtest files found. Run the backtest runner with -out first.")
		return
	}

	reports := make(map[string]*analytics.PerformanceMetrics, len(files))

	// Create a tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "File\tTrips\tWinRate\tAvgWin\tAvgLoss\tNetPnL\tPF\tFees\tOpen\t")
	for _, file := range files {
		trades, err := utils.ReadTradesFromCSV(file)
		if err != nil {
			log.Printf("Error reading trades from %s: %v", file, err)
			continue
		}
		pm := analytics.AnalyzeRoundTrips(trades)
		reports[file] = pm

		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t\n",
			filepath.Base(file),
			pm.TotalTrades,
			pm.WinRate,
			pm.AverageWin,
			pm.AverageLoss,
			pm.NetProfit,
			pm.ProfitFactor,
			pm.TotalCommission,
			len(pm.OpenQuantity),
		)
	}
	w.Flush()

	fmt.Println("\n## Exit Analysis")
	for _, file := range files {
		if pm, ok := reports[file]; ok {
			printExitBreakdown(filepath.Base(file), pm)
		}
	}
}

// findTradeFiles lists the trade logs in dir, sorted by name.
func findTradeFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// printExitBreakdown groups round trips by the action that closed them.
func printExitBreakdown(name string, pm *analytics.PerformanceMetrics) {
	counts := make(map[domain.TradeAction]int)
	pnl := make(map[domain.TradeAction]float64)
	for _, rt := range pm.RoundTrips {
		counts[rt.ExitAction]++
		pnl[rt.ExitAction] += rt.PNL
	}

	fmt.Printf("\nFile: %s\n", name)
	if len(counts) == 0 {
		fmt.Println("No closed round trips")
		return
	}
	fmt.Println("Exit\tCount\tTotal PnL\tAvg PnL")

	// Sort reasons for consistent output
	reasons := make([]domain.TradeAction, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	for _, reason := range reasons {
		count := counts[reason]
		fmt.Printf("%s\t%d\t%.2f\t%.2f\n", reason, count, pnl[reason], pnl[reason]/float64(count))
	}
	fmt.Printf("Longest streaks: %d wins, %d losses\n", pm.MaxConsecutiveWins, pm.MaxConsecutiveLosses)
}
