package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"algoTrader/internal/domain"
)

var (
	klineHeader  = []string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"}
	tradeHeader  = []string{"timestamp", "symbol", "action", "quantity", "price", "value"}
	equityHeader = []string{"date", "equity", "cash", "positions_value"}
)

// WriteKlinesToCSV writes bars to filename, creating parent directories.
func WriteKlinesToCSV(klines []*domain.Kline, filename string) error {
	return writeFile(filename, func(w io.Writer) error { return WriteKlines(w, klines) })
}

// WriteKlines writes bars as CSV with a header row.
func WriteKlines(w io.Writer, klines []*domain.Kline) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(klineHeader); err != nil {
		return err
	}
	for _, k := range klines {
		if k == nil {
			continue
		}
		if err := writer.Write([]string{
			k.OpenTime.UTC().Format(time.RFC3339Nano),
			k.CloseTime.UTC().Format(time.RFC3339Nano),
			k.Symbol,
			k.Interval,
			formatFloat(k.Open),
			formatFloat(k.High),
			formatFloat(k.Low),
			formatFloat(k.Close),
			formatFloat(k.Volume),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadKlinesFromCSV loads bars written by WriteKlinesToCSV.
func ReadKlinesFromCSV(filename string) ([]*domain.Kline, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadKlines(file)
}

// ReadKlines parses bar CSV. Columns are matched by header name, so column
// order does not matter. Times may be RFC3339 or Unix milliseconds.
func ReadKlines(r io.Reader) ([]*domain.Kline, error) {
	rows, cols, err := readRows(r, "open_time", "open", "high", "low", "close")
	if err != nil {
		return nil, err
	}

	klines := make([]*domain.Kline, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		k := &domain.Kline{
			Symbol:   field(row, cols, "symbol"),
			Interval: field(row, cols, "interval"),
		}
		if k.OpenTime, err = parseTime(field(row, cols, "open_time")); err != nil {
			return nil, fmt.Errorf("line %d: open_time: %w", line, err)
		}
		if raw := field(row, cols, "close_time"); raw != "" {
			if k.CloseTime, err = parseTime(raw); err != nil {
				return nil, fmt.Errorf("line %d: close_time: %w", line, err)
			}
		}
		for name, dst := range map[string]*float64{"open": &k.Open, "high": &k.High, "low": &k.Low, "close": &k.Close, "volume": &k.Volume} {
			raw := field(row, cols, name)
			if raw == "" && name == "volume" {
				continue
			}
			if *dst, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// WriteTradesToCSV writes a trade log to filename.
func WriteTradesToCSV(trades []domain.TradeRecord, filename string) error {
	return writeFile(filename, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(tradeHeader); err != nil {
			return err
		}
		for _, t := range trades {
			if err := writer.Write([]string{
				t.Timestamp.UTC().Format(time.RFC3339Nano),
				t.Symbol,
				string(t.Action),
				formatFloat(t.Quantity),
				formatFloat(t.Price),
				formatFloat(t.Value),
			}); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// ReadTradesFromCSV loads a trade log written by WriteTradesToCSV.
func ReadTradesFromCSV(filename string) ([]domain.TradeRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, cols, err := readRows(file, tradeHeader...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	trades := make([]domain.TradeRecord, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		t := domain.TradeRecord{
			Symbol: field(row, cols, "symbol"),
			Action: domain.TradeAction(strings.ToUpper(field(row, cols, "action"))),
		}
		if t.Timestamp, err = parseTime(field(row, cols, "timestamp")); err != nil {
			return nil, fmt.Errorf("%s line %d: timestamp: %w", filename, line, err)
		}
		for name, dst := range map[string]*float64{"quantity": &t.Quantity, "price": &t.Price, "value": &t.Value} {
			if *dst, err = strconv.ParseFloat(field(row, cols, name), 64); err != nil {
				return nil, fmt.Errorf("%s line %d: %s: %w", filename, line, name, err)
			}
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// WriteEquityCurveToCSV writes an equity curve to filename.
func WriteEquityCurveToCSV(points []domain.EquityPoint, filename string) error {
	return writeFile(filename, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(equityHeader); err != nil {
			return err
		}
		for _, p := range points {
			if err := writer.Write([]string{
				p.Date.UTC().Format(time.RFC3339Nano),
				formatFloat(p.Equity),
				formatFloat(p.Cash),
				formatFloat(p.PositionsValue),
			}); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

func writeFile(filename string, write func(io.Writer) error) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// readRows reads the header and data rows, checking that required columns exist.
func readRows(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("empty csv: missing header")
	}
	if err != nil {
		return nil, nil, err
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", name)
		}
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return rows, cols, nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	ms, err := cast.ToInt64E(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
