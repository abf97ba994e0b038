package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"tradesim/calendar"
)

// Summary condenses a finished run: net-value extremes and averages,
// cumulative frictions and the ledger counts.
type Summary struct {
	Description string
	StartDate   calendar.Date
	EndDate     calendar.Date

	InitialCapital  decimal.Decimal
	FinalNetValue   decimal.Decimal
	AverageNetValue decimal.Decimal
	MinNetValue     decimal.Decimal
	MinNetValueDate calendar.Date
	FinalLiquidity  decimal.Decimal

	TotalCommissions decimal.Decimal
	TotalDividends   decimal.Decimal
	TotalTaxes       decimal.Decimal

	ExecutedCount int
	FailedCount   int
}

// Summarize reduces the portfolio history to a run summary. The summary
// reflects whatever was achieved up to the last processed day, so it
// stays meaningful after a fatal abort.
func (p *Portfolio) Summarize() Summary {
	final := p.FinalRow()
	s := Summary{
		Description:      p.Description,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		InitialCapital:   p.InitialCapital,
		FinalNetValue:    final.NetValue,
		FinalLiquidity:   final.Liquidity,
		TotalCommissions: final.TotalCommissions,
		TotalDividends:   final.TotalDividends,
		TotalTaxes:       final.TotalTaxes,
		ExecutedCount:    len(p.Executed),
		FailedCount:      len(p.Failed),
	}

	sum := decimal.Zero
	s.MinNetValue = p.History[0].NetValue
	s.MinNetValueDate = p.History[0].Date
	for _, row := range p.History {
		sum = sum.Add(row.NetValue)
		if row.NetValue.LessThan(s.MinNetValue) {
			s.MinNetValue = row.NetValue
			s.MinNetValueDate = row.Date
		}
	}
	s.AverageNetValue = sum.Div(decimal.NewFromInt(int64(len(p.History))))
	return s
}

// Print writes the human-readable run report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "===== Trading Report =====")
	fmt.Fprintf(w, "Portfolio:             %s\n", s.Description)
	fmt.Fprintf(w, "Period:                %s .. %s\n", s.StartDate, s.EndDate)
	fmt.Fprintf(w, "Initial Capital:       %s\n", s.InitialCapital)

	fmt.Fprintln(w, "\n-- Net Value --")
	fmt.Fprintf(w, "Final Net Value:       %s\n", s.FinalNetValue.StringFixed(2))
	fmt.Fprintf(w, "Average Net Value:     %s\n", s.AverageNetValue.StringFixed(2))
	fmt.Fprintf(w, "Minimum Net Value:     %s (%s)\n", s.MinNetValue.StringFixed(2), s.MinNetValueDate)
	fmt.Fprintf(w, "Final Liquidity:       %s\n", s.FinalLiquidity.StringFixed(2))

	fmt.Fprintln(w, "\n-- Frictions --")
	fmt.Fprintf(w, "Total Commissions:     %s\n", s.TotalCommissions.StringFixed(2))
	fmt.Fprintf(w, "Total Dividends:       %s\n", s.TotalDividends.StringFixed(2))
	fmt.Fprintf(w, "Total Taxes:           %s\n", s.TotalTaxes.StringFixed(2))

	fmt.Fprintln(w, "\n-- Transactions --")
	fmt.Fprintf(w, "Executed:              %d\n", s.ExecutedCount)
	fmt.Fprintf(w, "Failed:                %d\n", s.FailedCount)
	fmt.Fprintln(w, "==========================")
}

// PrintLedgers lists the executed and failed transactions.
func (p *Portfolio) PrintLedgers(w io.Writer) {
	fmt.Fprintln(w, "-- Executed Transactions --")
	for _, t := range p.Executed {
		fmt.Fprintln(w, t)
	}
	fmt.Fprintln(w, "-- Failed Transactions --")
	for _, t := range p.Failed {
		fmt.Fprintln(w, t)
	}
}

// WriteHistoryCSV writes the day-by-day portfolio history to any
// io.Writer as CSV.
func (p *Portfolio) WriteHistoryCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"date", "liquidity", "net_value", "total_commissions", "total_dividends", "total_taxes"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range p.History {
		record := []string{
			row.Date.String(),
			row.Liquidity.String(),
			row.NetValue.String(),
			row.TotalCommissions.String(),
			row.TotalDividends.String(),
			row.TotalTaxes.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteHistoryCSVFile writes the history CSV to a file at the given path.
func (p *Portfolio) WriteHistoryCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create history file: %w", err)
	}
	defer f.Close()
	return p.WriteHistoryCSV(f)
}
