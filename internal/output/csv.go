package output

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/rgehrsitz/nestegg/internal/forecast"
)

// BalancesCSV writes one row per forecast month with every bucket balance
// followed by net worth.
type BalancesCSV struct{}

func (BalancesCSV) Name() string { return "balances" }

func (BalancesCSV) Format(res *forecast.Result) ([]byte, error) {
	header := append([]string{"Date"}, res.BucketNames...)
	header = append(header, "Net Worth")

	rows := make([][]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := make([]string, 0, len(r.Balances)+2)
		row = append(row, r.Month.String())
		for _, b := range r.Balances {
			row = append(row, itoa(b))
		}
		row = append(row, itoa(r.NetWorth))
		rows = append(rows, row)
	}
	return writeCSV(header, rows)
}

// TaxesCSV writes one row per tax year
type TaxesCSV struct{}

func (TaxesCSV) Name() string { return "taxes" }

func (TaxesCSV) Format(res *forecast.Result) ([]byte, error) {
	header := []string{
		"Year", "AGI", "Ordinary Income", "Taxable Social Security", "Capital Gains",
		"Roth Conversions", "Ordinary Tax", "Capital Gains Tax", "Penalty Tax", "Total Tax",
		"Premiums", "Effective Rate", "Withdrawal Rate",
	}
	rows := make([][]string, 0, len(res.Taxes))
	for _, t := range res.Taxes {
		rows = append(rows, []string{
			strconv.Itoa(t.Year),
			itoa(t.AGI),
			itoa(t.OrdinaryIncome),
			itoa(t.TaxableSocialSecurity),
			itoa(t.CapitalGains),
			itoa(t.RothConversions),
			itoa(t.OrdinaryTax),
			itoa(t.CapitalGainsTax),
			itoa(t.PenaltyTax),
			itoa(t.TotalTax),
			itoa(t.Premiums),
			t.EffectiveRate.StringFixed(4),
			t.WithdrawalRate.StringFixed(4),
		})
	}
	return writeCSV(header, rows)
}

// FlowsCSV writes the flow log in the order it was recorded
type FlowsCSV struct{}

func (FlowsCSV) Name() string { return "flows" }

func (FlowsCSV) Format(res *forecast.Result) ([]byte, error) {
	header := []string{"Date", "Source", "Target", "Amount", "Type"}
	rows := make([][]string, 0, len(res.Flows))
	for _, f := range res.Flows {
		rows = append(rows, []string{f.Month.String(), f.Source, f.Target, itoa(f.Amount), string(f.Type)})
	}
	return writeCSV(header, rows)
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
