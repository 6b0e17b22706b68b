package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/lipgloss"
	"github.com/rgehrsitz/nestegg/internal/forecast"
	"github.com/rgehrsitz/nestegg/internal/montecarlo"
	"github.com/shopspring/decimal"
)

var (
	colorPrimary = lipgloss.Color("#7D56F4")
	colorMuted   = lipgloss.Color("#626262")
	colorDanger  = lipgloss.Color("#FF5F87")
	colorBorder  = lipgloss.Color("#3C3C3C")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorMuted)
	negativeStyle = lipgloss.NewStyle().Foreground(colorDanger)
	panelStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

const columnWidth = 16

// FormatCurrency formats whole dollars as USD
func FormatCurrency(amount int64) string {
	return money.New(amount*100, money.USD).Display()
}

// FormatPercentage formats a fraction such as 0.125 as "12.50%"
func FormatPercentage(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func cell(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Right).Render(s)
}

func label(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

func currencyCell(amount int64) string {
	s := cell(FormatCurrency(amount), columnWidth)
	if amount < 0 {
		return negativeStyle.Render(s)
	}
	return s
}

// SummaryReport renders the Monte Carlo percentile table
func SummaryReport(s montecarlo.Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("MONTE CARLO SUMMARY (%d trials, %d failed)", s.Trials, s.Failed)))
	b.WriteString("\n")

	header := []string{label("Year", 6)}
	for _, p := range montecarlo.Percentiles {
		header = append(header, cell(p.Label, columnWidth))
	}
	header = append(header, cell("P(NW > 0)", 10))
	b.WriteString(headerStyle.Render(strings.Join(header, "")))
	b.WriteString("\n")

	for _, y := range s.Years {
		row := []string{label(strconv.Itoa(y.Year), 6)}
		for _, p := range montecarlo.Percentiles {
			row = append(row, currencyCell(y.NetWorth[p.Label]))
		}
		row = append(row, cell(FormatPercentage(y.PositiveProbability), 10))
		b.WriteString(strings.Join(row, ""))
		b.WriteString("\n")
	}

	if s.Trials > 0 {
		lines := []string{
			fmt.Sprintf("Median final net worth: %s", FormatCurrency(s.FinalNetWorth["50th"])),
			fmt.Sprintf("10th-90th range:        %s to %s", FormatCurrency(s.FinalNetWorth["10th"]), FormatCurrency(s.FinalNetWorth["90th"])),
			fmt.Sprintf("Median lifetime tax:    %s", FormatCurrency(s.MedianLifetimeTax)),
		}
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}
	return b.String()
}

// ForecastReport renders the year-end balances and tax history of one trial
func ForecastReport(res *forecast.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("FORECAST (seed %d)", res.Seed)))
	b.WriteString("\n")

	header := []string{label("Month", 9)}
	for _, name := range res.BucketNames {
		header = append(header, cell(name, columnWidth))
	}
	header = append(header, cell("Net Worth", columnWidth))
	b.WriteString(headerStyle.Render(strings.Join(header, "")))
	b.WriteString("\n")

	for i, r := range res.Rows {
		if !r.Month.IsYearEnd() && i != len(res.Rows)-1 {
			continue
		}
		row := []string{label(r.Month.String(), 9)}
		for _, bal := range r.Balances {
			row = append(row, currencyCell(bal))
		}
		row = append(row, currencyCell(r.NetWorth))
		b.WriteString(strings.Join(row, ""))
		b.WriteString("\n")
	}

	if len(res.Taxes) > 0 {
		b.WriteString("\n")
		taxHeader := []string{
			label("Year", 6), cell("AGI", columnWidth), cell("Conversions", columnWidth),
			cell("Total Tax", columnWidth), cell("Premiums", columnWidth), cell("Eff. Rate", 10), cell("W/D Rate", 10),
		}
		b.WriteString(headerStyle.Render(strings.Join(taxHeader, "")))
		b.WriteString("\n")
		for _, t := range res.Taxes {
			row := []string{
				label(strconv.Itoa(t.Year), 6),
				currencyCell(t.AGI),
				currencyCell(t.RothConversions),
				currencyCell(t.TotalTax),
				currencyCell(t.Premiums),
				cell(FormatPercentage(t.EffectiveRate), 10),
				cell(FormatPercentage(t.WithdrawalRate), 10),
			}
			b.WriteString(strings.Join(row, ""))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(panelStyle.Render("Lifetime tax: " + FormatCurrency(res.LifetimeTax())))
		b.WriteString("\n")
	}
	return b.String()
}
