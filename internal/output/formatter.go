package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rgehrsitz/nestegg/internal/forecast"
)

// Formatter renders one trial's result to bytes
type Formatter interface {
	Name() string
	Format(res *forecast.Result) ([]byte, error)
}

// CSVFormatters returns the balance, tax and flow writers in that order
func CSVFormatters() []Formatter {
	return []Formatter{BalancesCSV{}, TaxesCSV{}, FlowsCSV{}}
}

// WriteFormatted formats res and writes it to dir/<prefix><name>.<ext>,
// creating dir if needed. It returns the path written.
func WriteFormatted(f Formatter, res *forecast.Result, dir, prefix, ext string) (string, error) {
	data, err := f.Format(res)
	if err != nil {
		return "", fmt.Errorf("failed to format %s: %w", f.Name(), err)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s%s.%s", prefix, f.Name(), ext))
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return filename, nil
}
