package main

import (
	"errors"
	"fmt"

	"github.com/rgehrsitz/nestegg/internal/config"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/forecast"
	"github.com/rgehrsitz/nestegg/internal/logging"
	"github.com/rgehrsitz/nestegg/internal/montecarlo"
	"github.com/rgehrsitz/nestegg/internal/output"
	"github.com/rgehrsitz/nestegg/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNoHistory = errors.New("a balance history is required (--history or NESTEGG_HISTORY)")

// loadInputs parses the YAML configuration and the CSV balance history
func loadInputs(v *viper.Viper, configFile string) (*domain.Configuration, *domain.BalanceHistory, error) {
	parser := config.NewInputParser()
	cfg, err := parser.LoadFromFile(configFile)
	if err != nil {
		return nil, nil, err
	}
	historyFile := v.GetString("history")
	if historyFile == "" {
		return nil, nil, errNoHistory
	}
	history, err := parser.LoadBalanceHistory(historyFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, history, nil
}

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast [config-file]",
		Short: "Run a single forecast trial",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newSettings(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-level"))
			if err != nil {
				return err
			}
			cfg, history, err := loadInputs(v, args[0])
			if err != nil {
				return err
			}

			seed := v.GetInt64("seed")
			engine, err := forecast.NewTrial(cfg, history, seed, logger.With(logging.KeySeed, seed))
			if err != nil {
				return fmt.Errorf("failed to set up forecast: %w", err)
			}
			res, err := engine.Run(cmd.Context())
			if err != nil {
				return err
			}

			if dir := v.GetString("out-dir"); dir != "" {
				for _, f := range output.CSVFormatters() {
					path, err := output.WriteFormatted(f, res, dir, v.GetString("prefix"), "csv")
					if err != nil {
						return err
					}
					logger.Infof("wrote %s", path)
				}
			}
			if !v.GetBool("quiet") {
				fmt.Fprint(cmd.OutOrStdout(), output.ForecastReport(res))
			}
			return nil
		},
	}
	cmd.Flags().Int64("seed", 1, "Random seed for the market and inflation paths")
	cmd.Flags().String("out-dir", "", "Directory for balances, taxes and flows CSV files")
	cmd.Flags().String("prefix", "", "File name prefix for CSV outputs")
	cmd.Flags().BoolP("quiet", "q", false, "Suppress the console report")
	return cmd
}

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate [config-file]",
		Short: "Run Monte Carlo trials and summarize year-end net worth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newSettings(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-level"))
			if err != nil {
				return err
			}
			cfg, history, err := loadInputs(v, args[0])
			if err != nil {
				return err
			}

			var recorder store.Recorder = store.NewNoopRecorder()
			if dbPath := v.GetString("db"); dbPath != "" {
				sqlite, err := store.NewSQLiteRecorder(dbPath, logger)
				if err != nil {
					return fmt.Errorf("failed to open result store: %w", err)
				}
				recorder = sqlite
			}
			defer recorder.Close()

			driver := &montecarlo.Driver{
				Trials:          v.GetInt("trials"),
				Workers:         v.GetInt("workers"),
				BaseSeed:        v.GetInt64("seed"),
				ContinueOnError: v.GetBool("continue-on-error"),
				Recorder:        recorder,
				Logger:          logger,
			}
			outcome, err := driver.Run(cmd.Context(), cfg, history)
			if err != nil {
				return err
			}
			for _, f := range outcome.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "trial %d (seed %d) failed: %v\n", f.Trial, f.Seed, f.Err)
			}
			fmt.Fprint(cmd.OutOrStdout(), output.SummaryReport(outcome.Summary))
			return nil
		},
	}
	cmd.Flags().Int("trials", 1000, "Number of Monte Carlo trials")
	cmd.Flags().Int("workers", 0, "Concurrent trials (0 uses every CPU)")
	cmd.Flags().Int64("seed", 1, "Seed of the first trial; trial i uses seed+i")
	cmd.Flags().String("db", "", "SQLite file to record per-trial results")
	cmd.Flags().Bool("continue-on-error", false, "Exclude failed trials instead of aborting")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration and, with --history, its balance history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newSettings(cmd)
			if err != nil {
				return err
			}
			parser := config.NewInputParser()
			cfg, err := parser.LoadFromFile(args[0])
			if err != nil {
				return err
			}
			if historyFile := v.GetString("history"); historyFile != "" {
				history, err := parser.LoadBalanceHistory(historyFile)
				if err != nil {
					return err
				}
				// NewTrial checks the history columns against the configured buckets
				if _, err := forecast.NewTrial(cfg, history, 0, nil); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration is valid (%d buckets)\n", args[0], len(cfg.Buckets))
			return nil
		},
	}
}
