package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/mtraver/sensorstats/probability"
	"github.com/mtraver/sensorstats/stats"
)

type analyzeOptions struct {
	Kind      string
	Bins      int
	Threshold float64
	// HasThreshold is false when successes should be values above the mean.
	HasThreshold bool
	Trials       int
	// HasTrials is false when the sample size is the trial count.
	HasTrials bool
}

var analyzeOpts analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze [FILE]",
	Short: "Analyze a sample read from a file or stdin",
	Long: `Analyze a sample of numbers separated by whitespace or commas and print
the result as JSON. The joint analysis reads one "x,y" pair per line.

Kinds: describe, advanced, normal, binomial, joint.

Examples:
  sensorstats analyze --kind advanced readings.txt
  sensorstats analyze --kind binomial --threshold 80 < humidity.txt
  sensorstats analyze --kind joint --bins 5 pairs.csv`,
	Args: cobra.MaximumNArgs(1),
	// Analyses don't need a config file or a database.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeOpts.Kind, "kind", "describe", "analysis to run")
	f.IntVar(&analyzeOpts.Bins, "bins", probability.DefaultJointBins, "bins per axis of the joint table")
	f.Float64Var(&analyzeOpts.Threshold, "threshold", 0, "binomial success is a value above this (default the sample mean)")
	f.IntVar(&analyzeOpts.Trials, "trials", 0, "binomial trials (default the sample size)")
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

func parseSample(in io.Reader) ([]float64, error) {
	var sample []float64

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		vals, err := strsToFloats(splitFields(sc.Text()))
		if err != nil {
			return nil, err
		}
		sample = append(sample, vals...)
	}
	return sample, sc.Err()
}

func parsePairs(in io.Reader) (probability.PairedSample, error) {
	pair := probability.PairedSample{}

	sc := bufio.NewScanner(in)
	for line := 1; sc.Scan(); line++ {
		fields := splitFields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return pair, fmt.Errorf("line %d: want 2 values, got %d", line, len(fields))
		}
		vals, err := strsToFloats(fields)
		if err != nil {
			return pair, fmt.Errorf("line %d: %w", line, err)
		}
		pair.X = append(pair.X, vals[0])
		pair.Y = append(pair.Y, vals[1])
	}
	return pair, sc.Err()
}

func analyze(in io.Reader, opts analyzeOptions) (any, error) {
	if opts.Kind == "joint" {
		pair, err := parsePairs(in)
		if err != nil {
			return nil, err
		}
		return probability.JointProbability(pair, opts.Bins)
	}

	sample, err := parseSample(in)
	if err != nil {
		return nil, err
	}

	switch opts.Kind {
	case "describe":
		return stats.Describe(sample)
	case "advanced":
		return stats.DescribeAdvanced(sample)
	case "normal":
		return probability.FitNormal(sample)
	case "binomial":
		threshold := opts.Threshold
		if !opts.HasThreshold {
			res, err := stats.Describe(sample)
			if err != nil {
				return nil, err
			}
			threshold = res.Mean
		}

		var bopts []probability.BinomialOption
		if opts.HasTrials {
			bopts = append(bopts, probability.WithTrials(opts.Trials))
		}
		return probability.FitBinomial(sample, func(v float64) bool { return v > threshold }, bopts...)
	}

	return nil, fmt.Errorf("unknown analysis kind %q", opts.Kind)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	opts := analyzeOpts
	opts.HasThreshold = cmd.Flags().Changed("threshold")
	opts.HasTrials = cmd.Flags().Changed("trials")

	res, err := analyze(in, opts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
