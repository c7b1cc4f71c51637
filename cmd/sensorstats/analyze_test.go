package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mtraver/sensorstats/probability"
	"github.com/mtraver/sensorstats/stats"
)

func TestParseSample(t *testing.T) {
	got, err := parseSample(strings.NewReader("1, 2 2\n3;3\t3\n\n4\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if diff := cmp.Diff(got, []float64{1, 2, 2, 3, 3, 3, 4}); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs(strings.NewReader("1,10\n\n2, 20\n"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := probability.PairedSample{X: []float64{1, 2}, Y: []float64{10, 20}}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}

	if _, err := parsePairs(strings.NewReader("1,2,3\n")); err == nil {
		t.Errorf("want error for a line of 3 values")
	}
}

func TestAnalyze(t *testing.T) {
	const sample = "1 2 2 3 3 3 4"

	t.Run("describe", func(t *testing.T) {
		got, err := analyze(strings.NewReader(sample), analyzeOptions{Kind: "describe"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if r := got.(stats.Result); r.Median != 3 || r.Count != 7 {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("binomial_mean", func(t *testing.T) {
		got, err := analyze(strings.NewReader(sample), analyzeOptions{Kind: "binomial"})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		// Values above the mean of 2.571...
		if fit := got.(probability.BinomialFit); fit.Successes != 4 || fit.Trials != 7 {
			t.Errorf("unexpected fit %+v", fit)
		}
	})

	t.Run("binomial_threshold", func(t *testing.T) {
		got, err := analyze(strings.NewReader(sample), analyzeOptions{Kind: "binomial", Threshold: 3, HasThreshold: true, Trials: 10, HasTrials: true})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if fit := got.(probability.BinomialFit); fit.Successes != 1 || fit.Trials != 10 || len(fit.PMF) != 11 {
			t.Errorf("unexpected fit %+v", fit)
		}
	})

	t.Run("binomial_bad_trials", func(t *testing.T) {
		for _, n := range []int{0, -3} {
			_, err := analyze(strings.NewReader(sample), analyzeOptions{Kind: "binomial", Trials: n, HasTrials: true})
			if !errors.Is(err, stats.ErrInvalidParameter) {
				t.Errorf("trials %d: want ErrInvalidParameter, got %v", n, err)
			}
		}
	})

	t.Run("joint", func(t *testing.T) {
		got, err := analyze(strings.NewReader("1,10\n2,20\n3,30\n4,40\n"), analyzeOptions{Kind: "joint", Bins: 2})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		want := [][]float64{{0.5, 0}, {0, 0.5}}
		if diff := cmp.Diff(got.(probability.JointTable).Table, want, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("Unexpected result (-got +want):\n%s", diff)
		}
	})

	t.Run("normal_too_small", func(t *testing.T) {
		if _, err := analyze(strings.NewReader("1 2"), analyzeOptions{Kind: "normal"}); !errors.Is(err, stats.ErrInsufficientData) {
			t.Errorf("want ErrInsufficientData, got %v", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := analyze(strings.NewReader(sample), analyzeOptions{Kind: "median"}); err == nil {
			t.Errorf("want error for unknown kind")
		}
	})
}
