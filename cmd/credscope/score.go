package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/credscope/credscope/pkg/scoring"
	"github.com/credscope/credscope/pkg/signals"
	"github.com/credscope/credscope/pkg/surface"
)

func newScoreCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "score <target>",
		Short: "Compute, store and explain the score of a target",
		Long: `Computes the credibility score of a target and records it.

Targets are written as userkeys:
  address:0x8ba1f109551bd432803012645ac136ddd64dba72
  profileId:42
  service:x.com:123456
  service:x.com:username:alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := scoring.ParseTarget(args[0])
			if err != nil {
				return err
			}
			renderer, err := surface.ForOutput(g.output)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.svc.Score(cmd.Context(), target)
			if err != nil {
				return fmt.Errorf("scoring %s: %w", target, err)
			}
			return renderer.Render(cmd.OutOrStdout(), e)
		},
	}
}

type simulateOpts struct {
	set     []string
	reviews string
	stake   float64
	backers int
}

func newSimulateCmd(g *globalOpts) *cobra.Command {
	var opts simulateOpts

	cmd := &cobra.Command{
		Use:   "simulate <target>",
		Short: "Compute a what-if score without storing it",
		Long: `Computes a hypothetical score. Signals set with --set take the given raw
value instead of being evaluated. --reviews, --stake and --backers add
provisional activity on top of what is recorded.`,
		Example: `  credscope simulate profileId:42 --set stake_impact=100
  credscope simulate address:0x8ba1f109551bd432803012645ac136ddd64dba72 --reviews 3,0,1 --backers 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := scoring.ParseTarget(args[0])
			if err != nil {
				return err
			}
			overrides, err := parseOverrides(opts.set)
			if err != nil {
				return err
			}
			prov, err := opts.provisional()
			if err != nil {
				return err
			}
			renderer, err := surface.ForOutput(g.output)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), g)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.svc.Simulate(cmd.Context(), target, overrides, prov)
			if err != nil {
				return fmt.Errorf("simulating %s: %w", target, err)
			}
			return renderer.Render(cmd.OutOrStdout(), e)
		},
	}

	cmd.Flags().StringArrayVar(&opts.set, "set", nil, "Override a signal's raw value, name=value (repeatable)")
	cmd.Flags().StringVar(&opts.reviews, "reviews", "", "Provisional reviews as positive,negative,neutral")
	cmd.Flags().Float64Var(&opts.stake, "stake", 0, "Provisional staked ETH")
	cmd.Flags().IntVar(&opts.backers, "backers", 0, "Provisional backers")

	return cmd
}

// parseOverrides turns name=value pairs into signal overrides.
func parseOverrides(pairs []string) (map[scoring.SignalName]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[scoring.SignalName]float64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("override %q: want name=value", pair)
		}
		sig, err := scoring.ParseSignalName(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", pair, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("override %q: value must be finite", pair)
		}
		out[sig] = v
	}
	return out, nil
}

func (o simulateOpts) provisional() (signals.Provisional, error) {
	var p signals.Provisional
	if o.stake < 0 || o.backers < 0 {
		return p, fmt.Errorf("provisional stake and backers must not be negative")
	}
	p.StakedEth = o.stake
	p.Backers = o.backers
	if o.reviews == "" {
		return p, nil
	}
	parts := strings.Split(o.reviews, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("--reviews %q: want positive,negative,neutral", o.reviews)
	}
	counts := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return p, fmt.Errorf("--reviews %q: counts must be non-negative integers", o.reviews)
		}
		counts[i] = n
	}
	p.Reviews = signals.ReviewCounts{Positive: counts[0], Negative: counts[1], Neutral: counts[2]}
	return p, nil
}
