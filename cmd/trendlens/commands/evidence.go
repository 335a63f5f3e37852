package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/trendlens/internal/contracts"
)

// evidenceCmd fetches and prints evidence for one topic
var evidenceCmd = &cobra.Command{
	Use:   "evidence <topic-id>",
	Short: "토픽 근거 조회",
	Long: `토픽 하나의 근거(점수 분해, 리스크, 반대 근거, 신호 수렴, 타임라인)를
조회해 출력합니다.

Example:
  go run ./cmd/trendlens evidence 42
  go run ./cmd/trendlens evidence 42 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runEvidence,
}

var (
	evidenceJSON bool
)

func init() {
	rootCmd.AddCommand(evidenceCmd)

	evidenceCmd.Flags().BoolVar(&evidenceJSON, "json", false, "JSON 출력")
}

func runEvidence(cmd *cobra.Command, args []string) error {
	rt, err := newApp()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	ev, err := rt.service.Load(ctx, contracts.TopicID(strings.TrimSpace(args[0])))
	if err != nil {
		return fmt.Errorf("load evidence: %w", err)
	}

	out := cmd.OutOrStdout()
	if evidenceJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ev)
	}

	printEvidence(out, ev)
	return nil
}

// printEvidence writes a human readable summary
func printEvidence(w io.Writer, ev *contracts.TopicEvidence) {
	name := string(ev.TopicID)
	stage := contracts.Placeholder
	if ev.Topic != nil {
		name = ev.Topic.Name
		if ev.Topic.Stage != "" {
			stage = string(ev.Topic.Stage)
		}
	}

	printRule(w, '═')
	fmt.Fprintf(w, "  %s (%s)\n", name, stage)
	printRule(w, '─')

	printSection(w, "topic", ev.Sections.Topic)
	printSection(w, "timeseries", ev.Sections.TimeSeries)
	printSection(w, "forecast", ev.Sections.Forecast)

	if s := ev.Score; s != nil {
		fmt.Fprintf(w, "\n  Opportunity : %s\n", s.Opportunity.Display)
		fmt.Fprintf(w, "  Competition : %s\n", s.Competition.Display)
		fmt.Fprintf(w, "  Demand      : %s\n", s.Demand.Display)
		fmt.Fprintf(w, "  Signals     : %s\n", s.SignalCountText)
		fmt.Fprintf(w, "  Time to peak: %s\n", s.TimeToPeak)
		fmt.Fprintf(w, "  Archetype   : %s\n", s.ArchetypeLabel)

		if s.Breakdown.Available {
			fmt.Fprintf(w, "\n  Breakdown (%d components)", s.Breakdown.Count)
			if s.Breakdown.DampenerBadge != "" {
				fmt.Fprintf(w, " [%s]", s.Breakdown.DampenerBadge)
			}
			fmt.Fprintln(w)
			for _, row := range s.Breakdown.Rows {
				fmt.Fprintf(w, "    %-22s %6s  %-20s %5.1f%%\n", row.Label, row.ContributionText, bar(row.Pct, 20), row.WeightPct)
			}
		} else {
			fmt.Fprintln(w, "\n  Score breakdown not yet available")
		}

		fmt.Fprintln(w, "\n  Risks")
		for _, f := range s.Risks {
			fmt.Fprintf(w, "    [%s] %s - %s\n", f.Severity, f.Title, f.Detail)
		}
		fmt.Fprintln(w, "  Counter-evidence")
		for _, f := range s.CounterEvidence {
			fmt.Fprintf(w, "    [%s] %s - %s\n", f.Severity, f.Title, f.Detail)
		}
	}

	if c := ev.Signals; c != nil {
		fmt.Fprintf(w, "\n  Convergence : %s (%d/%d)\n", c.Label, c.ActiveCount, c.Total)
		for _, fam := range c.Families {
			mark := "·"
			if fam.Active {
				mark = "●"
			}
			fmt.Fprintf(w, "    %s %s\n", mark, fam.Label)
		}
	}

	if tl := ev.Timeline; tl != nil {
		fmt.Fprintf(w, "\n  Timeline    : %d history, %d forecast, bridge=%v\n", tl.HistoryCount, tl.ForecastCount, tl.HasBridge)
	}

	printRule(w, '═')
}

func printSection(w io.Writer, name string, s contracts.Section) {
	if s.Error != "" {
		fmt.Fprintf(w, "  %-10s : %s (%s)\n", name, s.State, s.Error)
		return
	}
	fmt.Fprintf(w, "  %-10s : %s\n", name, s.State)
}

func printRule(w io.Writer, r rune) {
	fmt.Fprintln(w, strings.Repeat(string(r), 59))
}

// bar draws a proportional text bar for pct in [0,100]
func bar(pct float64, width int) string {
	n := int(pct / 100 * float64(width))
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}
