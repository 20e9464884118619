package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statsMetrics = []string{
	"isaias_requests_total",
	"isaias_jobs_resumed_total",
	"isaias_target_failures_total",
	"isaias_rows_written_total",
	"isaias_journal_pending",
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Poll the Prometheus metrics endpoint and print live counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		url, _ := cmd.Flags().GetString("url")
		interval, _ := cmd.Flags().GetDuration("interval")

		ctx, stop := signalContext()
		defer stop()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Streaming metrics from %s (Ctrl+C to stop)\n", url)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := printMetricsSnapshot(cmd.OutOrStdout(), url); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "stats error: %v\n", err)
				}
			}
		}
	},
}

func init() {
	statsCmd.Flags().String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	statsCmd.Flags().Duration("interval", 2*time.Second, "refresh interval")
}

func printMetricsSnapshot(w io.Writer, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scrapeMetrics(resp.Body, statsMetrics)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "[%s] requests=%g resumed=%g failures=%g rows=%g journal_pending=%g\n",
		time.Now().Format(time.RFC3339),
		values["isaias_requests_total"],
		values["isaias_jobs_resumed_total"],
		values["isaias_target_failures_total"],
		values["isaias_rows_written_total"],
		values["isaias_journal_pending"],
	)
	return nil
}

// scrapeMetrics reads the unlabelled samples of the named metrics from a
// Prometheus text exposition.
func scrapeMetrics(r io.Reader, names []string) (map[string]float64, error) {
	values := make(map[string]float64, len(names))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range names {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	return values, scanner.Err()
}
