package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/reedan88/Isaias/pkg/isaias"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a single ad-hoc target and write it as CSV",
	Long: `Fetch requests one stream, waits for the THREDDS job, assembles the
catalog and writes the dataset as CSV. Endpoints, polling, sink and journal
settings come from --config when the file exists.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("refdes", "", "reference designator, e.g. CP01CNSM-SBD11-06-METBKA000")
	fetchCmd.Flags().String("method", "telemetered", "delivery method")
	fetchCmd.Flags().String("stream", "", "stream name")
	fetchCmd.Flags().String("begin", "", "start of the window (RFC 3339 or date)")
	fetchCmd.Flags().String("end", "", "end of the window (RFC 3339 or date)")
	fetchCmd.Flags().Duration("lookback", 0, "fetch the last duration instead of --begin")
	fetchCmd.Flags().StringSlice("exclude", nil, "catalog substrings to skip")
	fetchCmd.Flags().StringSlice("derive", nil, "derived variables to add, e.g. wind_speed")
	fetchCmd.Flags().String("out", "-", "CSV output path, - for stdout")
	_ = fetchCmd.MarkFlagRequired("refdes")
	_ = fetchCmd.MarkFlagRequired("stream")
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		cfg = isaias.DefaultConfig()
	}

	refdes, _ := cmd.Flags().GetString("refdes")
	method, _ := cmd.Flags().GetString("method")
	stream, _ := cmd.Flags().GetString("stream")
	begin, _ := cmd.Flags().GetString("begin")
	end, _ := cmd.Flags().GetString("end")
	lookback, _ := cmd.Flags().GetDuration("lookback")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	derive, _ := cmd.Flags().GetStringSlice("derive")
	out, _ := cmd.Flags().GetString("out")

	tc := isaias.TargetConfig{
		Name:     strings.ToLower(refdes + "_" + stream),
		RefDes:   refdes,
		Method:   method,
		Stream:   stream,
		Begin:    begin,
		End:      end,
		Lookback: lookback,
		Exclude:  exclude,
		Derive:   derive,
	}
	if _, err := tc.Descriptor(time.Now()); err != nil {
		return &configError{err}
	}
	cfg.Targets = append([]isaias.TargetConfig{tc}, cfg.Targets...)
	cfg.Plots = nil

	rt, err := isaias.NewRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Shutdown(cmd.Context())

	ctx, stop := signalContext()
	defer stop()

	report, err := rt.Run(ctx, tc.Name)
	if err != nil {
		return err
	}
	res := report.Results[tc.Name]

	w := cmd.OutOrStdout()
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := writeCSV(w, res.Dataset); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d files, %d rows, %s\n", tc.Name, len(res.Files), res.Dataset.Len(), res.Dataset.Attrs["Location_name"])
	return nil
}

// writeCSV writes one row per time step with every variable on the time
// dimension as a column.
func writeCSV(w io.Writer, ds *isaias.Dataset) error {
	cols := make([]string, 0, len(ds.Names()))
	for _, name := range ds.Names() {
		v, _ := ds.Var(name)
		if name == "time" || v.Dim != ds.Dim {
			continue
		}
		cols = append(cols, name)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"time"}, cols...)); err != nil {
		return err
	}
	record := make([]string, len(cols)+1)
	for i, t := range ds.Time {
		record[0] = t.UTC().Format(time.RFC3339Nano)
		for j, name := range cols {
			v, _ := ds.Var(name)
			record[j+1] = ""
			if i < len(v.Values) {
				record[j+1] = strconv.FormatFloat(v.Values[i], 'g', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
