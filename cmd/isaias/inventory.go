package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/reedan88/Isaias/pkg/isaias"
)

// inventoryClient builds an authenticated client from --config, falling back
// to defaults plus OOI_USERNAME/OOI_TOKEN when the file does not exist.
func inventoryClient() (*isaias.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = isaias.DefaultConfig()
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	return isaias.NewClient(cfg, nil), nil
}

func parseRef(arg string) (isaias.InstrumentRef, error) {
	ref, err := isaias.ParseRefDes(arg)
	if err != nil {
		return isaias.InstrumentRef{}, &configError{err}
	}
	return ref, nil
}

func day(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Walk the sensor inventory and list matching instruments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		array, _ := cmd.Flags().GetString("array")
		node, _ := cmd.Flags().GetString("node")
		instrument, _ := cmd.Flags().GetString("instrument")
		english, _ := cmd.Flags().GetBool("english")

		client, err := inventoryClient()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		hits, err := client.Search(ctx, isaias.SearchQuery{
			Array:        array,
			Node:         node,
			Instrument:   instrument,
			EnglishNames: english,
		})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		if english {
			fmt.Fprintln(tw, "REFDES\tARRAY\tNODE\tINSTRUMENT\tDEPLOYMENTS")
		} else {
			fmt.Fprintln(tw, "REFDES\tURL")
		}
		for _, h := range hits {
			if english {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.Ref, h.ArrayName, h.NodeName, h.InstrumentName, joinInts(h.Deployments))
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\n", h.Ref, h.URL)
		}
		return tw.Flush()
	},
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}

var deploymentsCmd = &cobra.Command{
	Use:   "deployments REFDES",
	Short: "List the deployments of an instrument",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, _ := cmd.Flags().GetInt("number")
		ref, err := parseRef(args[0])
		if err != nil {
			return err
		}
		client, err := inventoryClient()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		deps, err := client.Deployments(ctx, ref, number)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DEPLOYMENT\tSTART\tEND\tLAT\tLON\tDEPTH\tCRUISE")
		for _, d := range deps {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.4f\t%.4f\t%.1f\t%s\n",
				d.Number, day(d.Start), day(d.End), d.Latitude, d.Longitude, d.Depth, d.DeployCruise)
		}
		return tw.Flush()
	},
}

var streamsCmd = &cobra.Command{
	Use:   "streams REFDES",
	Short: "List the method/stream pairs of an instrument",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := parseRef(args[0])
		if err != nil {
			return err
		}
		client, err := inventoryClient()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		streams, err := client.Streams(ctx, ref)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "METHOD\tSTREAM")
		for _, s := range streams {
			fmt.Fprintf(tw, "%s\t%s\n", s.Method, s.Stream)
		}
		return tw.Flush()
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata REFDES",
	Short: "List the parameters of an instrument with their time coverage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		processed, _ := cmd.Flags().GetBool("processed")
		ref, err := parseRef(args[0])
		if err != nil {
			return err
		}
		client, err := inventoryClient()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		params, err := client.Metadata(ctx, ref)
		if err != nil {
			return err
		}
		if processed {
			levels, err := client.ParameterDataLevels(ctx, params)
			if err != nil {
				return err
			}
			params = isaias.ProcessedOnly(params, levels)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "METHOD\tSTREAM\tPARAMETER\tUNITS\tBEGIN\tEND\tCOUNT")
		for _, p := range params {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				p.Method, p.Stream, p.ParticleKey, p.Units, day(p.BeginTime), day(p.EndTime), p.Count)
		}
		return tw.Flush()
	},
}

func init() {
	searchCmd.Flags().String("array", "", "array code, e.g. CP01CNSM")
	searchCmd.Flags().String("node", "", "node code or substring")
	searchCmd.Flags().String("instrument", "", "instrument code or substring, e.g. METBK")
	searchCmd.Flags().Bool("english", false, "add vocabulary names and deployment numbers")
	deploymentsCmd.Flags().Int("number", isaias.AllDeployments, "deployment number, -1 for all")
	metadataCmd.Flags().Bool("processed", false, "only parameters with data level 1")
}
