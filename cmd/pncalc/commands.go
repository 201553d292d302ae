package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giygas/pn-calculator/calculator"
	"github.com/giygas/pn-calculator/calculator/entities"
	"github.com/giygas/pn-calculator/display"
	"github.com/giygas/pn-calculator/document"
	"github.com/giygas/pn-calculator/metrics"
	"github.com/giygas/pn-calculator/validation"
)

const sourceCLI = "cli"

var errNoInput = errors.New("an input file is required (-f, use - for stdin)")

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pncalc",
		Short:         "Parenteral nutrition calculator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("locale", "it", "Number formatting locale")

	rootCmd.AddCommand(computeCmd())
	rootCmd.AddCommand(blendCmd())
	rootCmd.AddCommand(drugCmd())
	rootCmd.AddCommand(sheetCmd())

	return rootCmd
}

func computeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute the volumes of a prescription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			asJSON, _ := cmd.Flags().GetBool("json")

			var n entities.NutritionData
			if err := readJSON(cmd, file, &n); err != nil {
				return err
			}
			if err := validation.NewDataValidator().ValidateNutrition(&n); err != nil {
				return err
			}
			n.Normalize()

			summary := calculator.Compute(n)
			metrics.Computations.WithLabelValues(sourceCLI).Inc()

			f := formatter(cmd)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"summary": summary,
					"display": f.Summarize(summary),
				})
			}
			printSummary(cmd.OutOrStdout(), f.Summarize(summary))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "Prescription JSON file (- for stdin)")
	cmd.Flags().Bool("json", false, "Print the raw and formatted summary as JSON")
	return cmd
}

func blendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blend <percent> <volume>",
		Short: "Split a glucose volume over the two bracketing stocks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			percent, err := parseNumber("percent", args[0])
			if err != nil {
				return err
			}
			volume, err := parseNumber("volume", args[1])
			if err != nil {
				return err
			}

			blend := calculator.ResolveGlucoseBlend(percent, volume)
			mix := formatter(cmd).GlucoseMix(blend)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-16s %s\n", mix.L1, mix.P1)
			fmt.Fprintf(out, "%-16s %s\n", mix.L2, mix.P2)
			if !blend.Defined() {
				fmt.Fprintf(out, "(%s)\n", blend.Status)
			}
			return nil
		},
	}
}

func drugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drug <id> <dose>",
		Short: "Titrate one infusion drug",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ok := calculator.LookupDrug(entities.DrugID(args[0]))
			if !ok {
				return fmt.Errorf("%w: %s (known: %s)", calculator.ErrUnknownDrug, args[0], knownDrugs())
			}
			dose, err := parseNumber("dose", args[1])
			if err != nil {
				return err
			}
			speed, _ := cmd.Flags().GetFloat64("speed")
			if speed < 0 || math.IsNaN(speed) {
				return fmt.Errorf("invalid speed: %v", speed)
			}

			c := calculator.ComputeDrug(d, entities.DrugOrder{Dose: entities.Quantity(dose), Speed: speed})
			f := formatter(cmd)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s %s\n", d.Label, f.Simple(c.Dose), d.Unit)
			fmt.Fprintf(out, "Prelevare: %s\n", f.Ml(c.PrelevareMl))
			fmt.Fprintf(out, "Porta a:   %s\n", f.DilutionLabel(c.SpeedMlPerHour))
			return nil
		},
	}
	cmd.Flags().Float64("speed", entities.DefaultSpeed, "Infusion speed in ml/h")
	return cmd
}

func sheetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Render the printable sheet of a patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			charset, _ := cmd.Flags().GetString("charset")

			var p entities.Patient
			if err := readJSON(cmd, file, &p); err != nil {
				return err
			}
			if err := validation.NewDataValidator().ValidatePatient(&p); err != nil {
				return err
			}
			p.Nutrition.Normalize()

			sheet := document.Build(p, formatter(cmd))
			switch strings.ToLower(charset) {
			case "utf-8", "utf8":
				return document.Render(cmd.OutOrStdout(), sheet)
			case "windows-1252", "cp1252":
				return document.RenderWindows1252(cmd.OutOrStdout(), sheet)
			default:
				return fmt.Errorf("unsupported charset %q", charset)
			}
		},
	}
	cmd.Flags().StringP("file", "f", "", "Patient JSON file (- for stdin)")
	cmd.Flags().String("charset", "utf-8", "Output charset: utf-8 or windows-1252")
	return cmd
}

func formatter(cmd *cobra.Command) *display.Formatter {
	locale, _ := cmd.Flags().GetString("locale")
	return display.NewFormatter(display.ParseLocale(locale))
}

// readJSON decodes the file named by the -f flag, or stdin for "-"
func readJSON(cmd *cobra.Command, file string, dst any) error {
	var r io.Reader
	switch file {
	case "":
		return errNoInput
	case "-":
		r = cmd.InOrStdin()
	default:
		fh, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer fh.Close()
		r = fh
	}

	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", file, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseNumber accepts a comma or a dot as decimal separator
func parseNumber(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: %q is not a number", name, s)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: %q is negative", name, s)
	}
	return v, nil
}

func knownDrugs() string {
	ids := make([]string, 0, len(entities.DrugIDs))
	for _, id := range entities.DrugIDs {
		ids = append(ids, string(id))
	}
	return strings.Join(ids, ", ")
}

func printSummary(w io.Writer, s display.Summary) {
	for _, c := range s.Components {
		fmt.Fprintf(w, "%-22s %s\n", c.Label, c.Volume)
	}
	fmt.Fprintf(w, "%-22s %s\n", "Altro", s.Other)
	fmt.Fprintf(w, "%-22s %s\n", "Altro 2", s.Other2)
	fmt.Fprintf(w, "%-22s %s\n", "Glucosio", s.Glucose)
	fmt.Fprintf(w, "  %-20s %s\n", s.GlucoseMix.L1, s.GlucoseMix.P1)
	fmt.Fprintf(w, "  %-20s %s\n", s.GlucoseMix.L2, s.GlucoseMix.P2)
	fmt.Fprintf(w, "%-22s %s\n", "Totale", s.Total)
	fmt.Fprintf(w, "%-22s %s\n", "Velocità (ml/h)", s.FlowRate)

	for _, d := range s.Drugs {
		fmt.Fprintf(w, "%-22s prelevare %s, porta a %s\n", d.Label, d.Prelevare, d.PortaA)
	}
}
