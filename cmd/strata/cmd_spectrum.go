package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edp1096/toy-strata/pkg/util"
)

func newSpectrumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spectrum",
		Short: "Print the input Fourier amplitude spectrum",
		Long: `Synthesize the input motion described by the config and print its
Fourier amplitude spectrum with the random vibration theory peaks.

Examples:
  strata spectrum --config site.yaml
  strata spectrum --config site.yaml --every 16`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			every, _ := cmd.Flags().GetInt("every")
			if every < 1 {
				every = 1
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			logger, decisions := newLoggers(cfg)
			defer decisions.Close()

			m, err := buildMotion(cfg.Motion)
			if err != nil {
				return fmt.Errorf("motion: %w", err)
			}
			m.SetLogger(logger)
			if err := m.Calculate(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"name":       m.Name(),
					"pga":        m.PGA(),
					"pgv":        m.PGV(),
					"duration":   m.Duration(),
					"freq":       m.Freq(),
					"fourierAcc": m.FourierAcc(),
				})
			}

			fmt.Fprintf(out, "%s\n", m.Name())
			fmt.Fprintf(out, "  PGA:      %s g\n", util.FormatMagnitude(m.PGA()))
			fmt.Fprintf(out, "  PGV:      %s cm/s\n", util.FormatMagnitude(m.PGV()))
			fmt.Fprintf(out, "  duration: %s s\n\n", util.FormatMagnitude(m.Duration()))

			fas := m.FourierAcc()
			for i, f := range m.Freq() {
				if i%every != 0 && i != len(fas)-1 {
					continue
				}
				fmt.Fprintf(out, "%s  %12.4e g-s\n", util.FormatFrequency(f), fas[i])
			}
			return nil
		},
	}

	cmd.Flags().Int("every", 1, "Print every n-th frequency")

	return cmd
}
