package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"

	"github.com/edp1096/toy-strata/internal/store"
	"github.com/edp1096/toy-strata/pkg/calculator"
	"github.com/edp1096/toy-strata/pkg/event"
	"github.com/edp1096/toy-strata/pkg/motion"
	"github.com/edp1096/toy-strata/pkg/util"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the strain-compatible response of a soil profile",
		Long: `Build the motion, profile and calculator described by the config,
synthesize the input spectrum and iterate until the layer properties are
compatible with the computed strains.

Examples:
  strata run --config site.yaml
  strata run --config site.yaml --progress --db runs.db
  strata run --config site.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
				cfg.Output.DBPath = dbPath
			}
			name, _ := cmd.Flags().GetString("name")
			showProgress, _ := cmd.Flags().GetBool("progress")
			jsonOut, _ := cmd.Flags().GetBool("json")

			logger, decisions := newLoggers(cfg)
			defer decisions.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			m, err := buildMotion(cfg.Motion)
			if err != nil {
				return fmt.Errorf("motion: %w", err)
			}
			m.SetLogger(logger)
			if err := m.Calculate(ctx); err != nil {
				return err
			}

			profile, err := buildProfile(cfg.Profile)
			if err != nil {
				return fmt.Errorf("profile: %w", err)
			}

			calc, err := buildCalculator(cfg.Calculator)
			if err != nil {
				return fmt.Errorf("calculator: %w", err)
			}
			calc.SetLogger(logger, decisions)

			if showProgress && !jsonOut {
				bar := startProgress(calc)
				defer func() {
					bar.Set(bar.Total)
					uiprogress.Stop()
				}()
			}

			res, err := calc.Run(ctx, m, profile)
			if err != nil {
				return err
			}

			run, err := newStoreRun(name, m, calc, res)
			if err != nil {
				return err
			}
			if cfg.Output.DBPath != "" {
				if err := saveRun(ctx, cfg.Output.DBPath, run); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			printRun(out, run)
			return nil
		},
	}

	cmd.Flags().String("db", "", "Save the run to this SQLite database")
	cmd.Flags().String("name", "", "Run name (defaults to the motion name)")
	cmd.Flags().Bool("progress", false, "Show an iteration progress bar")

	return cmd
}

func startProgress(calc calculator.Calculator) *uiprogress.Bar {
	uiprogress.Start()
	bar := uiprogress.AddBar(calc.MaxIterations()).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("iteration %2d/%d", b.Current(), b.Total)
	})
	calc.Subscribe(func(ev event.Event) {
		if ev.Property == "iteration" {
			if iter, ok := ev.Value.(int); ok {
				bar.Set(iter)
			}
		}
	})
	return bar
}

func newStoreRun(name string, m motion.Motion, calc calculator.Calculator, res *calculator.Result) (*store.Run, error) {
	motionJSON, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding motion: %w", err)
	}
	calcJSON, err := json.Marshal(calc)
	if err != nil {
		return nil, fmt.Errorf("encoding calculator: %w", err)
	}
	if name == "" {
		name = m.Name()
	}

	run := &store.Run{
		Name:           name,
		MotionKind:     m.Kind().String(),
		CalculatorKind: calc.Kind().String(),
		Motion:         motionJSON,
		Calculator:     calcJSON,
		Converged:      res.Converged,
		Iterations:     res.Iterations,
		MaxError:       res.MaxError,
		InputPGA:       m.PGA(),
		InputPGV:       m.PGV(),
		Duration:       m.Duration(),
		SurfacePGA:     res.SurfacePGA,
	}
	for _, h := range res.History {
		run.History = append(run.History, store.Iteration{Iteration: h.Iteration, MaxError: h.MaxError})
	}
	for _, l := range res.Layers {
		run.Layers = append(run.Layers, store.Layer{
			Depth:         l.Depth,
			Thickness:     l.Thickness,
			ShearVel:      l.ShearVel,
			InitialStrain: l.InitialStrain,
			EffStrain:     l.EffStrain,
			MaxStrain:     l.MaxStrain,
			ShearMod:      l.ShearMod,
			ModulusRatio:  l.ModulusRatio,
			Damping:       l.Damping,
		})
	}

	input := m.FourierAcc()
	surface := res.SurfaceFourierAcc(input)
	for i, f := range res.Freq {
		if i >= len(input) || i >= len(surface) {
			break
		}
		run.Spectrum = append(run.Spectrum, store.SpectrumPoint{Freq: f, InputFAS: input[i], SurfaceFAS: surface[i]})
	}
	return run, nil
}

func saveRun(ctx context.Context, dbPath string, run *store.Run) error {
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SaveRun(ctx, run)
}

func printRun(w io.Writer, run *store.Run) {
	fmt.Fprintf(w, "%s\n", run.Name)
	if run.ID != "" {
		fmt.Fprintf(w, "  id:          %s\n", run.ID)
	}
	fmt.Fprintf(w, "  calculator:  %s\n", run.CalculatorKind)
	fmt.Fprintf(w, "  input PGA:   %s g\n", util.FormatMagnitude(run.InputPGA))
	fmt.Fprintf(w, "  input PGV:   %s cm/s\n", util.FormatMagnitude(run.InputPGV))
	fmt.Fprintf(w, "  duration:    %s s\n", util.FormatMagnitude(run.Duration))
	fmt.Fprintf(w, "  surface PGA: %s g\n", util.FormatMagnitude(run.SurfacePGA))

	status := "converged"
	if !run.Converged {
		status = "did not converge"
	}
	fmt.Fprintf(w, "  %s after %d iteration(s), max error %.3f%%\n\n", status, run.Iterations, run.MaxError)

	fmt.Fprintf(w, "%8s %8s %8s %11s %11s %14s %8s %8s\n",
		"depth", "thick", "vs", "eff strain", "max strain", "G", "G/Gmax", "D (%)")
	for _, l := range run.Layers {
		fmt.Fprintf(w, "%8.2f %8.2f %8.1f %11s %11s %14s %8.3f %8.2f\n",
			l.Depth, l.Thickness, l.ShearVel,
			util.FormatStrain(l.EffStrain), util.FormatStrain(l.MaxStrain),
			util.FormatValueFactor(l.ShearMod*1e3, "Pa"), l.ModulusRatio, l.Damping)
	}
}
