package main

import (
	"encoding/json"
	"fmt"
	stdio "io"
	"math"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"edge-detection-pipeline/internal/algorithms"
	"edge-detection-pipeline/internal/config"
	"edge-detection-pipeline/internal/core"
	"edge-detection-pipeline/internal/frame"
	"edge-detection-pipeline/internal/io"
	"edge-detection-pipeline/internal/metrics"
	"edge-detection-pipeline/internal/native"
)

// overrides are per-invocation changes on top of the configuration file
type overrides struct {
	grayscale bool
	edges     bool
	low       float64
	high      float64
	radius    int
	smoothing string
	workers   int
	preview   int
}

func (o *overrides) register(fs *pflag.FlagSet) {
	d := core.DefaultProcessingConfig()
	fs.BoolVar(&o.grayscale, "grayscale", d.GrayscaleEnabled, "Convert to grayscale")
	fs.BoolVar(&o.edges, "edges", d.EdgeDetectionEnabled, "Run smoothing, gradient and classification")
	fs.Float64Var(&o.low, "low", d.LowThreshold, "Low threshold on gradient magnitude")
	fs.Float64Var(&o.high, "high", d.HighThreshold, "High threshold on gradient magnitude")
	fs.IntVar(&o.radius, "radius", d.BlurRadius, "Smoothing radius, 0 disables smoothing")
	fs.StringVar(&o.smoothing, "smoothing", string(d.Smoothing), "Smoothing policy: uniform or gaussian")
	fs.IntVar(&o.workers, "workers", 0, "Row workers per stage, 0 uses all CPUs")
	fs.IntVar(&o.preview, "preview", 0, "Downscale the input so neither side exceeds this size")
}

// apply returns the file's processing config with every changed flag on top
func (o *overrides) apply(fs *pflag.FlagSet, base core.ProcessingConfig) (core.ProcessingConfig, error) {
	cfg := base
	if fs.Changed("grayscale") {
		cfg = cfg.WithGrayscale(o.grayscale)
	}
	if fs.Changed("edges") {
		cfg = cfg.WithEdgeDetection(o.edges)
	}
	if fs.Changed("low") || fs.Changed("high") {
		low, high := cfg.LowThreshold, cfg.HighThreshold
		if fs.Changed("low") {
			low = o.low
		}
		if fs.Changed("high") {
			high = o.high
		}
		cfg = cfg.WithThresholds(low, high)
	}
	if fs.Changed("radius") {
		cfg = cfg.WithBlurRadius(o.radius)
	}
	if fs.Changed("smoothing") {
		policy, err := algorithms.ParseSmoothingPolicy(o.smoothing)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.WithSmoothing(policy)
	}
	return cfg, cfg.Validate()
}

func (a *app) processingConfig(cmd *cobra.Command, o *overrides) (core.ProcessingConfig, error) {
	base, err := a.settings.ProcessingConfig()
	if err != nil {
		return base, err
	}
	return o.apply(cmd.Flags(), base)
}

func (a *app) newPipeline(cmd *cobra.Command, o *overrides, logger logrus.FieldLogger, opts ...core.Option) *core.Pipeline {
	opts = append(a.settings.PipelineOptions(), opts...)
	if cmd.Flags().Changed("workers") {
		opts = append(opts, core.WithWorkers(o.workers))
	}
	return core.NewPipeline(logger, opts...)
}

func (a *app) load(path string, o *overrides) (*frame.PixelBuffer, error) {
	loader := io.NewImageLoader(a.logger)
	if o.preview > 0 {
		return loader.LoadPreview(path, o.preview)
	}
	return loader.LoadImage(path)
}

func (a *app) processCommand() *cobra.Command {
	o := &overrides{}
	cmd := &cobra.Command{
		Use:   "process <input> <output>",
		Short: "Run the pipeline on an image file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.processingConfig(cmd, o)
			if err != nil {
				return err
			}

			src, err := a.load(args[0], o)
			if err != nil {
				return err
			}

			pipeline := a.newPipeline(cmd, o, a.logger)
			out, err := pipeline.Process(src, cfg)
			if err != nil {
				return err
			}

			if err := io.NewImageLoader(a.logger).SaveImage(out, args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s) in %.2f ms\n",
				args[0], args[1], strings.Join(cfg.Plan(), " > "), pipeline.ElapsedMillis())
			return nil
		},
	}
	o.register(cmd.Flags())
	return cmd
}

func (a *app) compareCommand() *cobra.Command {
	o := &overrides{}
	var mode, nativeOut string
	cmd := &cobra.Command{
		Use:   "compare <input>",
		Short: "Compare the edge map against the OpenCV pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.processingConfig(cmd, o)
			if err != nil {
				return err
			}
			m, err := native.ParseMode(mode)
			if err != nil {
				return err
			}

			src, err := a.load(args[0], o)
			if err != nil {
				return err
			}

			pipeline := a.newPipeline(cmd, o, a.logger)
			ours, err := pipeline.Process(src, cfg)
			if err != nil {
				return err
			}

			reference := native.NewPipeline(m, a.logger)
			theirs, err := reference.Process(src, cfg)
			if err != nil {
				return fmt.Errorf("native pipeline: %w", err)
			}

			if nativeOut != "" {
				if err := io.NewImageLoader(a.logger).SaveImage(theirs, nativeOut); err != nil {
					return err
				}
			}

			report, err := metrics.NewEvaluator().CompareEdgeMaps(theirs, ours)
			if err != nil {
				return err
			}

			a.logger.WithFields(logrus.Fields{
				"pipeline_ms": pipeline.ElapsedMillis(),
				"native_ms":   float64(reference.Elapsed().Microseconds()) / 1000,
				"mode":        m,
			}).Info("Comparison completed")

			return writeJSON(cmd, struct {
				Mode   native.Mode    `json:"mode"`
				Plan   []string       `json:"plan"`
				Report metrics.Report `json:"report"`
			}{m, cfg.Plan(), sanitizeReport(report)})
		},
	}
	o.register(cmd.Flags())
	cmd.Flags().StringVar(&mode, "mode", string(native.ModeSobel), "Native edge mode: sobel or canny")
	cmd.Flags().StringVar(&nativeOut, "native-out", "", "Also save the native edge map to this file")
	return cmd
}

func (a *app) benchCommand() *cobra.Command {
	o := &overrides{}
	var runs int
	cmd := &cobra.Command{
		Use:   "bench <input>",
		Short: "Time grayscale only against the full edge pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if runs <= 0 {
				return fmt.Errorf("runs must be positive, got %d", runs)
			}
			cfg, err := a.processingConfig(cmd, o)
			if err != nil {
				return err
			}

			src, err := a.load(args[0], o)
			if err != nil {
				return err
			}

			quiet := logrus.New()
			quiet.SetOutput(a.logger.Out)
			quiet.SetFormatter(a.logger.Formatter)
			quiet.SetLevel(logrus.WarnLevel)

			recorder := core.NewRecorder(a.logger, 2*runs)
			pipeline := a.newPipeline(cmd, o, quiet, core.WithRecorder(recorder))

			grayOnly := cfg.WithGrayscale(true).WithEdgeDetection(false)
			full := cfg.WithEdgeDetection(true)
			for i := 0; i < runs; i++ {
				for _, c := range []core.ProcessingConfig{grayOnly, full} {
					if _, err := pipeline.Process(src, c); err != nil {
						return err
					}
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%dx%d, %d runs, %d workers\n\n", src.Width, src.Height, runs, pipeline.Workers())
			if err := printSummaries(out, "plan", recorder.Durations()); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return printSummaries(out, "stage", recorder.StageDurations())
		},
	}
	o.register(cmd.Flags())
	cmd.Flags().IntVarP(&runs, "runs", "n", 10, "Runs per configuration")
	return cmd
}

func (a *app) watchCommand() *cobra.Command {
	o := &overrides{}
	cmd := &cobra.Command{
		Use:   "watch <input> <output>",
		Short: "Re-process the input whenever the configuration file changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.configPath == "" {
				return fmt.Errorf("watch requires --config")
			}
			cfg, err := a.processingConfig(cmd, o)
			if err != nil {
				return err
			}

			src, err := a.load(args[0], o)
			if err != nil {
				return err
			}

			data := core.NewImageData()
			if err := data.SetOriginal(src, args[0], "file"); err != nil {
				return err
			}

			loader := io.NewImageLoader(a.logger)
			session := core.NewSession(data, a.newPipeline(cmd, o, a.logger), a.logger)
			save := func(cfg core.ProcessingConfig) {
				out, err := session.Apply(cfg)
				if err != nil {
					return
				}
				if err := loader.SaveImage(out, args[1]); err != nil {
					a.logger.WithError(err).Error("Failed to save processed frame")
				}
			}
			save(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return config.Watch(ctx, a.configPath, a.logger, func(_ config.File, next core.ProcessingConfig) {
				next, err := o.apply(cmd.Flags(), next)
				if err != nil {
					a.logger.WithError(err).Warn("Flag overrides invalid for new configuration")
					return
				}
				save(next)
			})
		},
	}
	o.register(cmd.Flags())
	return cmd
}

func (a *app) cameraCommand() *cobra.Command {
	o := &overrides{}
	var device int
	cmd := &cobra.Command{
		Use:   "camera <output>",
		Short: "Capture one camera frame and run the pipeline on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.processingConfig(cmd, o)
			if err != nil {
				return err
			}

			camera, err := native.OpenCamera(device, a.logger)
			if err != nil {
				return err
			}
			defer camera.Close()

			src, err := camera.Read()
			if err != nil {
				return err
			}

			out, err := a.newPipeline(cmd, o, a.logger).Process(src, cfg)
			if err != nil {
				return err
			}
			return io.NewImageLoader(a.logger).SaveImage(out, args[0])
		},
	}
	o.register(cmd.Flags())
	cmd.Flags().IntVar(&device, "device", 0, "Video capture device index")
	return cmd
}

func (a *app) paramsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "params",
		Short: "List pipeline stages and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stages := algorithms.GetAllStages()
			if asJSON {
				type stageDoc struct {
					Name        string                     `json:"name"`
					Description string                     `json:"description"`
					Parameters  []algorithms.ParameterInfo `json:"parameters"`
				}
				return writeJSON(cmd, lo.Map(stages, func(s algorithms.Stage, _ int) stageDoc {
					return stageDoc{s.GetName(), s.GetDescription(), s.GetParameterInfo()}
				}))
			}

			out := cmd.OutOrStdout()
			for _, s := range stages {
				fmt.Fprintf(out, "%s: %s\n", s.GetName(), s.GetDescription())
				for _, p := range s.GetParameterInfo() {
					fmt.Fprintf(out, "  --%-22s %-6s default %v  %s\n",
						strings.ReplaceAll(p.Name, "_", "-"), p.Type, p.Default, p.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// printSummaries writes one timing line per key, keys in sorted order
func printSummaries(w stdio.Writer, label string, groups map[string][]time.Duration) error {
	keys := lo.Keys(groups)
	slices.Sort(keys)

	width := lo.Max(lo.Map(keys, func(k string, _ int) int { return len(k) }))
	width = max(width, len(label))

	fmt.Fprintf(w, "%-*s %5s %9s %9s %9s %9s\n", width, label, "runs", "mean", "std", "p50", "p90")
	for _, key := range keys {
		s, err := metrics.SummarizeTimings(groups[key])
		if err != nil {
			return fmt.Errorf("%s %s: %w", label, key, err)
		}
		fmt.Fprintf(w, "%-*s %5d %7.2fms %7.2fms %7.2fms %7.2fms\n",
			width, key, s.Runs, s.MeanMs, s.StdMs, s.P50Ms, s.P90Ms)
	}
	return nil
}

// sanitizeReport replaces +Inf, which JSON cannot carry, with -1
func sanitizeReport(r metrics.Report) metrics.Report {
	r.Metrics = lo.MapValues(r.Metrics, func(v float64, _ string) float64 {
		return lo.Ternary(math.IsInf(v, 0), -1, v)
	})
	return r
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
