package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"longimage/internal/job"
	"longimage/internal/pipeline"
	"longimage/internal/services"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		dpi     int
		format  string
		quality int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Convert documents into long images",
		Long: `Convert renders each input document into a single tall image in the
configured output directory. PDFs are rasterized with Poppler, office
documents are first converted with LibreOffice, and raster images are
scaled directly. Identical inputs with identical settings are rendered
once and served from the cache afterwards.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			options, err := buildOptions(cfg.Conversion.DPI, cfg.Conversion.OutputFormat, cfg.Conversion.JPEGQuality, dpi, format, quality)
			if err != nil {
				return err
			}

			logger, err := ctx.buildLogger(verbose)
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			defer p.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-runCtx.Done()
				p.CancelAll()
			}()

			p.Start(runCtx)
			out := cmd.OutOrStdout()
			observer := newConsoleObserver(out)
			p.Attach(observer)

			var handles []*job.Handle
			failed := 0
			for _, arg := range args {
				handle, err := p.Submit(runCtx, arg, options)
				if err != nil {
					if errors.Is(err, services.ErrBusy) {
						fmt.Fprintf(out, "%s: pipeline is saturated, submission rejected\n", filepath.Base(arg))
						failed++
						continue
					}
					return err
				}
				handles = append(handles, handle)
			}

			cancelled := 0
			for _, handle := range handles {
				final, err := handle.Wait(context.Background())
				if err != nil {
					return err
				}
				switch final.Status {
				case job.StatusDone:
				case job.StatusCancelled:
					cancelled++
				default:
					failed++
				}
			}

			if cancelled > 0 {
				fmt.Fprintf(out, "%d conversion(s) cancelled\n", cancelled)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d conversions failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&dpi, "dpi", 0, "Render resolution in DPI (default from config)")
	cmd.Flags().StringVar(&format, "format", "", "Output format, png or jpeg (default from config)")
	cmd.Flags().IntVar(&quality, "quality", 0, "JPEG quality 1-100 (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Mirror debug logs to stderr")
	return cmd
}

// buildOptions layers CLI flags over the configured conversion
// defaults. A zero flag value means the flag was not given.
func buildOptions(cfgDPI int, cfgFormat string, cfgQuality, flagDPI int, flagFormat string, flagQuality int) (job.Options, error) {
	options := job.Options{
		DPI:         cfgDPI,
		JPEGQuality: cfgQuality,
	}
	parsed, ok := job.ParseFormat(cfgFormat)
	if !ok {
		return job.Options{}, fmt.Errorf("configured output format %q is not supported", cfgFormat)
	}
	options.Format = parsed

	if flagDPI != 0 {
		if flagDPI < job.MinDPI || flagDPI > job.MaxDPI {
			return job.Options{}, fmt.Errorf("dpi must be between %d and %d", job.MinDPI, job.MaxDPI)
		}
		options.DPI = flagDPI
	}
	if flagFormat != "" {
		parsed, ok := job.ParseFormat(flagFormat)
		if !ok {
			return job.Options{}, fmt.Errorf("format %q is not supported (use png or jpeg)", flagFormat)
		}
		options.Format = parsed
	}
	if flagQuality != 0 {
		if flagQuality < 1 || flagQuality > 100 {
			return job.Options{}, errors.New("quality must be between 1 and 100")
		}
		options.JPEGQuality = flagQuality
	}
	return options.Normalized(), nil
}
