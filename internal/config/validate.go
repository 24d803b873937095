package config

import (
	"errors"
	"fmt"
)

// MinDPI and MaxDPI bound the rasterization resolution.
const (
	MinDPI = 72
	MaxDPI = 600
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateConversion() error {
	if c.Conversion.DPI < MinDPI || c.Conversion.DPI > MaxDPI {
		return fmt.Errorf("conversion.dpi must be between %d and %d", MinDPI, MaxDPI)
	}
	switch c.Conversion.OutputFormat {
	case "png", "jpeg":
	default:
		return fmt.Errorf("conversion.output_format must be png or jpeg, got %q", c.Conversion.OutputFormat)
	}
	if c.Conversion.JPEGQuality < 1 || c.Conversion.JPEGQuality > 100 {
		return errors.New("conversion.jpeg_quality must be between 1 and 100")
	}
	if c.Conversion.MaxCanvasPixels < 1_000_000 {
		return errors.New("conversion.max_canvas_pixels must be at least 1000000")
	}
	return nil
}

func (c *Config) validateTools() error {
	return ensurePositiveMap(map[string]int{
		"tools.probe_timeout":           c.Tools.ProbeTimeout,
		"tools.render_timeout":          c.Tools.RenderTimeout,
		"tools.render_timeout_per_page": c.Tools.RenderTimeoutPerPage,
		"tools.office_convert_timeout":  c.Tools.OfficeConvertTimeout,
	})
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.Workers < 0 {
		return errors.New("scheduler.workers must not be negative")
	}
	switch c.Scheduler.SubmitPolicy {
	case "block", "reject":
	default:
		return fmt.Errorf("scheduler.submit_policy must be block or reject, got %q", c.Scheduler.SubmitPolicy)
	}
	return ensurePositiveMap(map[string]int{
		"scheduler.queue_depth":             c.Scheduler.QueueDepth,
		"scheduler.submit_wait_seconds":     c.Scheduler.SubmitWaitSeconds,
		"scheduler.job_memory_estimate_mib": c.Scheduler.JobMemoryEstimateMiB,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
