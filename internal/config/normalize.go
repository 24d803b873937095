package config

import "strings"

// normalize expands paths, lowercases enum-ish fields, and backfills zero
// values with defaults so later validation only has to check ranges.
func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(valueOr(c.Paths.OutputDir, defaultOutputDir)); err != nil {
		return err
	}
	if c.Paths.WorkDir, err = expandPath(valueOr(c.Paths.WorkDir, defaultWorkDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(valueOr(c.Paths.LogDir, defaultLogDir)); err != nil {
		return err
	}
	if c.Cache.Dir, err = expandPath(valueOr(c.Cache.Dir, defaultCacheDir)); err != nil {
		return err
	}

	c.Conversion.OutputFormat = strings.ToLower(strings.TrimSpace(c.Conversion.OutputFormat))
	if c.Conversion.OutputFormat == "jpg" {
		c.Conversion.OutputFormat = "jpeg"
	}
	if c.Conversion.OutputFormat == "" {
		c.Conversion.OutputFormat = defaultOutputFormat
	}
	if c.Conversion.DPI == 0 {
		c.Conversion.DPI = defaultDPI
	}
	if c.Conversion.JPEGQuality == 0 {
		c.Conversion.JPEGQuality = defaultJPEGQuality
	}
	if c.Conversion.MaxCanvasPixels == 0 {
		c.Conversion.MaxCanvasPixels = defaultMaxCanvasPixels
	}

	c.Tools.PdftoppmBinary = valueOr(strings.TrimSpace(c.Tools.PdftoppmBinary), defaultPdftoppmBinary)
	c.Tools.PdfinfoBinary = valueOr(strings.TrimSpace(c.Tools.PdfinfoBinary), defaultPdfinfoBinary)
	c.Tools.SofficeBinary = valueOr(strings.TrimSpace(c.Tools.SofficeBinary), defaultSofficeBinary)
	if c.Tools.ProbeTimeout == 0 {
		c.Tools.ProbeTimeout = defaultProbeTimeout
	}
	if c.Tools.RenderTimeout == 0 {
		c.Tools.RenderTimeout = defaultRenderTimeout
	}
	if c.Tools.RenderTimeoutPerPage == 0 {
		c.Tools.RenderTimeoutPerPage = defaultRenderTimeoutPerPage
	}
	if c.Tools.OfficeConvertTimeout == 0 {
		c.Tools.OfficeConvertTimeout = defaultOfficeConvertTimeout
	}

	c.Scheduler.SubmitPolicy = strings.ToLower(strings.TrimSpace(c.Scheduler.SubmitPolicy))
	if c.Scheduler.SubmitPolicy == "" {
		c.Scheduler.SubmitPolicy = defaultSubmitPolicy
	}
	if c.Scheduler.QueueDepth == 0 {
		c.Scheduler.QueueDepth = defaultQueueDepth
	}
	if c.Scheduler.SubmitWaitSeconds == 0 {
		c.Scheduler.SubmitWaitSeconds = defaultSubmitWaitSeconds
	}
	if c.Scheduler.JobMemoryEstimateMiB == 0 {
		c.Scheduler.JobMemoryEstimateMiB = defaultJobMemoryEstimateMiB
	}

	c.Logging.Format = valueOr(strings.ToLower(strings.TrimSpace(c.Logging.Format)), defaultLogFormat)
	c.Logging.Level = valueOr(strings.ToLower(strings.TrimSpace(c.Logging.Level)), defaultLogLevel)

	if c.Cache.MaxGiB == 0 {
		c.Cache.MaxGiB = defaultCacheMaxGiB
	}
	if c.Cache.MaxAgeDays == 0 {
		c.Cache.MaxAgeDays = defaultCacheMaxAgeDays
	}
	return nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
