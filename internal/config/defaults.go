package config

const (
	defaultOutputDir = "~/longimage/output"
	defaultWorkDir   = "~/.local/share/longimage/work"
	defaultLogDir    = "~/.local/share/longimage/logs"
	defaultCacheDir  = "~/.cache/longimage"

	defaultDPI             = 200
	defaultOutputFormat    = "png"
	defaultJPEGQuality     = 85
	defaultMaxCanvasPixels = int64(500_000_000)

	defaultPdftoppmBinary       = "pdftoppm"
	defaultPdfinfoBinary        = "pdfinfo"
	defaultSofficeBinary        = "soffice"
	defaultProbeTimeout         = 30
	defaultRenderTimeout        = 60
	defaultRenderTimeoutPerPage = 10
	defaultOfficeConvertTimeout = 120

	defaultQueueDepth           = 64
	defaultSubmitPolicy         = "block"
	defaultSubmitWaitSeconds    = 30
	defaultJobMemoryEstimateMiB = 512

	defaultCacheMaxGiB     = 20
	defaultCacheMaxAgeDays = 30

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
		},
		Conversion: Conversion{
			DPI:             defaultDPI,
			OutputFormat:    defaultOutputFormat,
			JPEGQuality:     defaultJPEGQuality,
			MaxCanvasPixels: defaultMaxCanvasPixels,
		},
		Tools: Tools{
			PdftoppmBinary:       defaultPdftoppmBinary,
			PdfinfoBinary:        defaultPdfinfoBinary,
			SofficeBinary:        defaultSofficeBinary,
			ProbeTimeout:         defaultProbeTimeout,
			RenderTimeout:        defaultRenderTimeout,
			RenderTimeoutPerPage: defaultRenderTimeoutPerPage,
			OfficeConvertTimeout: defaultOfficeConvertTimeout,
		},
		Scheduler: Scheduler{
			Workers:              0, // auto: derived from CPU and memory headroom
			QueueDepth:           defaultQueueDepth,
			SubmitPolicy:         defaultSubmitPolicy,
			SubmitWaitSeconds:    defaultSubmitWaitSeconds,
			JobMemoryEstimateMiB: defaultJobMemoryEstimateMiB,
		},
		Cache: Cache{
			Enabled:    true,
			Dir:        defaultCacheDir,
			MaxGiB:     defaultCacheMaxGiB,
			MaxAgeDays: defaultCacheMaxAgeDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
