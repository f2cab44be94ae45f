package config

const (
	defaultCaseDir        = "~/.local/share/forager/case"
	defaultLogDir         = "~/.local/share/forager/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultMaxReportBytes = 4 << 30
	defaultParallelItems  = 2
	defaultAlertStatus    = "A"
)

// Post-processor names accepted in extraction.post_processors, in their
// default execution order.
const (
	PostProcessorIPAddress    = "ip-address"
	PostProcessorUserAccount  = "user-account"
	PostProcessorSearchedText = "searched-text"
	PostProcessorKFFAlert     = "kff-alert"
)

// DefaultPostProcessors returns the default post-processing chain.
func DefaultPostProcessors() []string {
	return []string{
		PostProcessorIPAddress,
		PostProcessorUserAccount,
		PostProcessorSearchedText,
		PostProcessorKFFAlert,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CaseDir: defaultCaseDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Extraction: Extraction{
			PostProcessors: DefaultPostProcessors(),
			MaxReportBytes: defaultMaxReportBytes,
			ParallelItems:  defaultParallelItems,
		},
		KFF: KFF{
			AlertStatuses: []string{defaultAlertStatus},
		},
	}
}
