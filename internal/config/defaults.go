package config

const (
	defaultDataDir             = "~/.local/share/aircheck"
	defaultStagingDir          = "~/.local/share/aircheck/staging"
	defaultArtifactDir         = "~/.local/share/aircheck/artifacts"
	defaultLogDir              = "~/.local/share/aircheck/logs"
	defaultAPIBind             = "127.0.0.1:7519"
	defaultMaxConcurrentJobs   = 2
	defaultJobTimeoutSeconds   = 1800
	defaultAudioMatchThreshold = 0.99
	defaultAudioSampleRate     = 16000
	defaultSegmentSeconds      = 2.0
	defaultExtendedTimeout     = 600
	defaultRetentionDays       = 14
	defaultMaxTotalMiB         = 2048
	defaultQueuePollInterval   = 5
	defaultErrorRetryInterval  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			StagingDir:  defaultStagingDir,
			ArtifactDir: defaultArtifactDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Comparison: Comparison{
			MaxConcurrentJobs:   defaultMaxConcurrentJobs,
			JobTimeoutSeconds:   defaultJobTimeoutSeconds,
			FFmpegBinary:        "ffmpeg",
			FFprobeBinary:       "ffprobe",
			AudioMatchThreshold: defaultAudioMatchThreshold,
			AudioSampleRate:     defaultAudioSampleRate,
			SegmentSeconds:      defaultSegmentSeconds,
		},
		ExtendedAudio: ExtendedAudio{
			TimeoutSeconds: defaultExtendedTimeout,
		},
		Artifacts: Artifacts{
			RetentionDays: defaultRetentionDays,
			MaxTotalMiB:   defaultMaxTotalMiB,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
