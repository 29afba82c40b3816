package config

const (
	defaultConfigPath = "~/.config/surgery/config.toml"
	defaultSuffix     = "_clean"
	defaultLogLevel   = "info"
	defaultLogFormat  = "console"
	maxWorkers        = 256
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Clean: Clean{
			Suffix: defaultSuffix,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath(),
		},
	}
}
