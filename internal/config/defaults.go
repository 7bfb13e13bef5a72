package config

const (
	defaultConfigPath          = "~/.config/imgbatch/config.toml"
	projectConfigName          = "imgbatch.toml"
	defaultSourceDir           = "assets/img"
	defaultOutputDir           = "assets/img/processed"
	defaultStateDir            = "~/.local/share/imgbatch"
	defaultPattern             = "**/*.png"
	defaultWebPQuality         = 80
	defaultPNGCompressionLevel = 8
	defaultWatchDebounceMillis = 500
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var defaultWidths = []int{400, 800, 1200}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SourceDir: defaultSourceDir,
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
		},
		Images: Images{
			Pattern:             defaultPattern,
			Widths:              append([]int(nil), defaultWidths...),
			WebPQuality:         defaultWebPQuality,
			PNGCompressionLevel: defaultPNGCompressionLevel,
		},
		History: History{
			Enabled: true,
		},
		Watch: Watch{
			DebounceMillis: defaultWatchDebounceMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
