package config

const (
	defaultStateDir              = "~/.local/share/modelkeep"
	defaultLogDir                = "~/.local/share/modelkeep/logs"
	defaultBind                  = "127.0.0.1:7920"
	defaultPerPage               = 20
	defaultHashWorkers           = 4
	defaultCivitaiBaseURL        = "https://civitai.com"
	defaultCivitaiMaxRetries     = 3
	defaultCivitaiRequestTimeout = 60
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

func defaultExtensions() []string {
	return []string{"safetensors", "ckpt", "pt", "pth", "bin", "onnx"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Library: Library{
			Roots: map[string]string{},
		},
		Server: Server{
			Bind:    defaultBind,
			PerPage: defaultPerPage,
		},
		Scanner: Scanner{
			Extensions:  defaultExtensions(),
			HashWorkers: defaultHashWorkers,
		},
		Civitai: Civitai{
			BaseURL:        defaultCivitaiBaseURL,
			MaxRetries:     defaultCivitaiMaxRetries,
			RequestTimeout: defaultCivitaiRequestTimeout,
			DownloadDirs:   map[string]string{},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Scans:          true,
			Downloads:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
