package config

// ApplyDefaults fills in zero-value fields with the defaults listed in
// §6: environment/directory inherit, exitCodes={0}, startSecs=1,
// startRetries=3, autoStart=true, stopSignal=SIGTERM, umask=-1 (encoded
// here as an absent string, resolved by child.ParseUmask), resources={}.
// A zero value is treated as unset; LoadBytes restores a startretries of 0
// that the TOML file sets explicitly.
func ApplyDefaults(cfg *Config) {
	if cfg.Main.LogLevel == "" {
		cfg.Main.LogLevel = "info"
	}
	if cfg.Main.LogFormat == "" {
		cfg.Main.LogFormat = "json"
	}

	for name, p := range cfg.Programs {
		if p.Autostart == nil {
			t := true
			p.Autostart = &t
		}
		if p.Startsecs == 0 {
			p.Startsecs = 1
		}
		if p.Startretries == 0 {
			p.Startretries = 3
		}
		if len(p.Exitcodes) == 0 {
			p.Exitcodes = []int{0}
		}
		if p.Stopsignal == "" {
			p.Stopsignal = "TERM"
		}
		if p.Stopwaitsecs == 0 {
			p.Stopwaitsecs = 10
		}
		if p.Resources == nil {
			p.Resources = map[string]uint64{}
		}
		cfg.Programs[name] = p
	}

	for name, w := range cfg.Webhooks {
		if w.TimeoutSecs == 0 {
			w.TimeoutSecs = 5
		}
		if w.MaxRetries == 0 {
			w.MaxRetries = 3
		}
		cfg.Webhooks[name] = w
	}
}
