package config

import (
	"fmt"
	"path/filepath"
	"sort"
)

// ResolveIncludes loads and merges every file matched by cfg.Include glob
// patterns into cfg, erroring on duplicate program names. A file matched
// more than once is loaded once; the include lists of included files are
// not followed. configDir anchors relative patterns.
func ResolveIncludes(cfg *Config, configDir string) ([]string, error) {
	if len(cfg.Include) == 0 {
		return nil, nil
	}

	var warnings []string
	seen := make(map[string]bool)

	for _, pattern := range cfg.Include {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(configDir, pattern)
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return warnings, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			warnings = append(warnings, fmt.Sprintf("include pattern %q matched no files", pattern))
			continue
		}
		sort.Strings(matches)

		for _, path := range matches {
			absPath, err := filepath.Abs(path)
			if err != nil {
				return warnings, fmt.Errorf("cannot resolve include path %q: %w", path, err)
			}
			if seen[absPath] {
				return warnings, fmt.Errorf("circular include detected: %s", absPath)
			}
			seen[absPath] = true

			included, incWarnings, err := Load(absPath)
			if err != nil {
				return warnings, fmt.Errorf("include %s: %w", absPath, err)
			}
			warnings = append(warnings, incWarnings...)

			if err := mergePrograms(cfg, included, absPath); err != nil {
				return warnings, err
			}
			mergeWebhooks(cfg, included)
		}
	}

	cfg.Include = nil
	return warnings, nil
}

func mergePrograms(dst, src *Config, srcPath string) error {
	for name, prog := range src.Programs {
		if _, ok := dst.Programs[name]; ok {
			return fmt.Errorf("duplicate program name %q: defined in both main config and %s", name, srcPath)
		}
		if dst.Programs == nil {
			dst.Programs = make(map[string]ProgramConfig)
		}
		dst.Programs[name] = prog
	}
	return nil
}

func mergeWebhooks(dst, src *Config) {
	for name, wh := range src.Webhooks {
		if dst.Webhooks == nil {
			dst.Webhooks = make(map[string]WebhookConfig)
		}
		dst.Webhooks[name] = wh
	}
}

// LoadWithIncludes loads path and resolves its include directives.
func LoadWithIncludes(path string) (*Config, []string, error) {
	cfg, warnings, err := Load(path)
	if err != nil {
		return nil, warnings, err
	}

	incWarnings, err := ResolveIncludes(cfg, filepath.Dir(path))
	warnings = append(warnings, incWarnings...)
	if err != nil {
		return nil, warnings, err
	}

	return cfg, warnings, nil
}
