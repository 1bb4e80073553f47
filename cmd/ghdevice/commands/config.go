package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/ghdevice/internal/app"
	"github.com/florianilch/ghdevice/internal/settings"
)

// envPrefix marks variables that map onto app.Config (GHDEVICE_AUTH__STORAGE → auth.storage).
const envPrefix = "GHDEVICE_"

// localFlags are command switches that never map onto app.Config.
var localFlags = map[string]bool{
	"config": true,
	"json":   true,
}

// configLayer is one source in the precedence chain. Later layers win.
type configLayer struct {
	name string
	load func(k *koanf.Koanf) error
}

// loadConfig merges config file, GHDEVICE_ environment and set CLI flags in
// that order, then applies defaults and validates the result.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")
	for _, layer := range configLayers(configPath, cmd, environFunc) {
		if err := layer.load(k); err != nil {
			return nil, fmt.Errorf("loading %s: %w", layer.name, err)
		}
	}

	cfg := &app.Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func configLayers(configPath string, cmd *cli.Command, environFunc func() []string) []configLayer {
	var layers []configLayer

	if configPath != "" {
		layers = append(layers, configLayer{
			name: "config file " + configPath,
			load: func(k *koanf.Koanf) error {
				return settings.LoadFile(k, configPath, toml.Parser())
			},
		})
	}

	layers = append(layers, configLayer{
		name: "environment variables",
		load: func(k *koanf.Koanf) error {
			return k.Load(env.Provider(".", env.Opt{
				Prefix:        envPrefix,
				TransformFunc: envKey,
				EnvironFunc:   environFunc,
			}), nil)
		},
	})

	if cmd != nil {
		layers = append(layers, configLayer{
			name: "CLI flags",
			load: func(k *koanf.Koanf) error {
				return k.Load(confmap.Provider(flagValues(cmd), "."), nil)
			},
		})
	}

	return layers
}

// envKey turns GHDEVICE_GITHUB__API_BASE_URL into github.api_base_url.
func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	return strings.ToLower(strings.ReplaceAll(key, "__", ".")), value
}

// flagKey turns --github--api-base-url into github.api_base_url.
func flagKey(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, "--", "."), "-", "_")
}

// flagValues collects the flags set on cmd or its parents, keyed like the
// config file. Unset flags are left out so earlier layers keep their values.
func flagValues(cmd *cli.Command) map[string]any {
	values := make(map[string]any)
	for _, name := range cmd.FlagNames() {
		if localFlags[name] || !cmd.IsSet(name) {
			continue
		}
		if value := cmd.Value(name); value != nil {
			values[flagKey(name)] = value
		}
	}
	return values
}
