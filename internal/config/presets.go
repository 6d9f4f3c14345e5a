package config

import "sort"

// Presets override run shape only. Input file and transport still come from
// flags or the config file.
var Presets = map[string]*Config{
	"smoke": {
		Processes: 1, Iterations: 1, G: DefaultG, Dt: DefaultDt,
		Integrator: "semi-implicit", ForceLaw: "gravity",
	},
	"standard": {
		Processes: 4, Iterations: 5, G: DefaultG, Dt: DefaultDt,
		Integrator: "semi-implicit", ForceLaw: "gravity",
	},
	"wide": {
		Processes: 8, Iterations: 20, G: DefaultG, Dt: 0.01, Softening: 1,
		Integrator: "kick-drift", ForceLaw: "euclidean",
	},
}

func GetPreset(name string) *Config {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply copies the preset's run shape onto cfg.
func (p *Config) Apply(cfg *Config) {
	cfg.Processes = p.Processes
	cfg.Iterations = p.Iterations
	cfg.G = p.G
	cfg.Dt = p.Dt
	cfg.Softening = p.Softening
	cfg.Integrator = p.Integrator
	cfg.ForceLaw = p.ForceLaw
}
