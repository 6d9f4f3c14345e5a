package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/san-kum/ringbody/internal/physics"
	"github.com/san-kum/ringbody/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunInfo describes how a run was configured.
type RunInfo struct {
	Input      string
	Processes  int
	G          float64
	Dt         float64
	Softening  float64
	Integrator string
	ForceLaw   string
	Transport  string
}

type RunMetadata struct {
	ID         string            `json:"id"`
	Input      string            `json:"input"`
	Timestamp  time.Time         `json:"timestamp"`
	Processes  int               `json:"processes"`
	Particles  int               `json:"particles"`
	Iterations int               `json:"iterations"`
	Rounds     int               `json:"rounds"`
	G          float64           `json:"g"`
	Dt         float64           `json:"dt"`
	Softening  float64           `json:"softening"`
	Integrator string            `json:"integrator"`
	ForceLaw   string            `json:"force_law"`
	Transport  string            `json:"transport"`
	ElapsedMS  float64           `json:"elapsed_ms"`
	Metrics    map[string]Number `json:"metrics"`
}

// StateRecord is one particle at one recorded iteration.
type StateRecord struct {
	Iteration int     `csv:"iteration"`
	ID        int     `csv:"id"`
	PX        float64 `csv:"px"`
	PY        float64 `csv:"py"`
	PZ        float64 `csv:"pz"`
	VX        float64 `csv:"vx"`
	VY        float64 `csv:"vy"`
	VZ        float64 `csv:"vz"`
	Mass      float64 `csv:"mass"`
	Radius    float64 `csv:"radius"`
}

func (r StateRecord) Particle() physics.Particle {
	return physics.Particle{
		ID:       r.ID,
		Position: physics.Vec3{X: r.PX, Y: r.PY, Z: r.PZ},
		Velocity: physics.Vec3{X: r.VX, Y: r.VY, Z: r.VZ},
		Mass:     r.Mass,
		Radius:   r.Radius,
	}
}

type MetricRecord struct {
	Iteration int     `csv:"iteration"`
	Name      string  `csv:"name"`
	Value     float64 `csv:"value"`
}

func (s *Store) Save(info RunInfo, result *sim.Result) (string, error) {
	name := strings.TrimSuffix(filepath.Base(info.Input), filepath.Ext(info.Input))
	if name == "" || name == "." {
		name = "run"
	}
	runID := fmt.Sprintf("%s_%d", name, time.Now().UnixMilli())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Input:      info.Input,
		Timestamp:  time.Now(),
		Processes:  info.Processes,
		Particles:  len(result.Particles),
		Iterations: result.Iterations,
		Rounds:     result.Rounds,
		G:          info.G,
		Dt:         info.Dt,
		Softening:  info.Softening,
		Integrator: info.Integrator,
		ForceLaw:   info.ForceLaw,
		Transport:  info.Transport,
		ElapsedMS:  float64(result.Elapsed.Microseconds()) / 1000,
		Metrics:    make(map[string]Number, len(result.Metrics)),
	}
	for k, v := range result.Metrics {
		meta.Metrics[k] = Number(v)
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, "states.csv"), stateRecords(result)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, "metrics.csv"), metricRecords(result.Series)); err != nil {
		return "", err
	}
	if err := WritePositions(filepath.Join(runDir, "positions.csv"), result.Particles); err != nil {
		return "", err
	}

	return runID, nil
}

func stateRecords(result *sim.Result) []StateRecord {
	history := result.History
	if len(history) == 0 {
		history = []sim.Snapshot{{Iteration: result.Iterations, Particles: result.Particles}}
	}

	var out []StateRecord
	for _, snap := range history {
		for _, p := range snap.Particles {
			out = append(out, StateRecord{
				Iteration: snap.Iteration,
				ID:        p.ID,
				PX:        p.Position.X, PY: p.Position.Y, PZ: p.Position.Z,
				VX: p.Velocity.X, VY: p.Velocity.Y, VZ: p.Velocity.Z,
				Mass:   p.Mass,
				Radius: p.Radius,
			})
		}
	}
	return out
}

func metricRecords(series map[string][]float64) []MetricRecord {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []MetricRecord
	for _, name := range names {
		for i, v := range series[name] {
			out = append(out, MetricRecord{Iteration: i, Name: name, Value: v})
		}
	}
	return out
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(rows) == 0 {
		return nil
	}
	return gocsv.MarshalFile(&rows, f)
}

func readCSV[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	var rows []T
	if info.Size() == 0 {
		return rows, nil
	}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// Latest returns the most recent run, or an error if the store is empty.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs in %s", s.baseDir)
	}
	return &runs[len(runs)-1], nil
}

func (s *Store) LoadStates(runID string) ([]StateRecord, error) {
	return readCSV[StateRecord](filepath.Join(s.baseDir, runID, "states.csv"))
}

// LoadMetrics returns each metric's series indexed by recorded iteration.
func (s *Store) LoadMetrics(runID string) (map[string][]float64, error) {
	rows, err := readCSV[MetricRecord](filepath.Join(s.baseDir, runID, "metrics.csv"))
	if err != nil {
		return nil, err
	}

	series := make(map[string][]float64)
	for _, r := range rows {
		series[r.Name] = append(series[r.Name], r.Value)
	}
	return series, nil
}
