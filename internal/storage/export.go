package storage

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
)

// Number is a float64 that survives JSON encoding when it is NaN or
// infinite, by writing those values as strings.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return json.Marshal(f)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

type ExportParticle struct {
	Iteration int       `json:"iteration"`
	ID        int       `json:"id"`
	Position  [3]Number `json:"position"`
	Velocity  [3]Number `json:"velocity"`
	Mass      Number    `json:"mass"`
	Radius    Number    `json:"radius"`
}

type ExportData struct {
	Run     RunMetadata         `json:"run"`
	States  []ExportParticle    `json:"states"`
	Metrics map[string][]Number `json:"metrics"`
}

// Export writes a stored run as indented JSON.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	states, err := s.LoadStates(runID)
	if err != nil {
		return err
	}
	series, err := s.LoadMetrics(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, meta, states, series)
}

func ExportJSON(w io.Writer, meta *RunMetadata, states []StateRecord, series map[string][]float64) error {
	data := ExportData{
		Run:     *meta,
		States:  make([]ExportParticle, len(states)),
		Metrics: make(map[string][]Number, len(series)),
	}

	for i, r := range states {
		data.States[i] = ExportParticle{
			Iteration: r.Iteration,
			ID:        r.ID,
			Position:  [3]Number{Number(r.PX), Number(r.PY), Number(r.PZ)},
			Velocity:  [3]Number{Number(r.VX), Number(r.VY), Number(r.VZ)},
			Mass:      Number(r.Mass),
			Radius:    Number(r.Radius),
		}
	}
	for name, values := range series {
		out := make([]Number, len(values))
		for i, v := range values {
			out[i] = Number(v)
		}
		data.Metrics[name] = out
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
