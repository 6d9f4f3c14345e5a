package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/san-kum/ringbody/internal/physics"
)

var ErrNoParticles = errors.New("storage: input holds no particles")

var inputFields = []string{"px", "py", "pz", "vx", "vy", "vz", "mass", "radius"}

// ParseError reports a malformed input row. Line counts from 1 and includes
// the header.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type particleRow struct {
	PX     float64 `csv:"px"`
	PY     float64 `csv:"py"`
	PZ     float64 `csv:"pz"`
	VX     float64 `csv:"vx"`
	VY     float64 `csv:"vy"`
	VZ     float64 `csv:"vz"`
	Mass   float64 `csv:"mass"`
	Radius float64 `csv:"radius"`
}

func (r particleRow) particle(id int) physics.Particle {
	return physics.Particle{
		ID:       id,
		Position: physics.Vec3{X: r.PX, Y: r.PY, Z: r.PZ},
		Velocity: physics.Vec3{X: r.VX, Y: r.VY, Z: r.VZ},
		Mass:     r.Mass,
		Radius:   r.Radius,
	}
}

func rowOf(p physics.Particle) particleRow {
	return particleRow{
		PX: p.Position.X, PY: p.Position.Y, PZ: p.Position.Z,
		VX: p.Velocity.X, VY: p.Velocity.Y, VZ: p.Velocity.Z,
		Mass: p.Mass, Radius: p.Radius,
	}
}

// records replays rows already split by encoding/csv.
type records [][]string

func (r *records) Read() ([]string, error) {
	if len(*r) == 0 {
		return nil, io.EOF
	}
	row := (*r)[0]
	*r = (*r)[1:]
	return row, nil
}

func (r *records) ReadAll() ([][]string, error) {
	rows := *r
	*r = nil
	return rows, nil
}

func LoadParticles(path string) ([]physics.Particle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	particles, err := ReadParticles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return particles, nil
}

// ReadParticles parses a header line followed by
// px,py,pz,vx,vy,vz,mass,radius rows. IDs follow row order.
func ReadParticles(r io.Reader) ([]physics.Particle, error) {
	br := bufio.NewReader(r)
	if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = len(inputFields)

	var rows records
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError(err)
		}
		for i, field := range row {
			if err := checkField(field); err != nil {
				line, _ := cr.FieldPos(i)
				return nil, &ParseError{Line: line + 1, Field: inputFields[i], Err: err}
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoParticles
	}

	var parsed []particleRow
	if err := gocsv.UnmarshalCSVWithoutHeaders(&rows, &parsed); err != nil {
		return nil, parseError(err)
	}

	particles := make([]physics.Particle, len(parsed))
	for i, row := range parsed {
		particles[i] = row.particle(i)
	}
	return particles, nil
}

var (
	errEmptyField  = errors.New("empty value")
	errPaddedField = errors.New("value has surrounding whitespace")
	errCommaField  = errors.New("value contains a comma")
)

// checkField rejects values gocsv would otherwise coerce: it reads "" as 0,
// trims spaces and treats a quoted comma as a decimal point.
func checkField(field string) error {
	switch {
	case field == "":
		return errEmptyField
	case strings.TrimSpace(field) != field:
		return errPaddedField
	case strings.Contains(field, ","):
		return errCommaField
	}
	return nil
}

// parseError maps csv positions, which count from the first row after the
// header, to file lines.
func parseError(err error) error {
	var csvErr *csv.ParseError
	if !errors.As(err, &csvErr) {
		return &ParseError{Err: err}
	}
	pe := &ParseError{Line: csvErr.Line + 1, Err: csvErr.Err}
	if !errors.Is(csvErr.Err, csv.ErrFieldCount) && csvErr.Column >= 1 && csvErr.Column <= len(inputFields) {
		pe.Field = inputFields[csvErr.Column-1]
	}
	return pe
}
