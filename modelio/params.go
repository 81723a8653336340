package modelio

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Priors holds one record per free parameter, read from a priors file: one
// line per parameter of the form
//
//	name min max init init_step [circular]
//
// A trailing "circular" token marks the parameter as wrapping at its bounds
// instead of having out-of-range proposals redrawn (see chain.State.Circular).
type Priors struct {
	Descr    []string
	Min      []float64
	Max      []float64
	Init     []float64
	Step     []float64
	Circular []bool
}

// NPar returns the number of parameters described.
func (p *Priors) NPar() int {
	return len(p.Descr)
}

// ReadPriorsFile reads a priors file from disk.
func ReadPriorsFile(path string) (*Priors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not open priors file %s", path)
	}
	defer f.Close()

	p, err := ReadPriors(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not parse priors file %s", path)
	}
	return p, nil
}

// ReadPriors parses a priors file from an io.Reader.
func ReadPriors(r io.Reader) (*Priors, error) {
	p := &Priors{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, errors.Errorf("Line %d: expected at least 5 fields (name min max init step), got %d", lineNo, len(fields))
		}

		name := fields[0]
		min, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Line %d: bad min", lineNo)
		}
		max, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Line %d: bad max", lineNo)
		}
		if !(min < max) {
			return nil, errors.Errorf("Line %d: min %f must be < max %f", lineNo, min, max)
		}
		init, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Line %d: bad init value", lineNo)
		}
		step, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Line %d: bad init step", lineNo)
		}
		if step <= 0 {
			return nil, errors.Errorf("Line %d: init step must be > 0, got %f", lineNo, step)
		}

		circular := false
		if len(fields) >= 6 && strings.EqualFold(fields[5], "circular") {
			circular = true
		}

		p.Descr = append(p.Descr, name)
		p.Min = append(p.Min, min)
		p.Max = append(p.Max, max)
		p.Init = append(p.Init, init)
		p.Step = append(p.Step, step)
		p.Circular = append(p.Circular, circular)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Error scanning priors file")
	}

	if p.NPar() == 0 {
		return nil, errors.New("Priors file defines no parameters")
	}

	return p, nil
}
