package modelio

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DataSet is an immutable matrix of observations: rows are samples, columns
// are at least (x, y, ...). It is read once at load time and never mutated
// afterwards.
type DataSet struct {
	rows, cols int
	values     []float64 // row-major, stride == cols
}

// NewDataSet builds a DataSet from pre-read row-major values. Exposed mainly
// for tests and for synthetic-data scenarios.
func NewDataSet(rows, cols int, values []float64) (*DataSet, error) {
	if cols < 2 {
		return nil, errors.Errorf("DataSet needs at least 2 columns, got %d", cols)
	}
	if len(values) != rows*cols {
		return nil, errors.Errorf("DataSet expected %d values for %dx%d, got %d", rows*cols, rows, cols, len(values))
	}
	return &DataSet{rows: rows, cols: cols, values: values}, nil
}

// Rows returns the number of observations.
func (d *DataSet) Rows() int { return d.rows }

// Cols returns the number of columns per observation.
func (d *DataSet) Cols() int { return d.cols }

// At returns the value at row i, column j.
func (d *DataSet) At(i, j int) float64 {
	return d.values[i*d.cols+j]
}

// X is a convenience accessor for column 0.
func (d *DataSet) X(i int) float64 { return d.At(i, 0) }

// Y is a convenience accessor for column 1.
func (d *DataSet) Y(i int) float64 { return d.At(i, 1) }

// ReadDataFile reads a data file (whitespace-separated numeric rows, at
// least two columns) from disk.
func ReadDataFile(path string) (*DataSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not open data file %s", path)
	}
	defer f.Close()

	d, err := ReadData(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not parse data file %s", path)
	}
	return d, nil
}

// ReadData parses a data file from an io.Reader.
func ReadData(r io.Reader) (*DataSet, error) {
	scanner := bufio.NewScanner(r)
	var values []float64
	cols := -1
	rows := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if cols < 0 {
			cols = len(fields)
			if cols < 2 {
				return nil, errors.Errorf("Line %d: need at least 2 columns, got %d", lineNo, cols)
			}
		} else if len(fields) != cols {
			return nil, errors.Errorf("Line %d: expected %d columns, got %d", lineNo, cols, len(fields))
		}

		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "Line %d: bad numeric field %q", lineNo, f)
			}
			values = append(values, v)
		}
		rows++
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "Error scanning data file")
	}

	if rows == 0 {
		return nil, errors.New("Data file has no rows")
	}

	return NewDataSet(rows, cols, values)
}
