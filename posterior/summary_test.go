package posterior

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeComputesMeanAndInterval(t *testing.T) {
	samples := make([]float64, 0, 1000)
	for i := -500; i < 500; i++ {
		samples = append(samples, float64(i)/100.0)
	}

	s, err := Summarize(samples, 0.95)
	assert.NoError(t, err)
	assert.Equal(t, 1000, s.N)
	assert.InDelta(t, 0.0, s.Mean, 0.01)
	assert.InDelta(t, 0.0, s.Median, 0.05)
	assert.True(t, s.CredibleInterval[0] < s.Mean)
	assert.True(t, s.CredibleInterval[1] > s.Mean)
}

func TestSummarizeRejectsEmptyInput(t *testing.T) {
	_, err := Summarize(nil, 0.95)
	assert.Error(t, err)
}

func TestSummarizeRejectsBadLevel(t *testing.T) {
	_, err := Summarize([]float64{1, 2, 3}, 1.5)
	assert.Error(t, err)
}

func TestSummarizeFileReadsRequestedColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.txt")

	content := "1.0\t10.0\n2.0\t20.0\n3.0\t30.0\n4.0\t40.0\n"
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := SummarizeFile(path, 0, 0.5)
	assert.NoError(t, err)
	assert.Equal(t, 4, s.N)
	assert.InDelta(t, 2.5, s.Mean, 1e-9)

	s2, err := SummarizeFile(path, 1, 0.5)
	assert.NoError(t, err)
	assert.InDelta(t, 25.0, s2.Mean, 1e-9)
}
