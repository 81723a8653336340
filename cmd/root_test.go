package cmd

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/CraigKelly/tempermc/calibrate"
	"github.com/stretchr/testify/assert"
)

func TestCalibratorStrategyRecognizesNames(t *testing.T) {
	s, err := calibratorStrategy("accuracy")
	assert.NoError(t, err)
	assert.Equal(t, calibrate.AccuracyDriven, s)

	s, err = calibratorStrategy("")
	assert.NoError(t, err)
	assert.Equal(t, calibrate.AccuracyDriven, s)

	s, err = calibratorStrategy("classical")
	assert.NoError(t, err)
	assert.Equal(t, calibrate.Classical, s)
}

func TestCalibratorStrategyRejectsUnknownName(t *testing.T) {
	_, err := calibratorStrategy("bogus")
	assert.Error(t, err)
}

func TestStartupParamsSetupBuildsTraceFile(t *testing.T) {
	dir := t.TempDir()
	sp := &startupParams{traceFile: filepath.Join(dir, "trace.log")}

	assert.NoError(t, sp.Setup())
	assert.NotNil(t, sp.out)
	assert.NotNil(t, sp.trace)

	sp.Trace()

	info, err := os.Stat(sp.traceFile)
	assert.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestTraceJEncodesOneRecordPerChain(t *testing.T) {
	dir := t.TempDir()
	sp := &startupParams{traceFile: filepath.Join(dir, "trace.json")}
	assert.NoError(t, sp.Setup())

	for i := 0; i < 3; i++ {
		assert.NoError(t, sp.traceJ.Encode(chainSummary{Chain: i, Beta: 1.0 / float64(i+1)}))
	}

	raw, err := os.ReadFile(sp.traceFile)
	assert.NoError(t, err)

	dec := json.NewDecoder(bytes.NewReader(raw))
	var got []chainSummary
	for dec.More() {
		var cs chainSummary
		assert.NoError(t, dec.Decode(&cs))
		got = append(got, cs)
	}
	assert.Len(t, got, 3)
	assert.Equal(t, 2, got[2].Chain)
}

func TestDiscardJSONEncodeIsANoOp(t *testing.T) {
	var d DiscardJSON
	assert.NoError(t, d.Encode(chainSummary{Chain: 1}))
}

func TestStartupParamsSetupWithoutTraceFileDiscards(t *testing.T) {
	sp := &startupParams{}
	assert.NoError(t, sp.Setup())
	assert.IsType(t, &DiscardJSON{}, sp.traceJ)

	var buf bytes.Buffer
	sp.out = log.New(&buf, "", 0)
	sp.Report()
	assert.Contains(t, buf.String(), "Calibrator:")
}
