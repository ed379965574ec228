package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CK6170/MaxFactor-go/maxfactor"
)

func captureOut(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	return &buf
}

func TestRedWriter(t *testing.T) {
	var buf bytes.Buffer
	n, err := NewRedWriter(&buf).Write([]byte("boom"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "\033[31mboom\033[0m", buf.String())
}

func TestDebugf(t *testing.T) {
	buf := captureOut(t)
	Debugf(false, "hidden %d", 1)
	require.Empty(t, buf.String())

	Debugf(true, "shown %d", 2)
	require.Contains(t, buf.String(), "[DEBUG] shown 2")
}

func TestPrintLines(t *testing.T) {
	buf := captureOut(t)
	PrintIterationLine(maxfactor.Iteration{Iter: 4, F: []float64{0.5, 1.25}, Obj: -10, NewObj: -9, StepSize: 0.5})
	require.Contains(t, buf.String(), "[ITER 004]")
	require.Contains(t, buf.String(), "F=[0.5 1.25]")

	buf.Reset()
	PrintResultLine("GAMMA/P12", &maxfactor.Result{F: []float64{2}, Iterations: 3, Status: maxfactor.StatusConverged})
	require.Contains(t, buf.String(), "GAMMA/P12 F=[2]")
	require.Contains(t, buf.String(), "(converged)")
}
