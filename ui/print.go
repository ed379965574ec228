package ui

import (
	"fmt"
	"strings"

	"github.com/CK6170/MaxFactor-go/maxfactor"
)

func formatParams(F []float64) string {
	parts := make([]string, len(F))
	for i, v := range F {
		parts[i] = fmt.Sprintf("%.6g", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// PrintIterationLine prints a single in-place (carriage-return) line for one
// optimizer step. Steps that found no improvement are shown in light purple.
func PrintIterationLine(it maxfactor.Iteration) {
	color := "\033[96m"
	if it.StepSize == 0 {
		color = "\033[95m"
	}
	line := fmt.Sprintf("\r%s[ITER %03d] obj=%.8g gain=%.3g step=%.3g F=%s",
		color, it.Iter, it.Obj, it.NewObj-it.Obj, it.StepSize, formatParams(it.F))
	line += "                    " + reset
	fmt.Fprint(Out, line)
}

// PrintResultLine prints the final parameters of a fit on its own line.
func PrintResultLine(label string, res *maxfactor.Result) {
	fmt.Fprintf(Out, "\r\033[34m%s F=%s loglike=%.8g iterations=%d (%s)%s\n",
		label, formatParams(res.F), res.LogLike, res.Iterations, res.Status, reset)
}
