package main

import (
	"fmt"
	"io"
	"time"

	"iljit/internal/pipeline"
)

func printStageTimings(out io.Writer, timings *pipeline.Timings) {
	if out == nil || timings == nil {
		return
	}
	for _, stage := range pipeline.Stages {
		if timings.Has(stage) {
			fmt.Fprintf(out, "%-8s %8.1f ms\n", stage, toMillis(timings.Duration(stage)))
		}
	}
	fmt.Fprintf(out, "%-8s %8.1f ms\n", "total", toMillis(timings.Sum(pipeline.Stages...)))
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
