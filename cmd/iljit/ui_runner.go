package main

import (
	"context"
	"io"

	"iljit/internal/pipeline"
	"iljit/internal/ui"
)

type compileOutcome struct {
	result *pipeline.Result
	err    error
}

// compileWithUI runs the pipeline in the background and draws its events on
// out until it finishes.
func compileWithUI(ctx context.Context, title string, req *pipeline.Request, out io.Writer) (*pipeline.Result, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan compileOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Sink = pipeline.ChannelSink{Ch: events}
		res, err := pipeline.Compile(ctx, &reqCopy)
		outcomeCh <- compileOutcome{result: res, err: err}
		close(events)
	}()

	uiErr := ui.Run(title, events, out)
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
