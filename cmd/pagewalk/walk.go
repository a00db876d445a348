package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/go-paginator/pkg/logging"
	"github.com/Sternrassler/go-paginator/pkg/paginator"
	"golang.org/x/sync/errgroup"
)

// ErrTooManyFailures is returned when a page keeps failing.
var ErrTooManyFailures = errors.New("too many consecutive page failures")

// walkConfig holds walk configuration.
type walkConfig struct {
	Name        string
	PageSize    int
	MaxFailures int
	RetryDelay  time.Duration
}

// walkStats summarizes a finished walk.
type walkStats struct {
	Pages    int
	Elements int
	Failures int
	Duration time.Duration
}

// walk fetches every page of src and writes each element to out as one JSON
// line. Pages are fetched on their own goroutines and reported back through a
// paginator.Loop, which is the only goroutine touching the paginator.
func walk(ctx context.Context, src paginator.Source[json.RawMessage], cfg walkConfig, out io.Writer) (walkStats, error) {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 1
	}

	start := time.Now()
	logger := logging.NewLogger("pagewalk")
	loop := paginator.NewLoop(0)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var stats walkStats
	consecutive := 0
	// done receives the walk outcome once; later sends are dropped.
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	line := &bytes.Buffer{}
	p, err := paginator.New(cfg.PageSize,
		paginator.AsyncFetch(gctx, loop, src),
		func(p *paginator.Paginator[json.RawMessage], elements []json.RawMessage) {
			consecutive = 0
			stats.Pages++
			for _, element := range elements {
				line.Reset()
				if err := json.Compact(line, element); err != nil {
					finish(fmt.Errorf("page %d: %w", p.Page(), err))
					return
				}
				line.WriteByte('\n')
				if _, err := out.Write(line.Bytes()); err != nil {
					finish(fmt.Errorf("write output: %w", err))
					return
				}
				stats.Elements++
			}
			if stats.Pages%50 == 0 {
				logger.Info().
					Int("page", p.Page()).
					Int("elements", p.Len()).
					Int("total", p.Total()).
					Msg("Walk progress")
			}
			p.FetchNextPage()
		},
		paginator.WithName[json.RawMessage](cfg.Name),
		paginator.WithFailureHandler(func(p *paginator.Paginator[json.RawMessage]) {
			consecutive++
			stats.Failures++
			if consecutive >= cfg.MaxFailures {
				finish(fmt.Errorf("%w: page %d failed %d times", ErrTooManyFailures, p.Page()+1, consecutive))
				return
			}
			time.AfterFunc(cfg.RetryDelay, func() {
				_ = loop.Post(p.FetchNextPage)
			})
		}),
		paginator.WithCompletionHandler(func(p *paginator.Paginator[json.RawMessage]) {
			finish(nil)
		}),
	)
	if err != nil {
		return stats, err
	}

	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		defer cancel()
		if err := loop.Post(p.FetchFirstPage); err != nil {
			return err
		}
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	err = g.Wait()
	stats.Duration = time.Since(start)
	return stats, err
}
