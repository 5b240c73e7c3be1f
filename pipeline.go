package sealzip

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"
)

// PipeOption configures Pipe
type PipeOption func(*pipeOptions)

type pipeOptions struct {
	chunkSize int
	depth     int
}

// WithChunkSize sets the size of reads from the source
func WithChunkSize(n int) PipeOption {
	return func(o *pipeOptions) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithQueueDepth sets how many chunks may wait between two stages
func WithQueueDepth(n int) PipeOption {
	return func(o *pipeOptions) {
		if n > 0 {
			o.depth = n
		}
	}
}

// Pipe streams src through t into dst. Reading, transforming and writing
// run as separate stages linked by bounded queues, so a slow writer holds
// back the reader. The first failing stage cancels the others and the
// transform is aborted. Pipe starts t itself; t must not be started.
//
// When decrypting, bytes reach dst before the tag is verified. Treat dst as
// untrusted unless Pipe returns nil.
func Pipe(ctx context.Context, dst io.Writer, src io.Reader, t *Transform, opts ...PipeOption) error {
	o := pipeOptions{chunkSize: DefaultChunkSize, depth: 4}
	for _, opt := range opts {
		opt(&o)
	}

	if err := t.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	in := make(chan []byte, o.depth)
	out := make(chan []byte, o.depth)

	// in is closed only at end of input; a failed read leaves it open and
	// the transform stage stops on cancellation instead.
	g.Go(func() error {
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			buf := make([]byte, o.chunkSize)
			n, err := src.Read(buf)
			if n > 0 {
				select {
				case in <- buf[:n]:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if errors.Is(err, io.EOF) {
				close(in)
				return nil
			}
			if err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		defer close(out)
		emit := func(p []byte) error {
			select {
			case out <- p:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		for {
			select {
			case chunk, ok := <-in:
				if !ok {
					return t.End(emit)
				}
				if err := t.Chunk(chunk, emit); err != nil {
					return err
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		for p := range out {
			if _, err := dst.Write(p); err != nil {
				return err
			}
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		t.Abort()
	}
	return err
}
