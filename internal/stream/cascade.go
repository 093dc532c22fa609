package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"hotorbot/internal/domain/ports/adapter"
	"hotorbot/internal/infra/metrics"
)

// Audio frames let the client demux narration text from synthesized bytes on
// the single response stream.
var (
	audioOpen  = []byte("<audio>")
	audioClose = []byte("</audio>")
)

// Result is the outcome of one cascaded turn.
type Result struct {
	Fields    Fields
	Waited    bool
	Cancelled bool
}

// Committed reports whether the turn produced fields the caller should
// persist. Waited and cancelled turns must leave the session untouched.
func (r Result) Committed() bool { return !r.Waited && !r.Cancelled }

// Cascade runs the two-stage response pipeline: the generative token stream
// drains through the tag parser first (narration forwarded to out as it
// arrives), and only once stage 1 completes with a non-empty voice field is
// the speech stage dispatched and its audio appended to the same writer.
type Cascade struct {
	synth adapter.Synthesizer
	log   *zerolog.Logger
}

func NewCascade(synth adapter.Synthesizer, logger *zerolog.Logger) *Cascade {
	l := logger.With().Str("component", "Cascade").Logger()
	return &Cascade{synth: synth, log: &l}
}

// Run drives one turn. Cancellation is cooperative: a cancelled ctx is
// checked before each side-effecting step, and in-flight provider calls are
// drained but discarded. The returned error is nil for waited and cancelled
// turns; those are outcomes, not failures.
func (c *Cascade) Run(ctx context.Context, tokens adapter.TokenStream, out io.Writer) (Result, error) {
	defer tokens.Close()

	parser := NewTagParser(func(text string) {
		if ctx.Err() != nil {
			return
		}
		_, _ = io.WriteString(out, text)
		flush(out)
	}, c.log)

	// Stage 1: drain the token stream through the parser. This loop is the
	// completion barrier; stage 2 cannot start while it runs.
	for {
		chunk, err := tokens.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return Result{Cancelled: true}, nil
			}
			return Result{}, fmt.Errorf("token stream: %w", err)
		}
		parser.Feed(chunk)
		if parser.Waiting() {
			metrics.IncTurn("waited")
			return Result{Waited: true}, nil
		}
	}

	fields := parser.Finish()
	if ctx.Err() != nil {
		return Result{Fields: fields, Cancelled: true}, nil
	}

	// Stage 2: speech, only for a committed non-empty voice line.
	if fields.Voice != "" {
		if err := c.speak(ctx, fields.Voice, out); err != nil {
			return Result{}, err
		}
	}

	if ctx.Err() != nil {
		return Result{Fields: fields, Cancelled: true}, nil
	}
	metrics.IncTurn("completed")
	return Result{Fields: fields}, nil
}

func (c *Cascade) speak(ctx context.Context, text string, out io.Writer) error {
	start := time.Now()
	audio, err := c.synth.Synthesize(ctx, text)
	metrics.ObserveSynthesisLatency(int(time.Since(start).Milliseconds()))
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer audio.Close()

	buf := make([]byte, 32*1024)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if ctx.Err() != nil {
				return nil
			}
			if _, werr := out.Write(audioOpen); werr != nil {
				return nil // client went away; nothing to persist anyway
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return nil
			}
			if _, werr := out.Write(audioClose); werr != nil {
				return nil
			}
			flush(out)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("audio stream: %w", err)
		}
	}
}

// flush pushes buffered bytes to the client when the writer supports it,
// so narration renders token by token.
func flush(out io.Writer) {
	if f, ok := out.(interface{ Flush() }); ok {
		f.Flush()
	}
}
