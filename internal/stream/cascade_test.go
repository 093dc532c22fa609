package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fakeTokenStream struct {
	chunks []string
	pos    int
	err    error
	closed bool
}

func (f *fakeTokenStream) Recv() (string, error) {
	if f.pos < len(f.chunks) {
		c := f.chunks[f.pos]
		f.pos++
		return c, nil
	}
	if f.err != nil {
		return "", f.err
	}
	return "", io.EOF
}

func (f *fakeTokenStream) Close() error {
	f.closed = true
	return nil
}

type fakeSynth struct {
	audio   string
	err     error
	calls   int
	gotText string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	f.calls++
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.audio)), nil
}

func newTestCascade(synth *fakeSynth) *Cascade {
	logger := zerolog.Nop()
	return NewCascade(synth, &logger)
}

func TestCascadeFullTurn(t *testing.T) {
	synth := &fakeSynth{audio: "AUDIOBYTES"}
	c := newTestCascade(synth)
	tokens := &fakeTokenStream{chunks: []string{"Thinking", "<voice>hel", "lo<progress>", "80"}}
	var out bytes.Buffer

	res, err := c.Run(context.Background(), tokens, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Committed() {
		t.Fatalf("expected a committed turn, got %+v", res)
	}
	if res.Fields.Voice != "hello" {
		t.Fatalf("voice = %q", res.Fields.Voice)
	}
	if res.Fields.Progress == nil || *res.Fields.Progress != 80 {
		t.Fatalf("progress = %v", res.Fields.Progress)
	}
	if synth.calls != 1 || synth.gotText != "hello" {
		t.Fatalf("synth calls=%d text=%q", synth.calls, synth.gotText)
	}
	got := out.String()
	if !strings.HasPrefix(got, "Thinking") {
		t.Fatalf("narration missing from stream: %q", got)
	}
	if !strings.Contains(got, "<audio>AUDIOBYTES</audio>") {
		t.Fatalf("framed audio missing from stream: %q", got)
	}
	if !tokens.closed {
		t.Fatal("token stream not closed")
	}
}

func TestCascadeWaitSkipsSynthesis(t *testing.T) {
	synth := &fakeSynth{audio: "AUDIO"}
	c := newTestCascade(synth)
	tokens := &fakeTokenStream{chunks: []string{"<voice>half a though", "<wait>", "<voice>never seen"}}
	var out bytes.Buffer

	res, err := c.Run(context.Background(), tokens, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Waited || res.Committed() {
		t.Fatalf("expected waited result, got %+v", res)
	}
	if synth.calls != 0 {
		t.Fatal("wait must suppress synthesis")
	}
	if strings.Contains(out.String(), "audio") {
		t.Fatalf("audio leaked on waited turn: %q", out.String())
	}
}

func TestCascadeEmptyVoiceSkipsSynthesis(t *testing.T) {
	synth := &fakeSynth{}
	c := newTestCascade(synth)
	tokens := &fakeTokenStream{chunks: []string{"<topic>Travel<progress>30"}}
	var out bytes.Buffer

	res, err := c.Run(context.Background(), tokens, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Committed() {
		t.Fatalf("expected committed result, got %+v", res)
	}
	if synth.calls != 0 {
		t.Fatal("no voice means no synthesis")
	}
}

func TestCascadeCancelledContext(t *testing.T) {
	synth := &fakeSynth{audio: "AUDIO"}
	c := newTestCascade(synth)
	tokens := &fakeTokenStream{chunks: []string{"<voice>hello"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer

	res, err := c.Run(ctx, tokens, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Cancelled || res.Committed() {
		t.Fatalf("expected cancelled result, got %+v", res)
	}
	if synth.calls != 0 {
		t.Fatal("cancellation must suppress synthesis")
	}
	if out.Len() != 0 {
		t.Fatalf("cancelled turn wrote to the client: %q", out.String())
	}
}

func TestCascadeStreamError(t *testing.T) {
	synth := &fakeSynth{}
	c := newTestCascade(synth)
	boom := errors.New("connection reset")
	tokens := &fakeTokenStream{chunks: []string{"<voice>hi"}, err: boom}
	var out bytes.Buffer

	_, err := c.Run(context.Background(), tokens, &out)
	if !errors.Is(err, boom) {
		t.Fatalf("expected stream error, got %v", err)
	}
	if synth.calls != 0 {
		t.Fatal("failed stage 1 must not reach stage 2")
	}
}
