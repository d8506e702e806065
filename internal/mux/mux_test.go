package mux_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-dub/internal/logging"
	"github.com/alnah/go-dub/internal/media"
	"github.com/alnah/go-dub/internal/mux"
)

type fakeOps struct {
	concatErr  error
	freezeErr  error
	stretchErr error
	remuxErr   error

	concats   int
	freezes   []time.Duration
	stretches []float64
	remuxes   []string // video sources
}

func (f *fakeOps) ConcatAudio(_ context.Context, _ []string, _ string) error {
	f.concats++
	return f.concatErr
}

func (f *fakeOps) FreezeFrame(_ context.Context, _, _ string, extra time.Duration) error {
	f.freezes = append(f.freezes, extra)
	return f.freezeErr
}

func (f *fakeOps) StretchVideo(_ context.Context, _, _ string, factor float64) error {
	f.stretches = append(f.stretches, factor)
	return f.stretchErr
}

func (f *fakeOps) Remux(_ context.Context, videoPath, _, _ string) error {
	f.remuxes = append(f.remuxes, videoPath)
	return f.remuxErr
}

type fakeProber struct {
	dur time.Duration
	err error
}

func (f fakeProber) Probe(context.Context, string) (media.Info, error) {
	return media.Info{Duration: f.dur, HasVideo: true, HasAudio: true}, f.err
}

func newMuxer(ops *fakeOps, videoLen, audioLen time.Duration) *mux.Muxer {
	return mux.New(ops, fakeProber{dur: videoLen}, logging.Discard(),
		mux.WithMeasurer(func(string) (time.Duration, error) { return audioLen, nil }))
}

func TestMuxWithinTolerance(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{}
	m := newMuxer(ops, 5*time.Minute, 5*time.Minute+150*time.Millisecond)

	res, err := m.Mux(context.Background(), t.TempDir(), "chunk_000.mp4", []string{"a.wav"}, 0)
	if err != nil {
		t.Fatalf("Mux() error = %v", err)
	}

	if res.Stretched {
		t.Error("video stretched inside tolerance")
	}
	if len(ops.stretches) != 0 {
		t.Errorf("StretchVideo called %d times", len(ops.stretches))
	}
	if len(ops.remuxes) != 1 || ops.remuxes[0] != "chunk_000.mp4" {
		t.Errorf("remux sources = %v, want original chunk", ops.remuxes)
	}
	if res.UsedFallback {
		t.Error("unexpected fallback")
	}
}

func TestMuxStretchesWhenAudioRunsLong(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{}
	m := newMuxer(ops, 10*time.Second, 11*time.Second)

	res, err := m.Mux(context.Background(), t.TempDir(), "chunk_000.mp4", []string{"a.wav"}, 0)
	if err != nil {
		t.Fatalf("Mux() error = %v", err)
	}

	if !res.Stretched {
		t.Fatal("video should be stretched for 1s overrun")
	}
	if len(ops.stretches) != 1 {
		t.Fatalf("StretchVideo calls = %d, want 1", len(ops.stretches))
	}
	if got := ops.stretches[0]; got < 1.099 || got > 1.101 {
		t.Errorf("stretch factor = %v, want 1.1", got)
	}
	if len(ops.remuxes) != 1 || !strings.Contains(ops.remuxes[0], "stretched") {
		t.Errorf("remux sources = %v, want stretched video", ops.remuxes)
	}
}

func TestMuxShortAudioNeverCompressesVideo(t *testing.T) {
	t.Parallel()

	// 200s of dubbed audio against a 300s chunk: the picture must keep its
	// pace, never compress to meet a short track.
	ops := &fakeOps{}
	m := newMuxer(ops, 300*time.Second, 200*time.Second)

	res, err := m.Mux(context.Background(), t.TempDir(), "chunk_000.mp4", []string{"a.wav"}, 0)
	if err != nil {
		t.Fatalf("Mux() error = %v", err)
	}

	if res.Stretched || len(ops.stretches) != 0 {
		t.Errorf("StretchVideo calls = %v, want none for short audio", ops.stretches)
	}
	if len(ops.remuxes) != 1 || ops.remuxes[0] != "chunk_000.mp4" {
		t.Errorf("remux sources = %v, want original chunk untouched", ops.remuxes)
	}
}

func TestMuxFreezeBudgetExtendsVideo(t *testing.T) {
	t.Parallel()

	// 10s video, 1s freeze budget, 11s audio: the frozen video matches
	// the track exactly, so no stretch is needed.
	ops := &fakeOps{}
	m := newMuxer(ops, 10*time.Second, 11*time.Second)

	res, err := m.Mux(context.Background(), t.TempDir(), "chunk_000.mp4", []string{"a.wav"}, time.Second)
	if err != nil {
		t.Fatalf("Mux() error = %v", err)
	}

	if res.Frozen != time.Second {
		t.Errorf("Frozen = %v, want 1s", res.Frozen)
	}
	if len(ops.freezes) != 1 || ops.freezes[0] != time.Second {
		t.Errorf("FreezeFrame calls = %v, want one 1s call", ops.freezes)
	}
	if res.Stretched || len(ops.stretches) != 0 {
		t.Error("stretch applied although freeze covered the overrun")
	}
	if len(ops.remuxes) != 1 || !strings.Contains(ops.remuxes[0], "frozen") {
		t.Errorf("remux sources = %v, want frozen video", ops.remuxes)
	}
}

func TestMuxTinyFreezeBudgetIgnored(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{}
	m := newMuxer(ops, 10*time.Second, 10*time.Second+80*time.Millisecond)

	res, err := m.Mux(context.Background(), t.TempDir(), "chunk_000.mp4", []string{"a.wav"}, 80*time.Millisecond)
	if err != nil {
		t.Fatalf("Mux() error = %v", err)
	}
	if res.Frozen != 0 || len(ops.freezes) != 0 {
		t.Error("freeze applied below tolerance")
	}
	if res.Stretched {
		t.Error("stretch applied below tolerance")
	}
}

func TestMuxFailureShipsOriginalChunk(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{remuxErr: errors.New("codec mismatch")}
	m := newMuxer(ops, 10*time.Second, 10*time.Second)

	res, err := m.Mux(context.Background(), t.TempDir(), "chunk_002.mp4", []string{"a.wav"}, 0)
	if err != nil {
		t.Fatalf("Mux() error = %v, want downgraded fallback", err)
	}
	if !res.UsedFallback {
		t.Fatal("expected fallback result")
	}
	if res.Path != "chunk_002.mp4" {
		t.Errorf("fallback path = %q, want original chunk", res.Path)
	}
}

func TestMuxEmptyClipsFallsBack(t *testing.T) {
	t.Parallel()

	ops := &fakeOps{}
	m := newMuxer(ops, 10*time.Second, 10*time.Second)

	res, err := m.Mux(context.Background(), t.TempDir(), "chunk_000.mp4", nil, 0)
	if err != nil {
		t.Fatalf("Mux() error = %v", err)
	}
	if !res.UsedFallback {
		t.Error("expected fallback for empty clip list")
	}
	if ops.concats != 0 {
		t.Errorf("ConcatAudio called %d times", ops.concats)
	}
}

func TestMuxCancelledContextPropagates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ops := &fakeOps{concatErr: context.Canceled}
	m := newMuxer(ops, 10*time.Second, 10*time.Second)
	cancel()

	_, err := m.Mux(ctx, t.TempDir(), "chunk_000.mp4", []string{"a.wav"}, 0)
	if err == nil {
		t.Fatal("expected error after cancellation, not fallback")
	}
	if !errors.Is(err, mux.ErrMuxFailed) {
		t.Errorf("error = %v, want ErrMuxFailed wrap", err)
	}
}
