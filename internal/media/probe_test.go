package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeRunner records invocations and replies from a scripted queue.
type fakeRunner struct {
	calls   [][]string
	outputs []fakeResult
}

type fakeResult struct {
	output string
	err    error
}

func (f *fakeRunner) CombinedOutput(_ context.Context, name string, args []string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(f.outputs) == 0 {
		return nil, nil
	}
	r := f.outputs[0]
	f.outputs = f.outputs[1:]
	return []byte(r.output), r.err
}

func TestProbeParsesFFprobeOutput(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: []fakeResult{
		{output: "codec_type=video\ncodec_type=audio\nduration=723.456000\n"},
	}}
	p := NewFFProber("ffprobe", "ffmpeg", WithProberCommandRunner(runner))

	info, err := p.Probe(context.Background(), "input.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	want := time.Duration(723.456 * float64(time.Second))
	if info.Duration != want {
		t.Errorf("Duration = %v, want %v", info.Duration, want)
	}
	if !info.HasVideo || !info.HasAudio {
		t.Errorf("streams = video:%v audio:%v, want both", info.HasVideo, info.HasAudio)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("got %d command calls, want 1", len(runner.calls))
	}
	if runner.calls[0][0] != "ffprobe" {
		t.Errorf("first call binary = %q, want ffprobe", runner.calls[0][0])
	}
}

func TestProbeFallsBackToFFmpeg(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: []fakeResult{
		{output: "", err: errors.New("ffprobe: not found")},
		{output: "Input #0\n  Duration: 00:12:03.45, start: 0.0\n", err: errors.New("exit status 1")},
	}}
	p := NewFFProber("ffprobe", "ffmpeg", WithProberCommandRunner(runner))

	info, err := p.Probe(context.Background(), "input.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	want := 12*time.Minute + 3*time.Second + 450*time.Millisecond
	if info.Duration != want {
		t.Errorf("Duration = %v, want %v", info.Duration, want)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("got %d command calls, want 2", len(runner.calls))
	}
}

func TestProbeUnreadableFile(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: []fakeResult{
		{output: "", err: errors.New("exit status 1")},
		{output: "", err: errors.New("exit status 1")},
	}}
	p := NewFFProber("ffprobe", "ffmpeg", WithProberCommandRunner(runner))

	_, err := p.Probe(context.Background(), "garbage.bin")
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("Probe() error = %v, want ErrUnreadable", err)
	}
}

func TestParseFFprobeOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  string
		want    time.Duration
		wantErr bool
	}{
		{
			name:   "duration only",
			output: "duration=5.000000",
			want:   5 * time.Second,
		},
		{
			name:   "extra blank lines",
			output: "\nduration=1.500000\n\n",
			want:   1500 * time.Millisecond,
		},
		{
			name:    "missing duration",
			output:  "codec_type=video",
			wantErr: true,
		},
		{
			name:    "malformed duration",
			output:  "duration=N/A",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info, err := parseFFprobeOutput(tt.output)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.Duration != tt.want {
				t.Errorf("Duration = %v, want %v", info.Duration, tt.want)
			}
		})
	}
}

func TestParseDurationFromFFmpegOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  string
		want    time.Duration
		wantErr bool
	}{
		{
			name:   "duration banner",
			output: "  Duration: 01:02:03.45, start: 0.000000",
			want:   time.Hour + 2*time.Minute + 3*time.Second + 450*time.Millisecond,
		},
		{
			name:   "progress times fall back to last",
			output: "time=00:00:10.00 bitrate=x\ntime=00:00:20.50 bitrate=y",
			want:   20*time.Second + 500*time.Millisecond,
		},
		{
			name:    "nothing parseable",
			output:  "ffmpeg version 6.0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseDurationFromFFmpegOutput(tt.output)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProbeCommandArgs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: []fakeResult{
		{output: "duration=10.0\n"},
	}}
	p := NewFFProber("/usr/bin/ffprobe", "ffmpeg", WithProberCommandRunner(runner))

	if _, err := p.Probe(context.Background(), "clip.mp4"); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	joined := strings.Join(runner.calls[0], " ")
	for _, want := range []string{"-show_entries format=duration", "stream=codec_type", "clip.mp4"} {
		if !strings.Contains(joined, want) {
			t.Errorf("command %q missing %q", joined, want)
		}
	}
}
