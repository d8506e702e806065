// Package assemble joins the per-chunk dubbed videos back into one file.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/alnah/go-dub/internal/logging"
	"github.com/samber/lo"
)

// ErrIncomplete indicates chunks are missing or duplicated; assembling a
// partial video would silently drop footage.
var ErrIncomplete = errors.New("chunk set incomplete")

// ChunkResult is one finished chunk ready for assembly.
type ChunkResult struct {
	Index        int
	Path         string
	UsedFallback bool // shipped with original audio
}

// ConcatOps is the ffmpeg operation the assembler needs.
type ConcatOps interface {
	ConcatVideo(ctx context.Context, segmentPaths []string, outputPath string) error
}

// Assembler validates chunk completeness and concatenates in index order.
type Assembler struct {
	ops ConcatOps
	log *logging.Logger
}

// New creates an Assembler.
func New(ops ConcatOps, log *logging.Logger) *Assembler {
	return &Assembler{ops: ops, log: log}
}

// Assemble writes the final video to outputPath. Every index from 0 to
// len(chunks)-1 must be present exactly once; input order does not matter.
func (a *Assembler) Assemble(ctx context.Context, chunks []ChunkResult, outputPath string) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks", ErrIncomplete)
	}

	ordered := make([]ChunkResult, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	for i, c := range ordered {
		if c.Index != i {
			return fmt.Errorf("%w: expected index %d, have %d", ErrIncomplete, i, c.Index)
		}
		if c.Path == "" {
			return fmt.Errorf("%w: chunk %d has no output", ErrIncomplete, i)
		}
	}

	if fallbacks := lo.CountBy(ordered, func(c ChunkResult) bool { return c.UsedFallback }); fallbacks > 0 {
		a.log.Infof("assembling with %d/%d chunks carrying original audio", fallbacks, len(ordered))
	}

	paths := lo.Map(ordered, func(c ChunkResult, _ int) string { return c.Path })
	if err := a.ops.ConcatVideo(ctx, paths, outputPath); err != nil {
		return fmt.Errorf("assembling final video: %w", err)
	}
	return nil
}
