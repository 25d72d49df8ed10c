package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/solmave/phonatia/internal/audioio"
	"github.com/solmave/phonatia/internal/blob"
	"github.com/solmave/phonatia/internal/ctc"
	"github.com/solmave/phonatia/internal/drift"
	"github.com/solmave/phonatia/internal/inference"
	"github.com/solmave/phonatia/internal/lexicon"
	"github.com/solmave/phonatia/internal/observe"
	"github.com/solmave/phonatia/internal/phoneme"
	"github.com/solmave/phonatia/internal/score"
	"github.com/solmave/phonatia/internal/store"
)

// Pipeline turns one submission into a persisted feedback report. All stage
// dependencies are injected; Reports and Drift may be nil, in which case the
// result is computed and logged but not persisted.
type Pipeline struct {
	Backend inference.Backend
	Fetcher blob.Fetcher
	Vocab   *phoneme.Vocabulary
	Lexicon *lexicon.Provider
	Reports store.Reports
	Drift   *drift.Monitor
}

// Process analyses one submission end to end. Returned errors are fatal for
// the message; drift tracking and curriculum derivation degrade without
// failing the submission.
func (p *Pipeline) Process(ctx context.Context, sub Submission) error {
	data, err := p.Fetcher.Fetch(ctx, sub.BlobURL)
	if err != nil {
		return fmt.Errorf("worker: submission %s: %w", sub.SubmissionID, err)
	}

	waveform, sampleRate, err := audioio.Decode(data)
	if err != nil {
		return fmt.Errorf("worker: submission %s: %w", sub.SubmissionID, err)
	}

	logits, err := p.Backend.ASRLogits(ctx, waveform, sampleRate)
	if err != nil {
		return fmt.Errorf("worker: submission %s: %w", sub.SubmissionID, err)
	}

	_, frameIDs, probs := ctc.GreedyDecode(logits, p.Vocab)
	segments := ctc.GroupSegments(frameIDs, probs, p.Vocab)

	// With a target available the free decode is replaced by a forced
	// alignment against it, so confidences refer to the expected phonemes.
	if target := p.Lexicon.Fetch(ctx, sub.ChildID); len(target) > 0 {
		targetIDs := make([]int, len(target))
		for i, ph := range target {
			targetIDs[i] = p.Vocab.IDOrBlank(ph)
		}
		assign := ctc.ViterbiAlign(logits, targetIDs)
		segments = ctc.AlignmentSegments(assign, probs, target, p.Vocab)
	}

	emotion, err := p.Backend.Emotion(ctx, waveform, sampleRate)
	if err != nil {
		return fmt.Errorf("worker: submission %s: %w", sub.SubmissionID, err)
	}

	total := score.Composite(segments, emotion)
	weakness, recommendation := score.Weakness(total)

	if p.Drift != nil {
		p.Drift.Observe(ctx, drift.Histogram(frameIDs, p.Vocab.Size()))
	}

	report := store.Report{
		SubmissionID:   sub.SubmissionID,
		Score:          total,
		Weakness:       weakness,
		Recommendation: recommendation,
		Segments:       segments,
		Emotion:        emotion,
	}
	curriculum := store.Curriculum{
		ChildID:          sub.ChildID,
		FocusPhonemesCSV: strings.Join(score.WeakestPhonemes(segments, p.Vocab), ","),
		Difficulty:       score.Difficulty(total),
	}

	if p.Reports == nil {
		observe.Logger(ctx).Info("report computed, persistence disabled",
			"submission", sub.SubmissionID, "score", total, "emotion", emotion)
		return nil
	}
	if err := p.Reports.SaveReportAndCurriculum(ctx, report, curriculum); err != nil {
		return fmt.Errorf("worker: submission %s: %w", sub.SubmissionID, err)
	}

	slog.Info("submission processed",
		"submission", sub.SubmissionID,
		"child", sub.ChildID,
		"score", total,
		"weakness", weakness,
		"emotion", emotion,
		"segments", len(segments),
	)
	return nil
}
