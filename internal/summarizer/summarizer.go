package summarizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nguyentantai21042004/transcript-flow/internal/fileutil"
)

const summaryPrompt = `You are an expert at analysing recorded lectures and meetings. Using the transcript below, write a DETAILED summary in the same language as the transcript.

Requirements:
- Start with a one-sentence overview title describing the topic
- List ALL main points or steps in the order they appear
- Explain each point in detail, including notes, tips and warnings
- Keep technical terms as spoken, with the English term in parentheses when different
- Use markdown: headings, bullet points, bold for key terms
- Finish with an "Important notes" section if anything needs emphasis

Transcript:
---
%s
---`

// SummarizeAll summarizes every final transcript in transcriptDir that has
// no summary in destDir yet. Each summary is written as <base>.md plus
// <base>.docx, with the transcript itself exported as <base>_transcript.docx.
// Transcripts are left in place.
func (s *implSummarizer) SummarizeAll(ctx context.Context, transcriptDir, destDir string) (Report, error) {
	var report Report

	transcripts, err := discoverTranscripts(transcriptDir)
	if err != nil {
		return report, fmt.Errorf("discover transcripts: %w", err)
	}

	if len(transcripts) == 0 {
		s.logger.Info(ctx, "No transcripts found in %s", transcriptDir)
		return report, nil
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return report, fmt.Errorf("create dest dir: %w", err)
	}

	s.logger.Info(ctx, "Found %d transcripts", len(transcripts))

	for i, path := range transcripts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		name := fileutil.BaseName(path)
		mdPath := filepath.Join(destDir, name+".md")
		if fileutil.Exists(mdPath) {
			s.logger.Debug(ctx, "Summary already exists: %s", mdPath)
			report.Skipped++
			continue
		}

		s.logger.Info(ctx, "[%d/%d] Summarizing: %s", i+1, len(transcripts), name)
		if err := s.summarize(ctx, name, path, destDir, mdPath); err != nil {
			s.logger.Error(ctx, "Failed to summarize %s: %v", name, err)
			report.Failed++
			if errors.Is(err, ErrNoAPIKeys) {
				return report, err
			}
			continue
		}

		s.logger.Info(ctx, "[DONE] %s -> %s", name, mdPath)
		report.Succeeded++
	}

	s.logger.Info(ctx, "Summary complete: %d success, %d skipped, %d failed",
		report.Succeeded, report.Skipped, report.Failed)
	return report, nil
}

func (s *implSummarizer) summarize(ctx context.Context, name, path, destDir, mdPath string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	transcript := strings.TrimSpace(string(content))
	if transcript == "" {
		return fmt.Errorf("%s is empty", path)
	}

	summary, err := s.generator.Generate(ctx, fmt.Sprintf(summaryPrompt, transcript))
	if err != nil {
		return err
	}
	summary = strings.TrimSpace(summary)

	// docx exports are secondary; the .md marks the transcript as summarized
	if err := markdownToDocx(name, summary, filepath.Join(destDir, name+".docx")); err != nil {
		s.logger.Warn(ctx, "Failed to export summary docx for %s: %v", name, err)
	}
	if err := transcriptToDocx(name, transcript, filepath.Join(destDir, name+"_transcript.docx")); err != nil {
		s.logger.Warn(ctx, "Failed to export transcript docx for %s: %v", name, err)
	}

	md := fmt.Sprintf("# %s\n\n_%s_\n\n%s\n", name, time.Now().Format("2006-01-02 15:04"), summary)
	return fileutil.WriteFile(mdPath, []byte(md))
}

func discoverTranscripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.ToLower(filepath.Ext(e.Name())) == ".txt" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(files)
	return files, nil
}
