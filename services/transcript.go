package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"vidquiz/logger"
)

const (
	// segmentWindowSeconds is how far back from the current playback
	// position the content segment reaches.
	segmentWindowSeconds = 60

	// validationProbeTime is the playback position probed during room
	// creation to confirm the video has an accessible transcript.
	validationProbeTime = 10
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`youtube\.com/embed/([A-Za-z0-9_-]+)`),
}

// TranscriptService fetches caption text for a video from the external
// transcript API. Calls are bounded by the client timeout so a slow
// upstream can stall at most one room's handler, never the process.
type TranscriptService struct {
	client  *http.Client
	baseURL string
}

type transcriptEntry struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

func NewTranscriptService(baseURL string, timeout time.Duration) *TranscriptService {
	return &TranscriptService{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ExtractVideoID pulls the video ID out of a watch, short or embed URL.
func (s *TranscriptService) ExtractVideoID(url string) (string, error) {
	for _, pattern := range videoIDPatterns {
		if match := pattern.FindStringSubmatch(url); match != nil {
			return match[1], nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVideoURL, url)
}

// Segment returns the transcript text covering the window that ends at
// currentTime and starts segmentWindowSeconds earlier.
func (s *TranscriptService) Segment(ctx context.Context, videoID string, currentTime float64) (string, error) {
	entries, err := s.fetchTranscript(ctx, videoID)
	if err != nil {
		return "", err
	}

	end := currentTime
	start := end - segmentWindowSeconds
	if start < 0 {
		start = 0
	}

	var parts []string
	for _, entry := range entries {
		if entry.Start >= start && entry.Start <= end {
			parts = append(parts, entry.Text)
		}
	}

	segment := strings.Join(parts, " ")
	logger.S().Debugf("transcript segment for %s [%.0fs, %.0fs]: %d entries", videoID, start, end, len(parts))
	return segment, nil
}

// Validate probes the transcript early in the video and fails when the
// source is unreachable or the video has no captions.
func (s *TranscriptService) Validate(ctx context.Context, videoID string) error {
	_, err := s.Segment(ctx, videoID, validationProbeTime)
	return err
}

func (s *TranscriptService) fetchTranscript(ctx context.Context, videoID string) ([]transcriptEntry, error) {
	url := fmt.Sprintf("%s/transcripts/%s", s.baseURL, videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build transcript request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcript request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no transcript available for video %s", videoID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript API returned status %d", resp.StatusCode)
	}

	var entries []transcriptEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode transcript response: %w", err)
	}
	return entries, nil
}
