package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// VideoProber inspects a rendered file.
type VideoProber interface {
	Probe(ctx context.Context, path string) (VideoMetrics, error)
}

// FFProbe reads stream and format information with ffprobe.
type FFProbe struct {
	Runner ProcessRunner
	Binary string
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

func (p FFProbe) Probe(ctx context.Context, path string) (VideoMetrics, error) {
	var m VideoMetrics
	info, err := os.Stat(path)
	if err != nil {
		return m, err
	}
	m.Exists = info.Size() > 0
	m.SizeBytes = info.Size()

	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	res, err := p.Runner.Run(ctx, Command{
		Name:    bin,
		Args:    []string{"-v", "error", "-show_streams", "-show_format", "-of", "json", path},
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return m, err
	}
	if res.ExitCode != 0 {
		return m, fmt.Errorf("ffprobe exited with code %d: %s", res.ExitCode, tailLines(res.Stderr, 3))
	}
	return ParseProbeOutput([]byte(res.Stdout), m)
}

// ParseProbeOutput fills m from ffprobe's JSON.
func ParseProbeOutput(data []byte, m VideoMetrics) (VideoMetrics, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return m, fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if m.Width == 0 {
				m.Width, m.Height = s.Width, s.Height
			}
		case "audio":
			m.HasAudio = true
		}
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		m.DurationSeconds = d
	}
	if m.SizeBytes == 0 {
		if sz, err := strconv.ParseInt(out.Format.Size, 10, 64); err == nil {
			m.SizeBytes = sz
			m.Exists = sz > 0
		}
	}
	if br, err := strconv.ParseFloat(out.Format.BitRate, 64); err == nil {
		m.BitrateBps = br
	} else if m.DurationSeconds > 0 {
		m.BitrateBps = float64(m.SizeBytes) * 8 / m.DurationSeconds
	}
	return m, nil
}
