package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Result holds what the media prober could learn about a file.
type Result struct {
	DurationSeconds float64
	Valid           bool
}

// Prober is the media-inspection boundary: duration probing and
// representative-frame extraction. Implementations must be safe for
// concurrent use.
type Prober interface {
	Probe(ctx context.Context, path string) (Result, error)
	// ExtractFrame returns encoded PNG bytes of the frame at atSeconds,
	// or an error if the file has no extractable frame there.
	ExtractFrame(ctx context.Context, path string, atSeconds float64) ([]byte, error)
}

// FFmpegProber implements Prober by shelling out to ffprobe/ffmpeg.
type FFmpegProber struct {
	// Timeout bounds a single ffprobe/ffmpeg invocation.
	Timeout time.Duration
}

// NewFFmpegProber returns an FFmpegProber with a sane default timeout.
func NewFFmpegProber() *FFmpegProber {
	return &FFmpegProber{Timeout: 15 * time.Second}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects path with ffprobe and reports its duration.
func (p *FFmpegProber) Probe(ctx context.Context, path string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("running ffprobe on %s: %w", path, err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return Result{}, fmt.Errorf("parsing ffprobe output for %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		log.WithField("path", path).Debug("ffprobe reported no parseable duration")
		return Result{Valid: false}, nil
	}
	return Result{DurationSeconds: duration, Valid: true}, nil
}

// ExtractFrame decodes one frame at atSeconds and returns it PNG-encoded.
func (p *FFmpegProber) ExtractFrame(ctx context.Context, path string, atSeconds float64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-v", "quiet",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "png",
		"pipe:1",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extracting frame from %s at %.3fs: %w", path, atSeconds, err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("no frame data produced for %s at %.3fs", path, atSeconds)
	}
	return out.Bytes(), nil
}
