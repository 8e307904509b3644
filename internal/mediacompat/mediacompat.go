package mediacompat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/process"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/utils"
)

// Action is what has to happen to a file before Telegram can play it.
type Action int

const (
	ActionNone Action = iota
	// ActionRemux copies the streams into an mp4 container.
	ActionRemux
	// ActionTranscode re-encodes to H.264/AAC mp4.
	ActionTranscode
	// ActionAudioTranscode re-encodes an audio-only file to AAC m4a.
	ActionAudioTranscode
	// ActionReencodeAudio copies H.264 video and re-encodes only the audio to AAC mp4.
	ActionReencodeAudio
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionRemux:
		return "remux"
	case ActionTranscode:
		return "transcode"
	case ActionAudioTranscode:
		return "audio-transcode"
	case ActionReencodeAudio:
		return "reencode-audio"
	default:
		return "unknown"
	}
}

var ErrNoStreams = errors.New("file has neither video nor audio streams")

// Plan is the decision for one probed file.
type Plan struct {
	Action Action
	Media  models.MediaKind
}

// Decide picks the cheapest action that yields a playable file.
func Decide(p *Probe) (Plan, error) {
	video, audio := p.VideoStream(), p.AudioStream()
	audioCodec := ""
	if audio != nil {
		audioCodec = audio.CodecName
	}

	if video == nil {
		if audio == nil {
			return Plan{}, ErrNoStreams
		}
		if IsCompatibleAudio(audioCodec) {
			return Plan{Action: ActionNone, Media: models.MediaAudio}, nil
		}
		return Plan{Action: ActionAudioTranscode, Media: models.MediaAudio}, nil
	}

	if !IsH264(video.CodecName) {
		return Plan{Action: ActionTranscode, Media: models.MediaVideo}, nil
	}
	if !IsCompatibleAudio(audioCodec) {
		return Plan{Action: ActionReencodeAudio, Media: models.MediaVideo}, nil
	}
	if p.IsMP4Family() {
		return Plan{Action: ActionNone, Media: models.MediaVideo}, nil
	}
	return Plan{Action: ActionRemux, Media: models.MediaVideo}, nil
}

// Result describes the file to upload.
type Result struct {
	Path      string
	Media     models.MediaKind
	Converted bool
}

// Converter probes downloaded files and rewrites them with ffmpeg when needed.
type Converter struct {
	exec   process.Executor
	config *tvgconfig.Config
}

func NewConverter(exec process.Executor, config *tvgconfig.Config) *Converter {
	return &Converter{exec: exec, config: config}
}

func (c *Converter) ffprobe() string {
	if c.config.Tools.FfprobePath == "" {
		return "ffprobe"
	}
	return c.config.Tools.FfprobePath
}

func (c *Converter) ffmpeg() string {
	if c.config.Tools.FfmpegPath == "" {
		return "ffmpeg"
	}
	return c.config.Tools.FfmpegPath
}

// Probe runs ffprobe on path.
func (c *Converter) Probe(ctx context.Context, path string) (*Probe, error) {
	res, err := c.exec.Run(ctx, c.ffprobe(), []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}, nil)
	if err != nil {
		return nil, utils.WrapError(err, "ffprobe failed", map[string]any{
			"path":   path,
			"stderr": utils.LastLines(res.Stderr, 5),
		})
	}
	return ParseProbe([]byte(strings.Join(res.Stdout, "\n")))
}

// Convert makes path playable in Telegram. The original file is removed when a new one is written.
// Conversion is bounded by the configured conversion timeout. onStart, if set, is called right
// before ffmpeg runs, so it is not called for files that are already playable.
func (c *Converter) Convert(ctx context.Context, path string, onStart func()) (Result, error) {
	if timeout := c.config.Download.ConversionTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	log := logutils.Log.WithField("path", path)

	probe, err := c.Probe(ctx, path)
	if err != nil {
		return Result{}, c.conversionError(ctx, err)
	}
	plan, err := Decide(probe)
	if err != nil {
		return Result{}, tvgerrors.WrapDomainError(err, tvgerrors.ErrConversionFailed)
	}
	log = log.WithFields(map[string]any{
		"action": plan.Action.String(),
		"media":  string(plan.Media),
	})
	if plan.Action == ActionNone {
		log.Debug("File is already playable")
		return Result{Path: path, Media: plan.Media}, nil
	}

	out := outputPath(path, plan.Action)
	log.WithField("output", out).Info("Converting media")
	if onStart != nil {
		onStart()
	}
	res, err := c.exec.Run(ctx, c.ffmpeg(), ffmpegArgs(plan.Action, path, out), nil)
	if err != nil {
		_ = os.Remove(out)
		log.WithError(err).WithField("stderr", utils.LastLines(res.Stderr, 5)).Warn("ffmpeg failed")
		return Result{}, c.conversionError(ctx, err)
	}
	if _, err := os.Stat(out); err != nil {
		return Result{}, tvgerrors.WrapDomainError(err, tvgerrors.ErrConversionFailed)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to remove original file after conversion")
	}
	return Result{Path: out, Media: plan.Media, Converted: true}, nil
}

// conversionError keeps cancellation distinct; a conversion deadline is reported as a failed conversion.
func (*Converter) conversionError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return tvgerrors.WrapDomainError(err, tvgerrors.ErrCanceled)
	}
	de := tvgerrors.WrapDomainError(err, tvgerrors.ErrConversionFailed)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		de.WithDetails(map[string]any{"reason": "timeout"})
	}
	return de
}

func outputPath(path string, action Action) string {
	ext := ".mp4"
	if action == ActionAudioTranscode {
		ext = ".m4a"
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(filepath.Dir(path), base+".tg"+ext)
}

func ffmpegArgs(action Action, in, out string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", in}
	switch action {
	case ActionRemux:
		args = append(args, "-map", "0:v:0", "-map", "0:a:0?", "-c", "copy")
	case ActionTranscode:
		args = append(args,
			"-map", "0:v:0", "-map", "0:a:0?",
			"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
			"-pix_fmt", "yuv420p",
			"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
			"-c:a", "aac", "-b:a", "128k",
		)
	case ActionReencodeAudio:
		args = append(args, "-map", "0:v:0", "-map", "0:a:0", "-c:v", "copy", "-c:a", "aac", "-b:a", "128k")
	case ActionAudioTranscode:
		args = append(args, "-vn", "-c:a", "aac", "-b:a", "128k")
	}
	return append(args, "-movflags", "+faststart", out)
}
