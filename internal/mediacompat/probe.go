package mediacompat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Probe is the subset of "ffprobe -print_format json -show_format -show_streams" output we use.
type Probe struct {
	Format  Format   `json:"format"`
	Streams []Stream `json:"streams"`
}

type Format struct {
	FormatName string `json:"format_name"`
	Size       string `json:"size"`
}

type Stream struct {
	Index       int            `json:"index"`
	CodecType   string         `json:"codec_type"`
	CodecName   string         `json:"codec_name"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Disposition map[string]int `json:"disposition"`
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(data []byte) (*Probe, error) {
	var p Probe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}
	return &p, nil
}

// VideoStream returns the first real video stream. Embedded cover art does not count.
func (p *Probe) VideoStream() *Stream {
	for i := range p.Streams {
		s := &p.Streams[i]
		if s.CodecType == "video" && s.Disposition["attached_pic"] == 0 {
			return s
		}
	}
	return nil
}

func (p *Probe) AudioStream() *Stream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	return nil
}

// IsMP4Family reports whether the container is one Telegram clients stream inline.
func (p *Probe) IsMP4Family() bool {
	for _, name := range strings.Split(strings.ToLower(p.Format.FormatName), ",") {
		switch strings.TrimSpace(name) {
		case "mp4", "mov", "m4a":
			return true
		}
	}
	return false
}

// IsH264 accepts ffprobe codec names as well as yt-dlp vcodec strings like "avc1.64001f".
func IsH264(codec string) bool {
	c := strings.ToLower(strings.TrimSpace(codec))
	return c == "h264" || strings.HasPrefix(c, "avc")
}

// IsCompatibleAudio reports whether codec plays inside an mp4 on Telegram clients.
// An empty codec means there is no audio track, which is fine.
func IsCompatibleAudio(codec string) bool {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "", "aac", "mp3":
		return true
	default:
		return false
	}
}
