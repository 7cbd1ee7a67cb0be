package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Codec settings per output container.
type codecs struct {
	video string
	audio string
}

var containerCodecs = map[string]codecs{
	"mp4":  {video: "libx264", audio: "aac"},
	"webm": {video: "libvpx-vp9", audio: "libopus"},
}

// qualityPresets maps quality to a constant rate factor and x264 preset.
var qualityPresets = map[string]struct {
	crf    int
	preset string
}{
	"low":    {crf: 30, preset: "veryfast"},
	"medium": {crf: 23, preset: "medium"},
	"high":   {crf: 18, preset: "slow"},
}

// Clip is one timed still image in a slideshow.
type Clip struct {
	File            string
	DurationSeconds float64
}

// ConcatList renders an ffconcat script for the concat demuxer. The last
// file is repeated so its duration is honoured.
func ConcatList(clips []Clip) []byte {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, clip := range clips {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcat(clip.File))
		fmt.Fprintf(&b, "duration %s\n", formatSeconds(clip.DurationSeconds))
	}
	if len(clips) > 0 {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcat(clips[len(clips)-1].File))
	}
	return []byte(b.String())
}

func escapeConcat(name string) string {
	return strings.ReplaceAll(name, "'", `'\''`)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// SlideshowSpec describes the image-sequence encode.
type SlideshowSpec struct {
	ConcatFile string
	Output     string
	Width      int
	Height     int
	FPS        int
	Format     string
	Quality    string
}

// SlideshowArgs builds argv that encodes timed stills into a silent video at
// the target size, letterboxing when aspect ratios differ.
func SlideshowArgs(spec SlideshowSpec) []string {
	codec := codecsFor(spec.Format)
	q := qualityPresets[spec.Quality]
	if q.preset == "" {
		q = qualityPresets["medium"]
	}
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,format=yuv420p",
		spec.Width, spec.Height, spec.Width, spec.Height,
	)
	args := []string{
		"-hide_banner", "-y",
		"-f", "concat", "-safe", "0", "-i", spec.ConcatFile,
		"-vf", filter,
		"-r", strconv.Itoa(spec.FPS),
		"-c:v", codec.video,
		"-pix_fmt", "yuv420p",
		"-crf", strconv.Itoa(q.crf),
	}
	if codec.video == "libx264" {
		args = append(args, "-preset", q.preset, "-movflags", "+faststart")
	} else {
		args = append(args, "-b:v", "0", "-row-mt", "1")
	}
	return append(args, "-an", spec.Output)
}

// MuxSpec describes the final video plus narration mux.
type MuxSpec struct {
	Video  string
	Audio  string
	Output string
	Format string
}

// MuxArgs builds argv that copies the video stream, encodes the narration,
// and trims to the shorter input.
func MuxArgs(spec MuxSpec) []string {
	codec := codecsFor(spec.Format)
	args := []string{
		"-hide_banner", "-y",
		"-i", spec.Video,
		"-i", spec.Audio,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", codec.audio,
		"-b:a", "128k",
		"-shortest",
	}
	if codec.video == "libx264" {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, spec.Output)
}

func codecsFor(format string) codecs {
	if c, ok := containerCodecs[strings.ToLower(format)]; ok {
		return c
	}
	return containerCodecs["mp4"]
}
