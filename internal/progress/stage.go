package progress

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is one phase of a video assembly run.
type Stage string

const (
	StagePreparing       Stage = "preparing"
	StageGeneratingAudio Stage = "generating_audio"
	StageCreatingSlides  Stage = "creating_slides"
	StageAssemblingVideo Stage = "assembling_video"
	StageFinalizing      Stage = "finalizing"
	StageComplete        Stage = "complete"
)

type span struct {
	lo, hi float64
}

var ranges = map[Stage]span{
	StagePreparing:       {0, 5},
	StageGeneratingAudio: {5, 35},
	StageCreatingSlides:  {35, 65},
	StageAssemblingVideo: {65, 90},
	StageFinalizing:      {90, 99},
	StageComplete:        {100, 100},
}

var order = []Stage{
	StagePreparing,
	StageGeneratingAudio,
	StageCreatingSlides,
	StageAssemblingVideo,
	StageFinalizing,
	StageComplete,
}

// Stages lists the stages in execution order.
func Stages() []Stage {
	return append([]Stage(nil), order...)
}

// Range returns the overall percent span a stage occupies.
func (s Stage) Range() (float64, float64) {
	r := ranges[s]
	return r.lo, r.hi
}

// Index returns the stage position in execution order, or -1.
func (s Stage) Index() int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

// Label renders the stage for humans, e.g. "Generating Audio".
func (s Stage) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// Scale maps a stage-local fraction in [0,1] onto the overall percent.
func (s Stage) Scale(fraction float64) float64 {
	lo, hi := s.Range()
	fraction = min(max(fraction, 0), 1)
	return lo + (hi-lo)*fraction
}
