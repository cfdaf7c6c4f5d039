package organize

import (
	"time"
)

// Status is the outcome of one organization attempt.
type Status string

const (
	StatusPending         Status = ""
	StatusSuccess         Status = "Success"
	StatusFailure         Status = "Failure"
	StatusSkippedExisting Status = "SkippedExisting"
)

// KindEpisode is the only result kind produced by the engine.
const KindEpisode = "episode"

// Result records one attempt to organize a source file. ID is empty until the
// result is first persisted.
type Result struct {
	ID                     string
	Date                   time.Time
	OriginalPath           string
	OriginalFileName       string
	FileSize               int64
	Kind                   string
	ExtractedName          string
	ExtractedYear          *int
	ExtractedSeason        *int
	ExtractedEpisode       *int
	ExtractedEndingEpisode *int
	TargetPath             string
	Status                 Status
	StatusMessage          string
	DuplicatePaths         []string
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.ExtractedYear = cloneInt(r.ExtractedYear)
	out.ExtractedSeason = cloneInt(r.ExtractedSeason)
	out.ExtractedEpisode = cloneInt(r.ExtractedEpisode)
	out.ExtractedEndingEpisode = cloneInt(r.ExtractedEndingEpisode)
	if r.DuplicatePaths != nil {
		out.DuplicatePaths = append([]string(nil), r.DuplicatePaths...)
	}
	return &out
}

func (r *Result) succeed() {
	r.Status = StatusSuccess
	r.StatusMessage = ""
}

func (r *Result) fail(message string) {
	r.Status = StatusFailure
	r.StatusMessage = message
}

func (r *Result) skip(message string) {
	r.Status = StatusSkippedExisting
	r.StatusMessage = message
}

// suppresses reports whether prev makes next redundant: same status and
// message, and next is not a success.
func suppresses(prev, next *Result) bool {
	if prev == nil || next.Status == StatusSuccess {
		return false
	}
	return prev.Status == next.Status && prev.StatusMessage == next.StatusMessage
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func intPtr(v int) *int { return &v }
