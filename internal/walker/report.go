package walker

import "time"

// Failure is one folder or video that did not make it into a feed.
type Failure struct {
	Year   string
	Folder string
	Video  string
	Err    error
}

// Report summarizes a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// VideosRoot is false when the drive has no "Videos" folder.
	VideosRoot bool
	// Folders counts the year folders that passed the filter.
	Folders int
	// Skipped lists folders whose names are too short to carry a year.
	Skipped []string
	// Written counts items per year.
	Written map[string]int
	// Malformed lists videos whose embed link lacked the embed marker.
	Malformed []string
	Failures  []Failure
}

func newReport(runID string, now time.Time) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: now,
		Written:   make(map[string]int),
	}
}

// Total is the number of items written across all years.
func (r *Report) Total() int {
	n := 0
	for _, c := range r.Written {
		n += c
	}
	return n
}

func (r *Report) fail(year, folder, video string, err error) {
	r.Failures = append(r.Failures, Failure{Year: year, Folder: folder, Video: video, Err: err})
}
