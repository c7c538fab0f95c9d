package domain

// JobStatus is the status reported to callers for an analysis job
type JobStatus string

// Job status constants
const (
	JobStatusSubmitted  JobStatus = "SUBMITTED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusNoContent  JobStatus = "NO_CONTENT"
	JobStatusError      JobStatus = "ERROR"
)

// IsTerminal reports whether a caller should stop polling
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusNoContent, JobStatusError:
		return true
	default:
		return false
	}
}

func (s JobStatus) String() string {
	return string(s)
}

// AnalysisResult is the projection of one upstream analysis entry
type AnalysisResult struct {
	Classification   string `json:"classification"`
	Filter           string `json:"filter"`
	OriginalFileName string `json:"originalFileName"`
	StartOffset      string `json:"startOffset"`
	EndOffset        string `json:"endOffset"`
}

// JobIDSource tells where a job identifier came from
type JobIDSource string

const (
	JobIDFromUpstream JobIDSource = "upstream"
	JobIDSynthesized  JobIDSource = "synthesized"
)
