package model

import (
	"time"
)

// ReportRequest contains the parameters of a report job. It is immutable
// once the job is created.
type ReportRequest struct {
	StartDate   string          `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string          `json:"endDate" validate:"required,datetime=2006-01-02"`
	Sections    []ReportSection `json:"sections" validate:"required,min=1"`
	TrendMonths int             `json:"trendMonths,omitempty" validate:"omitempty,min=1,max=24"`
}

// Period returns the closed date interval covered by the request.
func (r *ReportRequest) Period() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	// The end date covers the whole day.
	end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end, nil
}

// Includes reports whether the given section was requested, either directly
// or through the complete report.
func (r *ReportRequest) Includes(section ReportSection) bool {
	for _, s := range r.Sections {
		if s == section || s == SectionComplete {
			return true
		}
	}
	return false
}

// ReportSubmitResponse is returned by POST /api/reports.
type ReportSubmitResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReportStatusResponse is the poller's view of a job.
type ReportStatusResponse struct {
	JobID        string     `json:"jobId"`
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"`
	StatusDetail string     `json:"statusDetail,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorDetail  string     `json:"errorDetail,omitempty"`
	DownloadURL  string     `json:"downloadUrl,omitempty"`
	ResultSize   int64      `json:"resultSizeBytes,omitempty"`
}

// ReportDownload carries a finished artifact to the transport layer.
type ReportDownload struct {
	Content     []byte
	ContentType string
	FileName    string
	Size        int64
}
