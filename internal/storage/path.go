package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var jobIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildResultPath returns the object key a completed batch job's staged
// result table lives under. Keys are partitioned by submission date so the
// janitor can reason about age from the job record alone.
func BuildResultPath(jobID string, submittedAt time.Time) (string, error) {
	if !jobIDPattern.MatchString(jobID) {
		return "", fmt.Errorf("invalid job id: %q", jobID)
	}
	ts := submittedAt.UTC()
	return path.Join(
		"results",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("job-%s.parquet", jobID),
	), nil
}
