package audit

import (
	"errors"
	"testing"
)

func TestParseNewestJobFromTableRow(t *testing.T) {
	page := `<html><body><table>
		<tr class="jobRow"><td>Audit Request</td><td>Complete</td>
			<td><a href="read.html?id=JobQueueRun%21%21%21%21ABC123">View</a></td></tr>
	</table></body></html>`

	job, err := ParseNewestJob(page)
	if err != nil {
		t.Fatalf("ParseNewestJob failed: %v", err)
	}
	if job.JobID != "JobQueueRun!!!!ABC123" {
		t.Errorf("Expected decoded job id, got %q", job.JobID)
	}
	if !job.Status.IsReady() {
		t.Errorf("Expected complete status, got %s", job.Status)
	}
}

func TestParseNewestJobWithJSESSIONIDHref(t *testing.T) {
	page := `<html><body>
		<tr><td>done</td><td><a href="read.html;jsessionid=9F3A?id=JobQueueRun!!!!XYZ">read</a></td></tr>
	</body></html>`

	job, err := ParseNewestJob(page)
	if err != nil {
		t.Fatalf("ParseNewestJob failed: %v", err)
	}
	if job.JobID != "JobQueueRun!!!!XYZ" {
		t.Errorf("Expected JobQueueRun!!!!XYZ, got %q", job.JobID)
	}
}

func TestParseNewestJobProcessingRow(t *testing.T) {
	page := `<html><table>
		<tr><td>Processing</td><td><a href="read.html?id=JobQueueRun!!!!P1">link</a></td></tr>
	</table></html>`

	job, err := ParseNewestJob(page)
	if err != nil {
		t.Fatalf("ParseNewestJob failed: %v", err)
	}
	if !job.Status.IsProcessing() {
		t.Errorf("Expected processing status, got %s", job.Status)
	}
}

func TestParseNewestJobErrorRow(t *testing.T) {
	page := `<html><table>
		<tr><td>Failed: student record locked</td><td><a href="read.html?id=JobQueueRun!!!!E1">link</a></td></tr>
	</table></html>`

	job, err := ParseNewestJob(page)
	if err != nil {
		t.Fatalf("ParseNewestJob failed: %v", err)
	}
	if !job.Status.IsFailed() {
		t.Errorf("Expected failed status, got %s", job.Status)
	}
}

func TestParseNewestJobClassHintFallback(t *testing.T) {
	page := `<html><table>
		<tr class="status-pending"><td></td><td><a href="read.html?id=JobQueueRun!!!!C1">link</a></td></tr>
	</table></html>`

	job, err := ParseNewestJob(page)
	if err != nil {
		t.Fatalf("ParseNewestJob failed: %v", err)
	}
	if !job.Status.IsProcessing() {
		t.Errorf("Expected processing from class hint, got %s", job.Status)
	}
}

func TestParseNewestJobDefaultsToComplete(t *testing.T) {
	page := `<html><table>
		<tr><td></td><td><a href="read.html?id=JobQueueRun!!!!D1">link</a></td></tr>
	</table></html>`

	job, err := ParseNewestJob(page)
	if err != nil {
		t.Fatalf("ParseNewestJob failed: %v", err)
	}
	if !job.Status.IsReady() {
		t.Errorf("Expected default complete status, got %s", job.Status)
	}
}

func TestParseNewestJobFallbackReadLink(t *testing.T) {
	// No table rows at all, just a bare link.
	page := `<html><body><a href="/audit/read.html?id=JobQueueRun!!!!F2">result</a></body></html>`

	job, err := ParseNewestJob(page)
	if err != nil {
		t.Fatalf("ParseNewestJob failed: %v", err)
	}
	if job.JobID != "JobQueueRun!!!!F2" {
		t.Errorf("Expected JobQueueRun!!!!F2, got %q", job.JobID)
	}
	if job.Status.State != JobUnknown {
		t.Errorf("Expected unknown status for fallback extraction, got %s", job.Status)
	}
	// Only Complete is ready; unknown jobs stay in the poll loop.
	if job.Status.IsReady() {
		t.Error("Unknown status must not report ready")
	}
}

func TestParseNewestJobRawTextFallback(t *testing.T) {
	page := `<script>var job = "JobQueueRun!!!!RAW42";</script>`

	job, err := ParseNewestJob(page)
	if err != nil {
		t.Fatalf("ParseNewestJob failed: %v", err)
	}
	if job.JobID != "JobQueueRun!!!!RAW42" {
		t.Errorf("Expected JobQueueRun!!!!RAW42, got %q", job.JobID)
	}
}

func TestParseNewestJobEmptyPage(t *testing.T) {
	_, err := ParseNewestJob("<html><body>No audits here</body></html>")
	if !errors.Is(err, ErrNoJobFound) {
		t.Errorf("Expected ErrNoJobFound, got %v", err)
	}
}

func TestParseNewestJobPicksFirstRow(t *testing.T) {
	page := `<html><table>
		<tr><td>Complete</td><td><a href="read.html?id=JobQueueRun!!!!NEW">n</a></td></tr>
		<tr><td>Complete</td><td><a href="read.html?id=JobQueueRun!!!!OLD">o</a></td></tr>
	</table></html>`

	job, err := ParseNewestJob(page)
	if err != nil {
		t.Fatalf("ParseNewestJob failed: %v", err)
	}
	if job.JobID != "JobQueueRun!!!!NEW" {
		t.Errorf("Expected first row to win, got %q", job.JobID)
	}
}

func TestParseAllJobs(t *testing.T) {
	page := `<html><table>
		<tr><td>Complete</td><td><a href="read.html?id=JobQueueRun!!!!A">a</a></td></tr>
		<tr><td>Processing</td><td><a href="read.html?id=JobQueueRun!!!!B">b</a></td></tr>
	</table></html>`

	jobs := ParseAllJobs(page)
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestDecodeJobID(t *testing.T) {
	cases := map[string]string{
		"JobQueueRun%21%21%21%21ABC": "JobQueueRun!!!!ABC",
		"JobQueueRun!!!!ABC":         "JobQueueRun!!!!ABC",
		"a%20b%2Fc%3Ad":              "a b/c:d",
	}
	for in, want := range cases {
		if got := decodeJobID(in); got != want {
			t.Errorf("decodeJobID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPageIndicatesProcessing(t *testing.T) {
	if !PageIndicatesProcessing("<html>Please wait, autoPoll enabled</html>") {
		t.Error("Expected processing indication")
	}
	if PageIndicatesProcessing("<html>All done</html>") {
		t.Error("Unexpected processing indication")
	}
}
