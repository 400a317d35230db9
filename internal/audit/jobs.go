package audit

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// JobState classifies an audit job discovered on the list page.
type JobState int

const (
	// JobProcessing means the job is still being generated upstream.
	JobProcessing JobState = iota
	// JobComplete means the result page is ready to fetch.
	JobComplete
	// JobError means the upstream reported a terminal failure.
	JobError
	// JobUnknown means the row gave no usable status signal.
	JobUnknown
)

// JobStatus pairs a state with its diagnostic detail (error reason or the
// fallback strategy that produced it).
type JobStatus struct {
	State  JobState `json:"state"`
	Detail string   `json:"detail,omitempty"`
}

// IsReady reports whether the job result can be fetched.
func (s JobStatus) IsReady() bool { return s.State == JobComplete }

// IsProcessing reports whether the job is still running.
func (s JobStatus) IsProcessing() bool { return s.State == JobProcessing }

// IsFailed reports whether the upstream reported a terminal failure.
func (s JobStatus) IsFailed() bool { return s.State == JobError }

func (s JobStatus) String() string {
	var name string
	switch s.State {
	case JobProcessing:
		name = "processing"
	case JobComplete:
		name = "complete"
	case JobError:
		name = "error"
	default:
		name = "unknown"
	}
	if s.Detail == "" {
		return name
	}
	return name + "(" + s.Detail + ")"
}

// AuditJob is one job discovered from list.html. RawHref keeps the source
// fragment for diagnostics.
type AuditJob struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	RawHref string    `json:"raw_href,omitempty"`
}

var (
	jobIDRegex    = regexp.MustCompile(`[?&]id=([^&\s]+)`)
	jobQueueRegex = regexp.MustCompile(`JobQueueRun[!%21]+[A-Za-z0-9_\-]+`)
)

// ParseNewestJob extracts the newest audit job from the list page HTML.
//
// The page format is undocumented and inconsistent, so discovery runs an
// ordered cascade and the first strategy yielding at least one candidate
// wins; the first candidate from that strategy is assumed newest:
//
//  1. table rows holding a read-page link (job id from href, status from row)
//  2. any read-page link in the document
//  3. any link whose href matches the JobQueueRun token pattern
//  4. the token pattern anywhere in the raw page text
//
// Returns ErrNoJobFound when every strategy comes up empty.
func ParseNewestJob(htmlSrc string) (AuditJob, error) {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		// html.Parse almost never fails; fall through to text extraction.
		doc = nil
	}

	var jobs []AuditJob
	if doc != nil {
		jobs = jobsFromRows(doc)

		if len(jobs) == 0 {
			for _, link := range readLinks(doc) {
				if id, ok := extractJobIDFromHref(link); ok {
					jobs = append(jobs, AuditJob{
						JobID:   id,
						Status:  JobStatus{State: JobUnknown, Detail: "fallback extraction"},
						RawHref: link,
					})
				}
			}
		}

		if len(jobs) == 0 {
			for _, link := range allLinks(doc) {
				if m := jobQueueRegex.FindString(link); m != "" {
					jobs = append(jobs, AuditJob{
						JobID:   m,
						Status:  JobStatus{State: JobUnknown, Detail: "pattern match"},
						RawHref: link,
					})
				}
			}
		}
	}

	if len(jobs) == 0 {
		if m := jobQueueRegex.FindString(htmlSrc); m != "" {
			jobs = append(jobs, AuditJob{
				JobID:  m,
				Status: JobStatus{State: JobUnknown, Detail: "text extraction"},
			})
		}
	}

	if len(jobs) == 0 {
		return AuditJob{}, ErrNoJobFound
	}
	return jobs[0], nil
}

// ParseAllJobs returns every row-based job on the page, newest first. Used
// for diagnostics; the protocol only ever acts on the newest job.
func ParseAllJobs(htmlSrc string) []AuditJob {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return nil
	}
	return jobsFromRows(doc)
}

// PageIndicatesProcessing is a cheap keyword scan used for diagnostic logging
// only; status classification drives the actual control flow.
func PageIndicatesProcessing(htmlSrc string) bool {
	lower := strings.ToLower(htmlSrc)
	return strings.Contains(lower, "autopoll") ||
		strings.Contains(lower, "processing") ||
		strings.Contains(lower, "please wait") ||
		strings.Contains(lower, "generating") ||
		strings.Contains(lower, "in progress")
}

// jobsFromRows implements strategy 1: table rows containing a read link.
func jobsFromRows(doc *html.Node) []AuditJob {
	var jobs []AuditJob
	for _, row := range elementsByTag(doc, "tr") {
		link, href := firstReadLink(row)
		if link == nil {
			continue
		}
		id, ok := extractJobIDFromHref(href)
		if !ok {
			continue
		}
		jobs = append(jobs, AuditJob{
			JobID:   id,
			Status:  statusFromRow(row),
			RawHref: href,
		})
	}
	return jobs
}

// firstReadLink finds the first anchor under n whose href references the
// read result page.
func firstReadLink(n *html.Node) (*html.Node, string) {
	for _, a := range elementsByTag(n, "a") {
		href := attrValue(a, "href")
		if strings.Contains(href, "read") {
			return a, href
		}
	}
	return nil, ""
}

func readLinks(doc *html.Node) []string {
	var hrefs []string
	for _, a := range elementsByTag(doc, "a") {
		if href := attrValue(a, "href"); strings.Contains(href, "read") {
			hrefs = append(hrefs, href)
		}
	}
	return hrefs
}

func allLinks(doc *html.Node) []string {
	var hrefs []string
	for _, a := range elementsByTag(doc, "a") {
		if href := attrValue(a, "href"); href != "" {
			hrefs = append(hrefs, href)
		}
	}
	return hrefs
}

// extractJobIDFromHref pulls the job token out of a result-page href.
//
// Handles the observed upstream variants:
//   - read.html?id=JobQueueRun!!!!XXXX
//   - read.html;jsessionid=ABC?id=JobQueueRun!!!!XXXX
//   - percent-encoded tokens (%21 instead of !)
func extractJobIDFromHref(href string) (string, bool) {
	if m := jobIDRegex.FindStringSubmatch(href); m != nil {
		return decodeJobID(m[1]), true
	}
	if m := jobQueueRegex.FindString(href); m != "" {
		return decodeJobID(m), true
	}
	return "", false
}

// decodeJobID reverses the percent escapes upstream applies inconsistently
// across pages. Only the observed escapes are handled; anything else is the
// literal token.
func decodeJobID(s string) string {
	replacer := strings.NewReplacer(
		"%21", "!",
		"%20", " ",
		"%2F", "/",
		"%3A", ":",
		"%3D", "=",
		"%26", "&",
		"%3F", "?",
	)
	return replacer.Replace(s)
}

// statusFromRow classifies a row by its visible text first, then by CSS class
// hints. When neither says anything, assume Complete: the list page is
// observed to only publish a read link once the job is actually done, so the
// link itself is a positive signal.
func statusFromRow(row *html.Node) JobStatus {
	text := strings.ToLower(nodeText(row))
	class := strings.ToLower(attrValue(row, "class"))

	switch {
	case containsAny(text, "complete", "ready", "finished"):
		return JobStatus{State: JobComplete}
	case containsAny(text, "processing", "running", "pending", "queued", "in progress"):
		return JobStatus{State: JobProcessing}
	case containsAny(text, "error", "failed", "failure"):
		return JobStatus{State: JobError, Detail: strings.TrimSpace(text)}
	case containsAny(class, "complete", "success"):
		return JobStatus{State: JobComplete}
	case containsAny(class, "pending", "processing"):
		return JobStatus{State: JobProcessing}
	case containsAny(class, "error", "fail"):
		return JobStatus{State: JobError, Detail: "status class indicates failure"}
	default:
		return JobStatus{State: JobComplete}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// elementsByTag collects all descendant elements with the given tag name, in
// document order. Includes n itself when it matches.
func elementsByTag(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// nodeText concatenates all text content under n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
