package audit

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"auditgate/internal/models"
)

var (
	majorRegex    = regexp.MustCompile(`Major\(s\):\s*([A-Z0-9]+)`)
	categoryRegex = regexp.MustCompile(`category_(\w+)`)
	groupRegex    = regexp.MustCompile(`^([A-Z][A-Z\s\-]+?)\s{2,}`)
)

// ParseDegreeAudit turns a fetched audit page into the structured report.
// Per-block parse failures are skipped (partial audits are still useful);
// only a document that yields no structure at all is an error.
func ParseDegreeAudit(src *models.AuditSource) (*models.DegreeAudit, error) {
	doc, err := html.Parse(strings.NewReader(src.HTML))
	if err != nil {
		return nil, &ParseError{Message: "audit page is not parseable HTML", Cause: err}
	}

	return &models.DegreeAudit{
		AuditID:      src.AuditID,
		StudentInfo:  parseStudentInfo(doc),
		Requirements: parseRequirements(doc),
		ScrapedAt:    src.ScrapedAt,
	}, nil
}

func parseStudentInfo(doc *html.Node) models.StudentInfo {
	var info models.StudentInfo

	// Student name lives in the header, e.g. <div id="headerInfo"><span
	// class="float-right">Name</span></div>.
	if header := elementByID(doc, "headerInfo"); header != nil {
		for _, span := range elementsByTag(header, "span") {
			if hasClass(span, "float-right") {
				name := strings.TrimSpace(nodeText(span))
				if name != "" {
					info.Name = &name
				}
				break
			}
		}
	}

	// Major code appears as "Major(s): MA30" in the top include text.
	for _, el := range elementsWithClass(doc, "", "includeTopText") {
		if m := majorRegex.FindStringSubmatch(nodeText(el)); m != nil {
			major := m[1]
			info.Major = &major
			break
		}
	}

	// Student ID and college are not present in the observed page structure.
	return info
}

func parseRequirements(doc *html.Node) []models.Requirement {
	requirements := make([]models.Requirement, 0)
	for _, el := range elementsWithClass(doc, "div", "requirement") {
		requirements = append(requirements, parseRequirement(el))
	}
	return requirements
}

func parseRequirement(el *html.Node) models.Requirement {
	class := attrValue(el, "class")

	name := ""
	if title := firstWithClass(el, "", "reqTitle"); title != nil {
		name = strings.TrimSpace(nodeText(title))
	}

	var creditsRequired *float64
	if v, ok := parseFloatAttr(el, "rqdhours"); ok && v > 0 {
		creditsRequired = &v
	}

	courses := parseTakenCourses(el)

	// The requirementTotals table is more accurate than summing course rows,
	// so prefer it when present.
	creditsCompleted := parseEarnedUnits(el, "requirementtotals", "reqearned")
	if creditsCompleted == nil && len(courses) > 0 {
		sum := 0.0
		for _, c := range courses {
			if c.Units != nil {
				sum += *c.Units
			}
		}
		creditsCompleted = &sum
	}

	return models.Requirement{
		Category:         categoryFromClass(class),
		Name:             name,
		Status:           statusFromClass(class),
		CreditsRequired:  creditsRequired,
		CreditsCompleted: creditsCompleted,
		Courses:          courses,
		Subrequirements:  parseSubrequirements(el),
	}
}

func parseSubrequirements(req *html.Node) []models.Subrequirement {
	subs := make([]models.Subrequirement, 0)
	for _, el := range elementsWithClass(req, "div", "subrequirement") {
		subs = append(subs, parseSubrequirement(el))
	}
	return subs
}

func parseSubrequirement(el *html.Node) models.Subrequirement {
	id := attrValue(el, "id")
	if id == "" {
		id = "unknown"
	}

	title := ""
	if t := firstWithClass(el, "", "subreqTitle"); t != nil {
		title = strings.TrimSpace(nodeText(t))
	}

	requiredUnits := 0.0
	if v, ok := parseFloatAttr(el, "rqdhours"); ok {
		requiredUnits = v
	}

	completedCourses := parseTakenCourses(el)

	// Prefer the subrequirementTotals table: some subrequirements show totals
	// without listing individual courses.
	var unitsCompleted float64
	if earned := parseEarnedUnits(el, "subrequirementtotals", "subreqearned"); earned != nil {
		unitsCompleted = *earned
	} else {
		for _, c := range completedCourses {
			if c.Units == nil {
				continue
			}
			if c.Grade != nil {
				unitsCompleted += models.UnitsEarned(*c.Grade, *c.Units)
			} else {
				unitsCompleted += *c.Units
			}
		}
	}

	unitsRemaining := requiredUnits - unitsCompleted
	if unitsRemaining < 0 {
		unitsRemaining = 0
	}

	return models.Subrequirement{
		ID:               id,
		Title:            title,
		RequiredUnits:    requiredUnits,
		UnitsCompleted:   unitsCompleted,
		UnitsRemaining:   unitsRemaining,
		Status:           statusFromClass(attrValue(el, "class")),
		EligibleCourses:  parseEligibleCourses(el),
		CompletedCourses: completedCourses,
		CategoryGroups:   parseCourseCategories(el),
	}
}

// parseTakenCourses reads every tr.takenCourse row under the element's
// completedCourses tables.
func parseTakenCourses(el *html.Node) []models.CourseRequirement {
	courses := make([]models.CourseRequirement, 0)
	for _, table := range elementsWithClass(el, "table", "completedCourses") {
		for _, row := range elementsWithClass(table, "tr", "takenCourse") {
			courses = append(courses, parseCourseRow(row))
		}
	}
	return courses
}

func parseCourseRow(row *html.Node) models.CourseRequirement {
	course := models.CourseRequirement{Status: models.CourseCompleted}

	if td := firstWithClass(row, "td", "term"); td != nil {
		if term := strings.TrimSpace(nodeText(td)); term != "" {
			course.Term = &term
		}
	}
	if td := firstWithClass(row, "td", "course"); td != nil {
		course.CourseCode = strings.TrimSpace(nodeText(td))
	}
	if td := firstWithClass(row, "td", "credit"); td != nil {
		if units, err := strconv.ParseFloat(strings.TrimSpace(nodeText(td)), 64); err == nil {
			course.Units = &units
		}
	}
	if td := firstWithClass(row, "td", "grade"); td != nil {
		if grade := strings.TrimSpace(nodeText(td)); grade != "" {
			course.Grade = &grade
			if grade == "IP" {
				course.Status = models.CourseInProgress
			}
		}
	}
	if td := firstWithClass(row, "td", "description"); td != nil {
		if line := firstWithClass(td, "", "descLine"); line != nil {
			if title := strings.TrimSpace(nodeText(line)); title != "" {
				course.Title = &title
			}
		}
	}

	return course
}

func parseEligibleCourses(el *html.Node) []models.EligibleCourse {
	courses := make([]models.EligibleCourse, 0)
	for _, table := range elementsWithClass(el, "table", "selectcourses") {
		for _, span := range elementsWithClass(table, "span", "course") {
			if c, ok := eligibleCourseFromSpan(span); ok {
				courses = append(courses, c)
			}
		}
	}
	return courses
}

func eligibleCourseFromSpan(span *html.Node) (models.EligibleCourse, bool) {
	department := strings.TrimSpace(attrValue(span, "department"))
	number := strings.TrimSpace(attrValue(span, "number"))
	if department == "" || number == "" {
		return models.EligibleCourse{}, false
	}

	fullCode := department + " " + number
	if nspan := firstWithClass(span, "span", "number"); nspan != nil {
		if text := strings.TrimSpace(nodeText(nspan)); text != "" {
			fullCode = text
		}
	}

	return models.EligibleCourse{
		Department:   department,
		CourseNumber: number,
		FullCode:     fullCode,
	}, true
}

// parseCourseCategories extracts named groups like "APPLIED MATH" from the
// fromcourselist rows. Only named groups with at least one course are kept.
func parseCourseCategories(el *html.Node) []models.CourseCategory {
	categories := make([]models.CourseCategory, 0)
	for _, table := range elementsWithClass(el, "table", "selectcourses") {
		for _, td := range elementsWithClass(table, "td", "fromcourselist") {
			for _, inner := range elementsByTag(td, "table") {
				for _, row := range elementsByTag(inner, "tr") {
					m := groupRegex.FindStringSubmatch(nodeText(row))
					if m == nil {
						continue
					}

					var rowCourses []models.EligibleCourse
					for _, span := range elementsWithClass(row, "span", "course") {
						if c, ok := eligibleCourseFromSpan(span); ok {
							rowCourses = append(rowCourses, c)
						}
					}
					if len(rowCourses) > 0 {
						categories = append(categories, models.CourseCategory{
							Name:    strings.TrimSpace(m[1]),
							Courses: rowCourses,
						})
					}
				}
			}
		}
	}
	return categories
}

// parseEarnedUnits reads the hours span out of a totals table, e.g.
// table.requirementTotals tr.reqEarned span.hours.number. Class names are
// compared case-insensitively since the upstream markup is inconsistent.
func parseEarnedUnits(el *html.Node, tableClass, rowClass string) *float64 {
	for _, table := range elementsByTag(el, "table") {
		if !hasClassFold(table, tableClass) {
			continue
		}
		for _, row := range elementsByTag(table, "tr") {
			if !hasClassFold(row, rowClass) {
				continue
			}
			for _, span := range elementsByTag(row, "span") {
				if hasClass(span, "hours") && hasClass(span, "number") {
					if v, err := strconv.ParseFloat(strings.TrimSpace(nodeText(span)), 64); err == nil {
						return &v
					}
				}
			}
		}
	}
	return nil
}

func statusFromClass(class string) models.RequirementStatus {
	switch {
	case strings.Contains(class, "Status_OK"):
		return models.RequirementComplete
	case strings.Contains(class, "Status_IP"):
		return models.RequirementInProgress
	case strings.Contains(class, "Status_NO"):
		return models.RequirementNotStarted
	default:
		return models.RequirementNotApplicable
	}
}

func categoryFromClass(class string) string {
	if m := categoryRegex.FindStringSubmatch(class); m != nil {
		return m[1]
	}
	return "Unknown"
}

func parseFloatAttr(n *html.Node, name string) (float64, bool) {
	raw := attrValue(n, name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// hasClass reports whether the node's class attribute contains the given
// class token exactly.
func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func hasClassFold(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// elementsWithClass collects descendants carrying the class token; tag may be
// empty to match any element.
func elementsWithClass(root *html.Node, tag, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode &&
			(tag == "" || node.Data == tag) &&
			hasClass(node, class) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func firstWithClass(root *html.Node, tag, class string) *html.Node {
	els := elementsWithClass(root, tag, class)
	if len(els) == 0 {
		return nil
	}
	return els[0]
}

func elementByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if found != nil {
			return
		}
		if node.Type == html.ElementNode && attrValue(node, "id") == id {
			found = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}
