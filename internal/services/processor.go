package services

import (
	"strings"

	"auditgate/internal/models"
)

// TotalUnitsRequired is the standard bachelor's degree unit requirement.
const TotalUnitsRequired = 180.0

// DegreeProgressProcessor turns a parsed audit into the derived views served
// by the progress, completed-courses and next-courses endpoints. Stateless.
type DegreeProgressProcessor struct{}

// NewDegreeProgressProcessor creates a processor.
func NewDegreeProgressProcessor() *DegreeProgressProcessor {
	return &DegreeProgressProcessor{}
}

// Progress computes the overall degree progress rollup.
func (p *DegreeProgressProcessor) Progress(audit *models.DegreeAudit) *models.DegreeProgress {
	summaries := make([]models.RequirementSummary, 0, len(audit.Requirements))
	totalCompleted := 0.0

	for _, req := range audit.Requirements {
		summary := p.summarize(req)
		totalCompleted += summary.UnitsCompleted
		summaries = append(summaries, summary)
	}

	remaining := TotalUnitsRequired - totalCompleted
	if remaining < 0 {
		remaining = 0
	}

	return &models.DegreeProgress{
		AuditID:             audit.AuditID,
		StudentInfo:         audit.StudentInfo,
		TotalUnitsRequired:  TotalUnitsRequired,
		TotalUnitsCompleted: totalCompleted,
		TotalUnitsRemaining: remaining,
		RequirementsSummary: summaries,
		NextCoursesToTake:   p.NextCourses(audit),
	}
}

func (p *DegreeProgressProcessor) summarize(req models.Requirement) models.RequirementSummary {
	required := 0.0
	if req.CreditsRequired != nil {
		required = *req.CreditsRequired
	}
	completed := 0.0
	if req.CreditsCompleted != nil {
		completed = *req.CreditsCompleted
	}

	// Subrequirement totals are the better signal when the requirement block
	// carries no rollup of its own.
	if required == 0 && len(req.Subrequirements) > 0 {
		for _, sub := range req.Subrequirements {
			required += sub.RequiredUnits
		}
	}
	if completed == 0 && len(req.Subrequirements) > 0 {
		for _, sub := range req.Subrequirements {
			completed += sub.UnitsCompleted
		}
	}

	remaining := required - completed
	if remaining < 0 {
		remaining = 0
	}

	doneSubs := 0
	for _, sub := range req.Subrequirements {
		if sub.Status == models.RequirementComplete {
			doneSubs++
		}
	}

	return models.RequirementSummary{
		Category:                 req.Category,
		Name:                     req.Name,
		Status:                   req.Status,
		UnitsRequired:            required,
		UnitsCompleted:           completed,
		UnitsRemaining:           remaining,
		SubrequirementsCount:     len(req.Subrequirements),
		CompletedSubrequirements: doneSubs,
	}
}

// Summaries returns the per-requirement rollup without the full progress
// envelope.
func (p *DegreeProgressProcessor) Summaries(audit *models.DegreeAudit) []models.RequirementSummary {
	summaries := make([]models.RequirementSummary, 0, len(audit.Requirements))
	for _, req := range audit.Requirements {
		summaries = append(summaries, p.summarize(req))
	}
	return summaries
}

// MatchCoursesToSubrequirement filters taken courses down to those that can
// satisfy one configured subrequirement. An explicit eligible-course list
// wins; otherwise any course from a listed department matches.
func (p *DegreeProgressProcessor) MatchCoursesToSubrequirement(courses []models.CourseRequirement, cfg SubrequirementConfig) []models.CourseRequirement {
	matched := make([]models.CourseRequirement, 0)

	if len(cfg.EligibleCourses) > 0 {
		for _, course := range courses {
			code := normalizeCourseCode(course.CourseCode)
			for _, eligible := range cfg.EligibleCourses {
				if strings.Contains(code, normalizeCourseCode(eligible)) {
					matched = append(matched, course)
					break
				}
			}
		}
		return matched
	}

	if len(cfg.Departments) > 0 {
		for _, course := range courses {
			code := normalizeCourseCode(course.CourseCode)
			for _, dept := range cfg.Departments {
				if strings.HasPrefix(code, normalizeCourseCode(dept)) {
					matched = append(matched, course)
					break
				}
			}
		}
	}
	return matched
}

// CompletedCourses flattens every passed or in-progress course across the
// audit, de-duplicated by course code.
func (p *DegreeProgressProcessor) CompletedCourses(audit *models.DegreeAudit) []models.CourseRequirement {
	seen := make(map[string]bool)
	courses := make([]models.CourseRequirement, 0)

	add := func(c models.CourseRequirement) {
		code := normalizeCourseCode(c.CourseCode)
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		courses = append(courses, c)
	}

	for _, req := range audit.Requirements {
		for _, c := range req.Courses {
			add(c)
		}
		for _, sub := range req.Subrequirements {
			for _, c := range sub.CompletedCourses {
				add(c)
			}
		}
	}
	return courses
}

// NextCourses recommends courses for every unmet subrequirement that lists
// eligible options. Priority follows audit document order, 1 is most urgent.
// Courses the student already passed are dropped from the recommendation.
func (p *DegreeProgressProcessor) NextCourses(audit *models.DegreeAudit) []models.NextCourseRecommendation {
	passed := p.passedCourseCodes(audit)

	recs := make([]models.NextCourseRecommendation, 0)
	priority := 1
	for _, req := range audit.Requirements {
		for _, sub := range req.Subrequirements {
			if sub.UnitsRemaining <= 0 {
				continue
			}

			eligible := make([]models.EligibleCourse, 0, len(sub.EligibleCourses))
			for _, course := range sub.EligibleCourses {
				if !passed[normalizeCourseCode(course.FullCode)] {
					eligible = append(eligible, course)
				}
			}
			if len(eligible) == 0 {
				continue
			}

			recs = append(recs, models.NextCourseRecommendation{
				SubrequirementTitle: sub.Title,
				Priority:            priority,
				EligibleCourses:     eligible,
				UnitsNeeded:         sub.UnitsRemaining,
			})
			priority++
		}
	}
	return recs
}

// passedCourseCodes collects normalized codes of every course with a passing
// grade anywhere in the audit.
func (p *DegreeProgressProcessor) passedCourseCodes(audit *models.DegreeAudit) map[string]bool {
	passed := make(map[string]bool)
	mark := func(c models.CourseRequirement) {
		if c.Grade != nil && models.IsPassingGrade(*c.Grade) {
			passed[normalizeCourseCode(c.CourseCode)] = true
		}
	}
	for _, req := range audit.Requirements {
		for _, c := range req.Courses {
			mark(c)
		}
		for _, sub := range req.Subrequirements {
			for _, c := range sub.CompletedCourses {
				mark(c)
			}
		}
	}
	return passed
}

// EligibleCoursesFor returns the eligible courses of one subrequirement by
// its element ID, or false when no subrequirement matches.
func (p *DegreeProgressProcessor) EligibleCoursesFor(audit *models.DegreeAudit, subreqID string) (*models.Subrequirement, bool) {
	for _, req := range audit.Requirements {
		for i := range req.Subrequirements {
			if req.Subrequirements[i].ID == subreqID {
				return &req.Subrequirements[i], true
			}
		}
	}
	return nil, false
}

// normalizeCourseCode collapses whitespace so "MATH  20C" and "MATH 20C"
// compare equal.
func normalizeCourseCode(code string) string {
	return strings.Join(strings.Fields(strings.ToUpper(code)), " ")
}
