package models

// AuditSource is the raw fetched audit page before deep parsing.
type AuditSource struct {
	AuditID   string `json:"audit_id"`
	ScrapedAt string `json:"scraped_at"`
	URL       string `json:"url"`
	HTML      string `json:"-"`
}

// DegreeAudit is the fully parsed degree audit returned to callers and held
// in the result cache. Cached instances are shared read-only between waiters.
type DegreeAudit struct {
	AuditID      string        `json:"audit_id"`
	StudentInfo  StudentInfo   `json:"student_info"`
	Requirements []Requirement `json:"requirements"`
	ScrapedAt    string        `json:"scraped_at"`
}

// StudentInfo holds whatever identity fields the audit page exposes. Student
// ID and college are not extractable from the observed page structure.
type StudentInfo struct {
	StudentID *string `json:"student_id"`
	Name      *string `json:"name"`
	Major     *string `json:"major"`
	College   *string `json:"college"`
}

// RequirementStatus classifies a requirement or subrequirement.
type RequirementStatus string

const (
	RequirementComplete      RequirementStatus = "Complete"
	RequirementInProgress    RequirementStatus = "InProgress"
	RequirementNotStarted    RequirementStatus = "NotStarted"
	RequirementNotApplicable RequirementStatus = "NotApplicable"
)

// Requirement is one top-level audit requirement block.
type Requirement struct {
	Category         string              `json:"category"`
	Name             string              `json:"name"`
	Status           RequirementStatus   `json:"status"`
	CreditsRequired  *float64            `json:"credits_required"`
	CreditsCompleted *float64            `json:"credits_completed"`
	Courses          []CourseRequirement `json:"courses"`
	Subrequirements  []Subrequirement    `json:"subrequirements"`
}

// CourseStatus classifies a course row within a requirement.
type CourseStatus string

const (
	CourseCompleted  CourseStatus = "Completed"
	CourseInProgress CourseStatus = "InProgress"
	CoursePlanned    CourseStatus = "Planned"
	CourseRequired   CourseStatus = "Required"
)

// CourseRequirement is one taken (or in-progress) course row.
type CourseRequirement struct {
	CourseCode string       `json:"course_code"`
	Title      *string      `json:"title"`
	Units      *float64     `json:"units"`
	Grade      *string      `json:"grade"`
	Term       *string      `json:"term"`
	Status     CourseStatus `json:"status"`
}

// EligibleCourse is a course that can fulfill a subrequirement.
type EligibleCourse struct {
	Department   string `json:"department"`
	CourseNumber string `json:"course_number"`
	FullCode     string `json:"full_code"`
}

// CourseCategory groups eligible courses under a named heading, e.g.
// "APPLIED MATH".
type CourseCategory struct {
	Name    string           `json:"name"`
	Courses []EligibleCourse `json:"courses"`
}

// Subrequirement is one subrequirement block inside a requirement.
type Subrequirement struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	RequiredUnits    float64             `json:"required_units"`
	UnitsCompleted   float64             `json:"units_completed"`
	UnitsRemaining   float64             `json:"units_remaining"`
	Status           RequirementStatus   `json:"status"`
	EligibleCourses  []EligibleCourse    `json:"eligible_courses"`
	CompletedCourses []CourseRequirement `json:"completed_courses"`
	CategoryGroups   []CourseCategory    `json:"category_groups"`
}

// RequirementSummary is the per-requirement rollup used by progress views.
type RequirementSummary struct {
	Category                 string            `json:"category"`
	Name                     string            `json:"name"`
	Status                   RequirementStatus `json:"status"`
	UnitsRequired            float64           `json:"units_required"`
	UnitsCompleted           float64           `json:"units_completed"`
	UnitsRemaining           float64           `json:"units_remaining"`
	SubrequirementsCount     int               `json:"subrequirements_count"`
	CompletedSubrequirements int               `json:"completed_subrequirements"`
}

// NextCourseRecommendation suggests courses for an unmet subrequirement.
// Priority 1 is highest; priorities follow audit document order.
type NextCourseRecommendation struct {
	SubrequirementTitle string           `json:"subrequirement_title"`
	Priority            int              `json:"priority"`
	EligibleCourses     []EligibleCourse `json:"eligible_courses"`
	UnitsNeeded         float64          `json:"units_needed"`
}

// DegreeProgress aggregates audit data for the progress endpoint.
type DegreeProgress struct {
	AuditID             string                     `json:"audit_id"`
	StudentInfo         StudentInfo                `json:"student_info"`
	TotalUnitsRequired  float64                    `json:"total_units_required"`
	TotalUnitsCompleted float64                    `json:"total_units_completed"`
	TotalUnitsRemaining float64                    `json:"total_units_remaining"`
	RequirementsSummary []RequirementSummary       `json:"requirements_summary"`
	NextCoursesToTake   []NextCourseRecommendation `json:"next_courses_to_take"`
}

var passingGrades = map[string]bool{
	"A+": true, "A": true, "A-": true,
	"B+": true, "B": true, "B-": true,
	"C+": true, "C": true, "C-": true,
	"TP": true, "P": true,
}

// IsPassingGrade reports whether a grade is C- or higher (passing for major
// requirements).
func IsPassingGrade(grade string) bool {
	return passingGrades[grade]
}

// UnitsEarned returns the course units when the grade is passing, else 0.
func UnitsEarned(grade string, courseUnits float64) float64 {
	if IsPassingGrade(grade) {
		return courseUnits
	}
	return 0
}
