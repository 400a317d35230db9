package services

import (
	"testing"

	"auditgate/internal/models"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(s string) *string     { return &s }

func sampleParsedAudit() *models.DegreeAudit {
	return &models.DegreeAudit{
		AuditID: "JobQueueRun!!!!A1",
		Requirements: []models.Requirement{
			{
				Category:         "MAJOR",
				Name:             "MATHEMATICS MAJOR",
				Status:           models.RequirementInProgress,
				CreditsRequired:  floatPtr(48),
				CreditsCompleted: floatPtr(8),
				Courses: []models.CourseRequirement{
					{CourseCode: "MATH 20A", Units: floatPtr(4), Grade: strPtr("A"), Status: models.CourseCompleted},
					{CourseCode: "MATH 20B", Units: floatPtr(4), Grade: strPtr("IP"), Status: models.CourseInProgress},
				},
				Subrequirements: []models.Subrequirement{
					{
						ID:             "subreq-electives",
						Title:          "LOWER DIVISION ELECTIVES",
						RequiredUnits:  12,
						UnitsCompleted: 4,
						UnitsRemaining: 8,
						Status:         models.RequirementInProgress,
						EligibleCourses: []models.EligibleCourse{
							{Department: "MATH", CourseNumber: "11", FullCode: "MATH 11"},
							{Department: "MATH", CourseNumber: "20A", FullCode: "MATH 20A"},
						},
						CompletedCourses: []models.CourseRequirement{
							{CourseCode: "MATH 20A", Units: floatPtr(4), Grade: strPtr("A"), Status: models.CourseCompleted},
						},
					},
					{
						ID:             "subreq-done",
						Title:          "CALCULUS",
						RequiredUnits:  8,
						UnitsCompleted: 8,
						UnitsRemaining: 0,
						Status:         models.RequirementComplete,
						EligibleCourses: []models.EligibleCourse{
							{Department: "MATH", CourseNumber: "20C", FullCode: "MATH 20C"},
						},
					},
				},
			},
			{
				Category:         "GE",
				Name:             "GENERAL EDUCATION",
				Status:           models.RequirementComplete,
				CreditsRequired:  floatPtr(16),
				CreditsCompleted: floatPtr(16),
			},
		},
	}
}

func TestProgressTotals(t *testing.T) {
	p := NewDegreeProgressProcessor()
	progress := p.Progress(sampleParsedAudit())

	if progress.TotalUnitsRequired != TotalUnitsRequired {
		t.Errorf("Expected %v total required, got %v", TotalUnitsRequired, progress.TotalUnitsRequired)
	}
	if progress.TotalUnitsCompleted != 24 {
		t.Errorf("Expected 24 completed (8 major + 16 GE), got %v", progress.TotalUnitsCompleted)
	}
	if progress.TotalUnitsRemaining != TotalUnitsRequired-24 {
		t.Errorf("Expected %v remaining, got %v", TotalUnitsRequired-24, progress.TotalUnitsRemaining)
	}
	if len(progress.RequirementsSummary) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(progress.RequirementsSummary))
	}

	major := progress.RequirementsSummary[0]
	if major.SubrequirementsCount != 2 || major.CompletedSubrequirements != 1 {
		t.Errorf("Expected 2 subreqs / 1 complete, got %d / %d",
			major.SubrequirementsCount, major.CompletedSubrequirements)
	}
}

func TestProgressFallsBackToSubrequirementTotals(t *testing.T) {
	p := NewDegreeProgressProcessor()
	audit := &models.DegreeAudit{
		Requirements: []models.Requirement{
			{
				Name: "NO ROLLUP",
				Subrequirements: []models.Subrequirement{
					{RequiredUnits: 10, UnitsCompleted: 6},
					{RequiredUnits: 5, UnitsCompleted: 5},
				},
			},
		},
	}

	progress := p.Progress(audit)
	summary := progress.RequirementsSummary[0]
	if summary.UnitsRequired != 15 {
		t.Errorf("Expected required summed from subreqs (15), got %v", summary.UnitsRequired)
	}
	if summary.UnitsCompleted != 11 {
		t.Errorf("Expected completed summed from subreqs (11), got %v", summary.UnitsCompleted)
	}
}

func TestCompletedCoursesDeduplicates(t *testing.T) {
	p := NewDegreeProgressProcessor()
	courses := p.CompletedCourses(sampleParsedAudit())

	// MATH 20A appears at requirement and subrequirement level but must be
	// reported once.
	count := 0
	for _, c := range courses {
		if c.CourseCode == "MATH 20A" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected MATH 20A once, got %d", count)
	}
	if len(courses) != 2 {
		t.Errorf("Expected 2 distinct courses, got %d", len(courses))
	}
}

func TestNextCoursesSkipsMetSubrequirements(t *testing.T) {
	p := NewDegreeProgressProcessor()
	recs := p.NextCourses(sampleParsedAudit())

	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].SubrequirementTitle != "LOWER DIVISION ELECTIVES" {
		t.Errorf("Unexpected recommendation %q", recs[0].SubrequirementTitle)
	}
	if recs[0].Priority != 1 {
		t.Errorf("Expected priority 1, got %d", recs[0].Priority)
	}
	if recs[0].UnitsNeeded != 8 {
		t.Errorf("Expected 8 units needed, got %v", recs[0].UnitsNeeded)
	}
}

func TestNextCoursesExcludesPassedCourses(t *testing.T) {
	p := NewDegreeProgressProcessor()
	recs := p.NextCourses(sampleParsedAudit())

	for _, course := range recs[0].EligibleCourses {
		if course.FullCode == "MATH 20A" {
			t.Error("Recommendation includes a course already passed")
		}
	}
	if len(recs[0].EligibleCourses) != 1 {
		t.Errorf("Expected 1 eligible course after filtering, got %d", len(recs[0].EligibleCourses))
	}
}

func TestNextCoursesPriorityOrder(t *testing.T) {
	p := NewDegreeProgressProcessor()
	audit := &models.DegreeAudit{
		Requirements: []models.Requirement{
			{Subrequirements: []models.Subrequirement{
				{Title: "FIRST", UnitsRemaining: 4, EligibleCourses: []models.EligibleCourse{{Department: "A", CourseNumber: "1", FullCode: "A 1"}}},
				{Title: "SECOND", UnitsRemaining: 4, EligibleCourses: []models.EligibleCourse{{Department: "B", CourseNumber: "2", FullCode: "B 2"}}},
			}},
			{Subrequirements: []models.Subrequirement{
				{Title: "THIRD", UnitsRemaining: 4, EligibleCourses: []models.EligibleCourse{{Department: "C", CourseNumber: "3", FullCode: "C 3"}}},
			}},
		},
	}

	recs := p.NextCourses(audit)
	if len(recs) != 3 {
		t.Fatalf("Expected 3 recommendations, got %d", len(recs))
	}
	for i, want := range []string{"FIRST", "SECOND", "THIRD"} {
		if recs[i].SubrequirementTitle != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, recs[i].SubrequirementTitle)
		}
		if recs[i].Priority != i+1 {
			t.Errorf("Position %d: expected priority %d, got %d", i, i+1, recs[i].Priority)
		}
	}
}

func TestEligibleCoursesFor(t *testing.T) {
	p := NewDegreeProgressProcessor()
	audit := sampleParsedAudit()

	sub, ok := p.EligibleCoursesFor(audit, "subreq-electives")
	if !ok {
		t.Fatal("Expected subrequirement lookup to succeed")
	}
	if sub.Title != "LOWER DIVISION ELECTIVES" {
		t.Errorf("Unexpected subrequirement %q", sub.Title)
	}

	if _, ok := p.EligibleCoursesFor(audit, "missing"); ok {
		t.Error("Expected lookup miss for unknown id")
	}
}

func TestMatchCoursesToSubrequirement(t *testing.T) {
	p := NewDegreeProgressProcessor()
	courses := []models.CourseRequirement{
		{CourseCode: "MATH 20A"},
		{CourseCode: "MATH  20B"}, // double space, still matches
		{CourseCode: "CSE 11"},
		{CourseCode: "HUM 1"},
	}

	// Explicit course list wins over the department filter.
	matched := p.MatchCoursesToSubrequirement(courses, SubrequirementConfig{
		EligibleCourses: []string{"MATH 20A", "CSE 11"},
		Departments:     []string{"HUM"},
	})
	if len(matched) != 2 {
		t.Fatalf("Expected 2 matches from course list, got %d", len(matched))
	}

	// No course list: fall back to department prefixes.
	matched = p.MatchCoursesToSubrequirement(courses, SubrequirementConfig{
		Departments: []string{"MATH"},
	})
	if len(matched) != 2 {
		t.Fatalf("Expected 2 department matches, got %d", len(matched))
	}
	for _, c := range matched {
		if normalizeCourseCode(c.CourseCode)[:4] != "MATH" {
			t.Errorf("Unexpected match %q", c.CourseCode)
		}
	}

	// Nothing configured matches nothing.
	if got := p.MatchCoursesToSubrequirement(courses, SubrequirementConfig{}); len(got) != 0 {
		t.Errorf("Expected no matches for empty config, got %d", len(got))
	}
}

func TestSummaries(t *testing.T) {
	p := NewDegreeProgressProcessor()
	summaries := p.Summaries(sampleParsedAudit())

	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].Category != "MAJOR" || summaries[1].Category != "GE" {
		t.Errorf("Unexpected categories %q / %q", summaries[0].Category, summaries[1].Category)
	}
	if summaries[0].UnitsRequired != 48 {
		t.Errorf("Expected 48 required, got %v", summaries[0].UnitsRequired)
	}
}

func TestIsPassingGrade(t *testing.T) {
	passing := []string{"A+", "A", "B-", "C-", "P", "TP"}
	failing := []string{"D", "F", "W", "NP", "IP", ""}

	for _, g := range passing {
		if !models.IsPassingGrade(g) {
			t.Errorf("Expected %q to pass", g)
		}
	}
	for _, g := range failing {
		if models.IsPassingGrade(g) {
			t.Errorf("Expected %q to fail", g)
		}
	}
}
