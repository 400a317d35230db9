package models

import "time"

// Course is a captured class offering with its sections and meetings.
type Course struct {
	ID          int64     `json:"id"`
	SubjectCode string    `json:"subject_code"`
	CourseCode  string    `json:"course_code"`
	CourseTitle string    `json:"course_title"`
	Sections    []Section `json:"sections"`
	CreatedAt   time.Time `json:"created_at"`
}

// Section is one enrollable section of a course.
type Section struct {
	ID             int64     `json:"id"`
	CourseID       int64     `json:"course_id"`
	SectionID      string    `json:"section_id"`
	SectionCode    string    `json:"section_code"`
	Instructor     string    `json:"instructor"`
	Capacity       int       `json:"capacity"`
	EnrolledCt     int       `json:"enrolled_ct"`
	AvailableSeats int       `json:"available_seats"`
	WaitlistCt     int       `json:"waitlist_ct"`
	Meetings       []Meeting `json:"meetings"`
	CreatedAt      time.Time `json:"created_at"`
}

// Meeting is one scheduled meeting of a section. MeetingDays carries either a
// JSON array of weekday names (repeated meetings), an ISO date string
// (one-time meetings), or nil.
type Meeting struct {
	ID          int64   `json:"id"`
	SectionID   int64   `json:"section_id"`
	MeetingType string  `json:"meeting_type"`
	MeetingDays *string `json:"meeting_days"`
	StartHour   int     `json:"start_hour"`
	StartMin    int     `json:"start_min"`
	EndHour     int     `json:"end_hour"`
	EndMin      int     `json:"end_min"`
	Building    string  `json:"building"`
	Room        string  `json:"room"`
}

// ScheduleStats reports row counts for health reporting.
type ScheduleStats struct {
	Courses  int64 `json:"courses"`
	Sections int64 `json:"sections"`
	Meetings int64 `json:"meetings"`
}
