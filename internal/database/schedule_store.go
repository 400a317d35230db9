package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"auditgate/internal/models"
)

// ScheduleStore persists captured schedule-of-classes data. Writes replace
// whole subjects atomically so readers never see a half-imported subject.
type ScheduleStore struct {
	db *DB
}

// NewScheduleStore creates a store over an initialized database.
func NewScheduleStore(db *DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// ReplaceSubject deletes every course under the subject and inserts the given
// ones in a single transaction. Returns the number of courses written.
func (s *ScheduleStore) ReplaceSubject(ctx context.Context, subject string, courses []models.Course) (int, error) {
	subject = strings.ToUpper(strings.TrimSpace(subject))
	if subject == "" {
		return 0, fmt.Errorf("subject code is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.deleteSubjectTx(ctx, tx, subject); err != nil {
		return 0, err
	}

	for _, course := range courses {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO courses (subject_code, course_code, course_title) VALUES (?, ?, ?)`,
			subject, course.CourseCode, course.CourseTitle)
		if err != nil {
			return 0, fmt.Errorf("failed to insert course %s: %w", course.CourseCode, err)
		}
		courseID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read course id: %w", err)
		}

		for _, section := range course.Sections {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO sections (course_id, section_id, section_code, instructor,
					capacity, enrolled_ct, available_seats, waitlist_ct)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				courseID, section.SectionID, section.SectionCode, section.Instructor,
				section.Capacity, section.EnrolledCt, section.AvailableSeats, section.WaitlistCt)
			if err != nil {
				return 0, fmt.Errorf("failed to insert section %s: %w", section.SectionID, err)
			}
			sectionID, err := res.LastInsertId()
			if err != nil {
				return 0, fmt.Errorf("failed to read section id: %w", err)
			}

			for _, meeting := range section.Meetings {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO meetings (section_id, meeting_type, meeting_days,
						start_hour, start_min, end_hour, end_min, building, room)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					sectionID, meeting.MeetingType, meeting.MeetingDays,
					meeting.StartHour, meeting.StartMin, meeting.EndHour, meeting.EndMin,
					meeting.Building, meeting.Room)
				if err != nil {
					return 0, fmt.Errorf("failed to insert meeting: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(courses), nil
}

func (s *ScheduleStore) deleteSubjectTx(ctx context.Context, tx *sql.Tx, subject string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM meetings WHERE section_id IN (
			SELECT s.id FROM sections s
			JOIN courses c ON c.id = s.course_id
			WHERE c.subject_code = ?)`, subject)
	if err != nil {
		return fmt.Errorf("failed to delete meetings: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM sections WHERE course_id IN (
			SELECT id FROM courses WHERE subject_code = ?)`, subject)
	if err != nil {
		return fmt.Errorf("failed to delete sections: %w", err)
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM courses WHERE subject_code = ?`, subject)
	if err != nil {
		return fmt.Errorf("failed to delete courses: %w", err)
	}
	return nil
}

// CoursesBySubject returns all courses under a subject with their sections
// and meetings populated.
func (s *ScheduleStore) CoursesBySubject(ctx context.Context, subject string) ([]models.Course, error) {
	subject = strings.ToUpper(strings.TrimSpace(subject))

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_code, course_code, course_title, created_at
		 FROM courses WHERE subject_code = ? ORDER BY course_code`, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer rows.Close()

	courses := make([]models.Course, 0)
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.SubjectCode, &c.CourseCode, &c.CourseTitle, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range courses {
		sections, err := s.sectionsForCourse(ctx, courses[i].ID)
		if err != nil {
			return nil, err
		}
		courses[i].Sections = sections
	}
	return courses, nil
}

func (s *ScheduleStore) sectionsForCourse(ctx context.Context, courseID int64) ([]models.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, section_id, section_code, instructor,
			capacity, enrolled_ct, available_seats, waitlist_ct, created_at
		 FROM sections WHERE course_id = ? ORDER BY section_code`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	sections := make([]models.Section, 0)
	for rows.Next() {
		var sec models.Section
		if err := rows.Scan(&sec.ID, &sec.CourseID, &sec.SectionID, &sec.SectionCode,
			&sec.Instructor, &sec.Capacity, &sec.EnrolledCt, &sec.AvailableSeats,
			&sec.WaitlistCt, &sec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sections {
		meetings, err := s.meetingsForSection(ctx, sections[i].ID)
		if err != nil {
			return nil, err
		}
		sections[i].Meetings = meetings
	}
	return sections, nil
}

func (s *ScheduleStore) meetingsForSection(ctx context.Context, sectionID int64) ([]models.Meeting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, section_id, meeting_type, meeting_days,
			start_hour, start_min, end_hour, end_min, building, room
		 FROM meetings WHERE section_id = ? ORDER BY id`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	meetings := make([]models.Meeting, 0)
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.SectionID, &m.MeetingType, &m.MeetingDays,
			&m.StartHour, &m.StartMin, &m.EndHour, &m.EndMin, &m.Building, &m.Room); err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// Subjects lists the distinct subject codes currently stored.
func (s *ScheduleStore) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT subject_code FROM courses ORDER BY subject_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]string, 0)
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, err
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

// PruneBefore deletes courses (with their sections and meetings) imported
// before the cutoff. Returns the number of courses removed.
func (s *ScheduleStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM meetings WHERE section_id IN (
			SELECT s.id FROM sections s
			JOIN courses c ON c.id = s.course_id
			WHERE c.created_at < ?)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune meetings: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM sections WHERE course_id IN (
			SELECT id FROM courses WHERE created_at < ?)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sections: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune courses: %w", err)
	}

	removed, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return removed, nil
}

// Stats returns row counts across the schedule tables.
func (s *ScheduleStore) Stats(ctx context.Context) (models.ScheduleStats, error) {
	var stats models.ScheduleStats
	for _, q := range []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM courses`, &stats.Courses},
		{`SELECT COUNT(*) FROM sections`, &stats.Sections},
		{`SELECT COUNT(*) FROM meetings`, &stats.Meetings},
	} {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return stats, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return stats, nil
}
