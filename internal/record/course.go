package record

import "strings"

// JoinCourseSemester renders course and semester for display.
//
// Both present: "course - semester". One present: that one. Neither: "".
func JoinCourseSemester(course, semester string) string {
	course = strings.TrimSpace(course)
	semester = strings.TrimSpace(semester)
	switch {
	case course == "" && semester == "":
		return ""
	case course == "":
		return semester
	case semester == "":
		return course
	}
	return course + " - " + semester
}

// ParseSection splits a legacy combined section value into course and semester.
//
// "B.Tech - 3" splits on the first " - ". A value beginning with "sem" (any
// case) is a semester alone; anything else is a course alone.
func ParseSection(section string) (course, semester string) {
	s := strings.TrimSpace(section)
	if before, after, ok := strings.Cut(s, " - "); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	if strings.HasPrefix(strings.ToLower(s), "sem") {
		return "", s
	}
	return s, ""
}
