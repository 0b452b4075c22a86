// Package groups is the static course-scoped group catalog. It is reference
// data, not a managed entity: the list changes by redeploy.
package groups

type Group struct {
	ID     int
	Name   string
	Course int
}

var catalog = []Group{
	// course 1
	{ID: 1, Name: "IS-1-1", Course: 1},
	{ID: 2, Name: "IS-1-2", Course: 1},
	{ID: 3, Name: "IS-1-3", Course: 1},
	{ID: 4, Name: "SE-1-1", Course: 1},
	{ID: 5, Name: "SE-1-2", Course: 1},
	{ID: 6, Name: "SE-1-3", Course: 1},
	{ID: 7, Name: "SE-1-4", Course: 1},
	{ID: 8, Name: "CS-1-1", Course: 1},
	{ID: 9, Name: "CS-1-2", Course: 1},
	{ID: 10, Name: "NS-1-1", Course: 1},
	{ID: 11, Name: "NS-1-2", Course: 1},
	{ID: 12, Name: "GD-1-1", Course: 1},
	{ID: 13, Name: "GD-1-2", Course: 1},
	{ID: 14, Name: "PM-1-1", Course: 1},
	{ID: 15, Name: "PM-1-2", Course: 1},

	// course 2
	{ID: 16, Name: "IS-2-1", Course: 2},
	{ID: 17, Name: "IS-2-2", Course: 2},
	{ID: 18, Name: "IS-2-3", Course: 2},
	{ID: 19, Name: "SE-2-1", Course: 2},
	{ID: 20, Name: "SE-2-2", Course: 2},
	{ID: 21, Name: "SE-2-3", Course: 2},
	{ID: 22, Name: "SE-2-4", Course: 2},
	{ID: 23, Name: "CS-2-1", Course: 2},
	{ID: 24, Name: "CS-2-2", Course: 2},
	{ID: 25, Name: "NS-2-1", Course: 2},
	{ID: 26, Name: "NS-2-2", Course: 2},
	{ID: 27, Name: "GD-2-1", Course: 2},
	{ID: 28, Name: "GD-2-2", Course: 2},
	{ID: 29, Name: "PM-2-1", Course: 2},
	{ID: 30, Name: "PM-2-2", Course: 2},

	// course 3
	{ID: 31, Name: "IS-3-1", Course: 3},
	{ID: 32, Name: "IS-3-2", Course: 3},
	{ID: 33, Name: "IS-3-3", Course: 3},
	{ID: 34, Name: "SE-3-1", Course: 3},
	{ID: 35, Name: "SE-3-2", Course: 3},
	{ID: 36, Name: "SE-3-3", Course: 3},
	{ID: 37, Name: "SE-3-4", Course: 3},
	{ID: 38, Name: "CS-3-1", Course: 3},
	{ID: 39, Name: "CS-3-2", Course: 3},
	{ID: 40, Name: "NS-3-1", Course: 3},
	{ID: 41, Name: "NS-3-2", Course: 3},
	{ID: 42, Name: "GD-3-1", Course: 3},
	{ID: 43, Name: "GD-3-2", Course: 3},
	{ID: 44, Name: "PM-3-1", Course: 3},
	{ID: 45, Name: "PM-3-2", Course: 3},

	// course 4
	{ID: 46, Name: "IS-4-1", Course: 4},
	{ID: 47, Name: "IS-4-2", Course: 4},
	{ID: 48, Name: "SE-4-1", Course: 4},
	{ID: 49, Name: "SE-4-2", Course: 4},
	{ID: 50, Name: "CS-4-1", Course: 4},
	{ID: 51, Name: "NS-4-1", Course: 4},
	{ID: 52, Name: "GD-4-1", Course: 4},
	{ID: 53, Name: "PM-4-1", Course: 4},
}

// Courses is the fixed set a student can register into.
var Courses = []int{1, 2, 3, 4}

func All() []Group {
	return catalog
}

func ByCourse(course int) []Group {
	var out []Group
	for _, g := range catalog {
		if g.Course == course {
			out = append(out, g)
		}
	}
	return out
}

func ByID(id int) (Group, bool) {
	for _, g := range catalog {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// IsValid reports whether the group exists and belongs to the given course.
func IsValid(id, course int) bool {
	g, ok := ByID(id)
	return ok && g.Course == course
}

func ValidCourse(course int) bool {
	for _, c := range Courses {
		if c == course {
			return true
		}
	}
	return false
}
