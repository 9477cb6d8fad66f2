package courses

import (
	"context"
	"strconv"
	"strings"

	"github.com/Jacky-ZJQ/mcp-gateway/mcpservice"
)

// Handlers returns hand-written fallbacks for the course tools. They accept
// the raw argument bag and are only used when a configured tool has no
// discovered implementation.
func Handlers(s *Store) []mcpservice.Handler {
	return []mcpservice.Handler{
		mcpservice.HandlerFunc("query_all_schools", func(ctx context.Context, _ map[string]any) (any, error) {
			return s.Schools(ctx)
		}),
		mcpservice.HandlerFunc("query_course", func(ctx context.Context, args map[string]any) (any, error) {
			q, err := courseQueryFromArgs(args)
			if err != nil {
				return nil, err
			}
			return s.queryCourses(ctx, q)
		}),
		mcpservice.HandlerFunc("generate_course_reservation", func(ctx context.Context, args map[string]any) (any, error) {
			var (
				r   Reservation
				err error
			)
			if r.Course, err = mcpservice.RequiredString(args, "courseName"); err != nil {
				return nil, err
			}
			if r.StudentName, err = mcpservice.RequiredString(args, "studentName"); err != nil {
				return nil, err
			}
			if r.ContactInfo, err = mcpservice.RequiredString(args, "contactInfo"); err != nil {
				return nil, err
			}
			if r.School, err = mcpservice.RequiredString(args, "school"); err != nil {
				return nil, err
			}
			r.Remark = mcpservice.OptionalString(args, "remark")
			return s.reserve(ctx, r)
		}),
	}
}

// courseQueryFromArgs reads type and edu. Edu may arrive as a JSON number or
// a numeric string.
func courseQueryFromArgs(args map[string]any) (CourseQuery, error) {
	var q CourseQuery
	if t := mcpservice.OptionalString(args, "type"); t != "" {
		q.Type = &t
	}
	switch v := args["edu"].(type) {
	case float64:
		edu := int(v)
		q.Edu = &edu
	case int:
		q.Edu = &v
	case string:
		if strings.TrimSpace(v) == "" {
			break
		}
		edu, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return q, mcpservice.NewArgumentError("edu must be an integer")
		}
		q.Edu = &edu
	}
	return q, nil
}
