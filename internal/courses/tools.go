package courses

import (
	"context"
	"errors"
	"strconv"

	"github.com/Jacky-ZJQ/mcp-gateway/mcpservice"
)

// Tools returns the self-describing course tools backed by s.
func Tools(s *Store) []*mcpservice.Tool {
	return []*mcpservice.Tool{
		mcpservice.NewTool("query_all_schools", "List all campuses", nil,
			func(ctx context.Context, _ mcpservice.Args) (any, error) {
				return s.Schools(ctx)
			},
			mcpservice.WithTitle("Query all schools"),
		),
		mcpservice.NewRecordTool("query_course", "Query courses by condition", "query",
			func(ctx context.Context, q CourseQuery) (any, error) {
				return s.queryCourses(ctx, q)
			},
			mcpservice.WithTitle("Query course"),
		),
		mcpservice.NewTool("generate_course_reservation", "Create a course reservation and return its reservation number",
			[]mcpservice.Param{
				mcpservice.StringParam("courseName", "Name of the reserved course"),
				mcpservice.StringParam("studentName", "Student name"),
				mcpservice.StringParam("contactInfo", "Student contact information"),
				mcpservice.StringParam("school", "Campus where the course is taken"),
				mcpservice.OptionalStringParam("remark", "Free-form remark"),
			},
			func(ctx context.Context, args mcpservice.Args) (any, error) {
				r, err := reservationFromArgs(args)
				if err != nil {
					return nil, err
				}
				return s.reserve(ctx, r)
			},
			mcpservice.WithTitle("Generate course reservation"),
			mcpservice.WithHints(false, false),
		),
	}
}

func reservationFromArgs(args mcpservice.Args) (Reservation, error) {
	var (
		r   Reservation
		err error
	)
	if r.Course, err = args.RequiredString("courseName"); err != nil {
		return r, err
	}
	if r.StudentName, err = args.RequiredString("studentName"); err != nil {
		return r, err
	}
	if r.ContactInfo, err = args.RequiredString("contactInfo"); err != nil {
		return r, err
	}
	if r.School, err = args.RequiredString("school"); err != nil {
		return r, err
	}
	if remark := args.OptionalString("remark"); remark != nil {
		r.Remark = *remark
	}
	return r, nil
}

// queryCourses reports a bad sort field as caller input rather than a tool
// failure.
func (s *Store) queryCourses(ctx context.Context, q CourseQuery) ([]Course, error) {
	out, err := s.QueryCourses(ctx, q)
	if errors.Is(err, ErrInvalidSortField) {
		return nil, &mcpservice.ArgumentError{Message: err.Error(), Err: err}
	}
	return out, err
}

func (s *Store) reserve(ctx context.Context, r Reservation) (string, error) {
	id, err := s.CreateReservation(ctx, r)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}
