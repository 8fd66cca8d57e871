package permission

import (
	"fmt"
	"strings"
)

// Predicate operators. The algebra is deliberately closed: a new predicate
// requires a code change and a new tag here.
const (
	OpGroup        = "group"
	OpObjectStatus = "object_status"
	OpNewObject    = "new_object"
	OpIsAuthor     = "is_author"
	OpIsAssignee   = "is_assignee"
	OpIsAssignedBy = "is_assigned_by"
	OpIsFocalPoint = "is_focal_point"
	OpIsStaff      = "is_staff_member"
	OpModule       = "module"
)

var knownOps = map[string]int{
	OpGroup:        1,
	OpObjectStatus: 2,
	OpNewObject:    1,
	OpIsAuthor:     1,
	OpIsAssignee:   1,
	OpIsAssignedBy: 1,
	OpIsFocalPoint: 1,
	OpIsStaff:      1,
	OpModule:       1,
}

// Predicate is one parsed condition expression, e.g.
// object_status(engagement,partner_contacted).
type Predicate struct {
	Op   string
	Args []string
}

// String renders the canonical expression form.
func (p Predicate) String() string {
	return fmt.Sprintf("%s(%s)", p.Op, strings.Join(p.Args, ","))
}

// ParsePredicate parses "op(arg1,arg2)" with the fixed operator set.
func ParsePredicate(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	open := strings.IndexByte(expr, '(')
	if open <= 0 || !strings.HasSuffix(expr, ")") {
		return Predicate{}, fmt.Errorf("malformed predicate %q", expr)
	}
	op := expr[:open]
	arity, ok := knownOps[op]
	if !ok {
		return Predicate{}, fmt.Errorf("unknown predicate operator %q", op)
	}
	body := expr[open+1 : len(expr)-1]
	args := strings.Split(body, ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
		if args[i] == "" {
			return Predicate{}, fmt.Errorf("predicate %q has an empty argument", expr)
		}
	}
	if len(args) != arity {
		return Predicate{}, fmt.Errorf("predicate %q wants %d argument(s), got %d", op, arity, len(args))
	}
	return Predicate{Op: op, Args: args}, nil
}

// Expression formatters used by the seeds; keeping them here keeps the seed
// tables free of hand-typed syntax.

func Group(name string) string                  { return fmt.Sprintf("group(%s)", name) }
func ObjectStatus(entity, status string) string { return fmt.Sprintf("object_status(%s,%s)", entity, status) }
func NewObject(entity string) string            { return fmt.Sprintf("new_object(%s)", entity) }
func IsAuthor(entity string) string             { return fmt.Sprintf("is_author(%s)", entity) }
func IsAssignee(entity string) string           { return fmt.Sprintf("is_assignee(%s)", entity) }
func IsAssignedBy(entity string) string         { return fmt.Sprintf("is_assigned_by(%s)", entity) }
func IsFocalPoint(entity string) string         { return fmt.Sprintf("is_focal_point(%s)", entity) }
func IsStaffMember(entity string) string        { return fmt.Sprintf("is_staff_member(%s)", entity) }
func Module(name string) string                 { return fmt.Sprintf("module(%s)", name) }
