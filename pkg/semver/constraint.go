package semver

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator is the closed set of comparison operators a constraint clause
// may carry. OpInvalid marks a clause whose operator token did not parse;
// such clauses are excluded from evaluation instead of being absorbed into
// a default.
type Operator int

const (
	OpInvalid Operator = iota
	OpGT
	OpGTE
	OpEQ
	OpLT
	OpLTE
)

func (op Operator) String() string {
	switch op {
	case OpGT:
		return ">"
	case OpGTE:
		return ">="
	case OpEQ:
		return "="
	case OpLT:
		return "<"
	case OpLTE:
		return "<="
	}
	return "invalid"
}

// Clause is a single parsed constraint, e.g. ">= 9.3.0".
type Clause struct {
	Op      Operator
	Version Version
}

func (c Clause) Matches(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpGT:
		return cmp > 0
	case OpGTE:
		return cmp >= 0
	case OpEQ:
		return cmp == 0
	case OpLT:
		return cmp < 0
	case OpLTE:
		return cmp <= 0
	}
	return false
}

// Diagnostic records a clause that was skipped during parsing. Malformed
// clauses are non-fatal; evaluation continues with the rest.
type Diagnostic struct {
	Clause string
	Reason string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("skipped clause %q: %s", d.Clause, d.Reason)
}

var clauseRe = regexp.MustCompile(`^\s*([<>=]*)\s*(\d+\.\d+\.\d+)\s*$`)

// ParseClause parses one clause of the form "[operator] major.minor.patch".
// A missing operator defaults to ">=".
func ParseClause(s string) (Clause, error) {
	m := clauseRe.FindStringSubmatch(s)
	if m == nil {
		return Clause{}, fmt.Errorf("malformed clause %q", s)
	}
	op := parseOperator(m[1])
	if op == OpInvalid {
		return Clause{}, fmt.Errorf("unknown operator %q", m[1])
	}
	v, err := Parse(m[2])
	if err != nil {
		return Clause{}, err
	}
	return Clause{Op: op, Version: v}, nil
}

func parseOperator(tok string) Operator {
	switch tok {
	case "":
		return OpGTE
	case ">":
		return OpGT
	case ">=":
		return OpGTE
	case "=", "==":
		return OpEQ
	case "<":
		return OpLT
	case "<=":
		return OpLTE
	}
	return OpInvalid
}

// ParseConstraint splits a comma-separated requirement string into clauses.
// Clauses that fail to parse are reported as diagnostics and skipped.
func ParseConstraint(s string) ([]Clause, []Diagnostic) {
	var clauses []Clause
	var diags []Diagnostic
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseClause(part)
		if err != nil {
			diags = append(diags, Diagnostic{Clause: strings.TrimSpace(part), Reason: err.Error()})
			continue
		}
		clauses = append(clauses, c)
	}
	return clauses, diags
}

// Evaluate reports whether target satisfies every successfully parsed
// clause across all requirement strings (pure AND semantics). An empty
// constraint set is always satisfied. Skipped clauses are returned as
// diagnostics and do not influence the outcome.
func Evaluate(target Version, constraints []string) (bool, []Diagnostic) {
	ok := true
	var diags []Diagnostic
	for _, s := range constraints {
		clauses, d := ParseConstraint(s)
		diags = append(diags, d...)
		for _, c := range clauses {
			if !c.Matches(target) {
				ok = false
			}
		}
	}
	return ok, diags
}
