package hrquery

import (
	"fmt"
	"strings"
)

// Named analytic operations. Each one is backed by a server-side procedure and
// has an equivalent generic query used when the caller is scoped to a single
// employee.
const (
	OperationAverageSalary         = "average_salary"
	OperationTopDepartmentBySalary = "top_department_by_avg_salary"
	OperationEmployeeTotalHours    = "employee_total_hours"
	OperationMostAbsentEmployee    = "most_absent_employee"
	OperationMostLeaveEmployee     = "most_leave_employee"
)

const (
	paramEmployeeID = "emp_id"
	paramStartDate  = "start_date"
	paramEndDate    = "end_date"
)

type OperationParam struct {
	Name string
	Kind ColumnKind
}

// OperationInfo describes a named operation for prompts and documentation.
type OperationInfo struct {
	Name        string
	Procedure   string
	Description string
	Params      []OperationParam
	Outputs     []string
}

type operationDef struct {
	OperationInfo
	generic func(params map[string]any) Query
	shape   shape
}

type shape struct {
	table      string
	signatures []string
	conditions map[string]Operator
	values     map[string]string
	topOne     bool
}

var operations = []operationDef{
	{
		OperationInfo: OperationInfo{
			Name:        OperationAverageSalary,
			Procedure:   "hr_avg_salary",
			Description: "average salary across all employees",
			Outputs:     []string{"avg_salary"},
		},
		generic: func(map[string]any) Query {
			return Query{Type: TypeAggregate, Table: TableEmployees, Columns: []string{"AVG(salary) AS avg_salary"}, ConditionLogic: LogicAnd}
		},
		shape: shape{table: TableEmployees, signatures: []string{"AVG(salary)"}},
	},
	{
		OperationInfo: OperationInfo{
			Name:        OperationTopDepartmentBySalary,
			Procedure:   "hr_top_department_by_avg_salary",
			Description: "department with the highest average salary",
			Outputs:     []string{"department", "avg_salary"},
		},
		generic: func(map[string]any) Query {
			return Query{
				Type:           TypeAggregate,
				Table:          TableEmployees,
				Columns:        []string{"department", "AVG(salary) AS avg_salary"},
				ConditionLogic: LogicAnd,
				OrderBy:        []OrderBy{{Column: "avg_salary", Direction: directionDn}},
				Limit:          1,
			}
		},
		shape: shape{table: TableEmployees, signatures: []string{"department", "AVG(salary)"}, topOne: true},
	},
	{
		OperationInfo: OperationInfo{
			Name:        OperationEmployeeTotalHours,
			Procedure:   "hr_total_hours",
			Description: "total worked hours of one employee between two dates (inclusive)",
			Params: []OperationParam{
				{Name: paramEmployeeID, Kind: KindInteger},
				{Name: paramStartDate, Kind: KindDate},
				{Name: paramEndDate, Kind: KindDate},
			},
			Outputs: []string{"total_hours"},
		},
		generic: func(params map[string]any) Query {
			return Query{
				Type:    TypeAggregate,
				Table:   TableAttendance,
				Columns: []string{"SUM(total_hours) AS total_hours"},
				Conditions: map[string]Condition{
					"emp_id": {Operator: OpEq, Value: params[paramEmployeeID]},
					"date":   {Operator: OpBetween, Value: fmt.Sprintf("%v AND %v", params[paramStartDate], params[paramEndDate])},
				},
				ConditionLogic: LogicAnd,
			}
		},
		shape: shape{
			table:      TableAttendance,
			signatures: []string{"SUM(total_hours)"},
			conditions: map[string]Operator{"emp_id": OpEq, "date": OpBetween},
		},
	},
	{
		OperationInfo: OperationInfo{
			Name:        OperationMostAbsentEmployee,
			Procedure:   "hr_most_absent_employee",
			Description: "employee with the most absent days",
			Outputs:     []string{"emp_id", "absent_days"},
		},
		generic: func(map[string]any) Query {
			return Query{
				Type:           TypeAggregate,
				Table:          TableAttendance,
				Columns:        []string{"emp_id", "COUNT(*) AS absent_days"},
				Conditions:     map[string]Condition{"status": {Operator: OpEq, Value: "absent"}},
				ConditionLogic: LogicAnd,
				OrderBy:        []OrderBy{{Column: "absent_days", Direction: directionDn}},
				Limit:          1,
			}
		},
		shape: shape{
			table:      TableAttendance,
			signatures: []string{"emp_id", "COUNT(*)"},
			conditions: map[string]Operator{"status": OpEq},
			values:     map[string]string{"status": "absent"},
			topOne:     true,
		},
	},
	{
		OperationInfo: OperationInfo{
			Name:        OperationMostLeaveEmployee,
			Procedure:   "hr_most_leave_employee",
			Description: "employee with the most leave days",
			Outputs:     []string{"emp_id", "leave_days"},
		},
		generic: func(map[string]any) Query {
			return Query{
				Type:           TypeAggregate,
				Table:          TableLeaveRequests,
				Columns:        []string{"emp_id", "SUM(days) AS leave_days"},
				ConditionLogic: LogicAnd,
				OrderBy:        []OrderBy{{Column: "leave_days", Direction: directionDn}},
				Limit:          1,
			}
		},
		shape: shape{table: TableLeaveRequests, signatures: []string{"emp_id", "SUM(days)"}, topOne: true},
	},
}

// Operations lists the named operations in a stable order.
func Operations() []OperationInfo {
	out := make([]OperationInfo, 0, len(operations))
	for _, def := range operations {
		out = append(out, def.OperationInfo)
	}
	return out
}

func LookupOperation(name string) (OperationInfo, bool) {
	def, ok := lookupOperationDef(name)
	if !ok {
		return OperationInfo{}, false
	}
	return def.OperationInfo, true
}

func lookupOperationDef(name string) (operationDef, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, def := range operations {
		if def.Name == name {
			return def, true
		}
	}
	return operationDef{}, false
}

// Expand returns the generic query equivalent to a named operation.
func (c Compiler) Expand(op Operation) (Query, error) {
	def, ok := lookupOperationDef(op.Name)
	if !ok {
		return Query{}, invalidf("unknown operation %q", op.Name)
	}
	params, err := c.operationParams(def, op.Params)
	if err != nil {
		return Query{}, err
	}
	return def.generic(params), nil
}

// CompileOperation builds the procedure call for op and returns the
// procedure's output columns in order.
func (c Compiler) CompileOperation(op Operation) (Statement, []string, error) {
	def, ok := lookupOperationDef(op.Name)
	if !ok {
		return Statement{}, nil, invalidf("unknown operation %q", op.Name)
	}
	params, err := c.operationParams(def, op.Params)
	if err != nil {
		return Statement{}, nil, err
	}
	b := &builder{}
	args := make([]string, 0, len(def.Params))
	for _, param := range def.Params {
		args = append(args, c.placeholder(b, Column{Name: param.Name, Kind: param.Kind}, params[param.Name]))
	}
	sql := fmt.Sprintf("SELECT * FROM %s(%s)", def.Procedure, strings.Join(args, ", "))
	return Statement{SQL: sql, Args: b.args}, append([]string(nil), def.Outputs...), nil
}

func (c Compiler) operationParams(def operationDef, raw map[string]any) (map[string]any, error) {
	params := make(map[string]any, len(def.Params))
	for _, param := range def.Params {
		value, ok := raw[param.Name]
		if !ok || value == nil {
			return nil, invalidf("operation %s requires %s", def.Name, param.Name)
		}
		coerced, err := c.coerce(Column{Name: param.Name, Kind: param.Kind}, value)
		if err != nil {
			return nil, err
		}
		params[param.Name] = coerced
	}
	start, hasStart := params[paramStartDate]
	end, hasEnd := params[paramEndDate]
	if hasStart && hasEnd && greater(start, end) {
		params[paramStartDate], params[paramEndDate] = end, start
	}
	return params, nil
}

// matchShape recognises an aggregate query that one of the named operations
// answers exactly. It returns the operation plus the caller's output names,
// positionally aligned with the procedure outputs.
func (c Compiler) matchShape(q Query) (Operation, []string, bool) {
	if q.Type != TypeAggregate || q.Operation != nil {
		return Operation{}, nil, false
	}
	table, ok := LookupTable(q.Table)
	if !ok {
		return Operation{}, nil, false
	}
	projections, err := parseProjections(table, q)
	if err != nil {
		return Operation{}, nil, false
	}
	for _, def := range operations {
		s := def.shape
		if s.table != table.Name || len(s.signatures) != len(projections) {
			continue
		}
		if !signaturesMatch(s.signatures, projections) {
			continue
		}
		if !conditionsMatch(s, q) {
			continue
		}
		if !orderMatches(s, q, table, projections) {
			continue
		}
		params, ok := shapeParams(def, q)
		if !ok {
			continue
		}
		aliases := make([]string, len(projections))
		for i, p := range projections {
			aliases[i] = p.output
		}
		return Operation{Name: def.Name, Params: params}, aliases, true
	}
	return Operation{}, nil, false
}

func signaturesMatch(signatures []string, projections []projection) bool {
	for i, p := range projections {
		if !strings.EqualFold(signatures[i], p.signature()) {
			return false
		}
	}
	return true
}

func conditionsMatch(s shape, q Query) bool {
	if len(q.Conditions) != len(s.conditions) {
		return false
	}
	if len(q.Conditions) > 1 && q.ConditionLogic == LogicOr {
		return false
	}
	for column, op := range s.conditions {
		condition, ok := q.Conditions[column]
		if !ok || condition.Operator != op {
			return false
		}
		if _, isList := condition.Value.([]any); isList && op == OpEq {
			return false
		}
		if want, ok := s.values[column]; ok {
			got, isText := condition.Value.(string)
			if !isText || !strings.EqualFold(strings.TrimSpace(got), want) {
				return false
			}
		}
	}
	return true
}

func orderMatches(s shape, q Query, table Table, projections []projection) bool {
	if !s.topOne {
		return len(q.OrderBy) == 0 && q.Limit == 0
	}
	if q.Limit != 1 || len(q.OrderBy) != 1 || q.OrderBy[0].Direction != directionDn {
		return false
	}
	last := projections[len(projections)-1]
	expr, err := orderExpression(table, projections, q.OrderBy[0].Column)
	if err != nil {
		return false
	}
	return expr == quoteIdent(last.output)
}

func shapeParams(def operationDef, q Query) (map[string]any, bool) {
	if len(def.Params) == 0 {
		return nil, true
	}
	params := map[string]any{}
	if condition, ok := q.Conditions["emp_id"]; ok {
		params[paramEmployeeID] = condition.Value
	}
	if condition, ok := q.Conditions["date"]; ok {
		bounds, isText := condition.Value.(string)
		if !isText {
			return nil, false
		}
		tokens := betweenSplit.Split(strings.TrimSpace(bounds), -1)
		if len(tokens) != 2 {
			return nil, false
		}
		params[paramStartDate] = strings.Trim(strings.TrimSpace(tokens[0]), `'"`)
		params[paramEndDate] = strings.Trim(strings.TrimSpace(tokens[1]), `'"`)
	}
	for _, param := range def.Params {
		if _, ok := params[param.Name]; !ok {
			return nil, false
		}
	}
	return params, true
}
