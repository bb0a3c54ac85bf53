package hrquery

import "strings"

type ColumnKind int

const (
	KindInteger ColumnKind = iota
	KindNumeric
	KindText
	KindDate
	KindTime
)

type Column struct {
	Name        string
	Kind        ColumnKind
	Description string
	// ExactDate disables stale-year correction for historical dates.
	ExactDate bool
}

type Table struct {
	Name        string
	Description string
	Columns     []Column
}

const (
	TableEmployees     = "employees"
	TableAttendance    = "attendance"
	TableLeaveRequests = "leave_requests"
	TablePayroll       = "payroll"
	TableBenefits      = "benefits"
)

// EmployeeIDColumn links every HR table back to an employee.
const EmployeeIDColumn = "emp_id"

var tables = []Table{
	{
		Name:        TableEmployees,
		Description: "employee master data",
		Columns: []Column{
			{Name: "emp_id", Kind: KindInteger, Description: "employee id"},
			{Name: "first_name", Kind: KindText},
			{Name: "last_name", Kind: KindText},
			{Name: "department", Kind: KindText, Description: "IT, HR, Finance, Sales, Marketing, Operations"},
			{Name: "position", Kind: KindText},
			{Name: "salary", Kind: KindNumeric, Description: "monthly salary in THB"},
			{Name: "hire_date", Kind: KindDate, ExactDate: true},
			{Name: "email", Kind: KindText},
			{Name: "phone", Kind: KindText},
		},
	},
	{
		Name:        TableAttendance,
		Description: "daily check-in records",
		Columns: []Column{
			{Name: "attendance_id", Kind: KindInteger},
			{Name: "emp_id", Kind: KindInteger},
			{Name: "date", Kind: KindDate},
			{Name: "check_in", Kind: KindTime},
			{Name: "check_out", Kind: KindTime},
			{Name: "status", Kind: KindText, Description: "present | late | absent"},
			{Name: "total_hours", Kind: KindNumeric},
		},
	},
	{
		Name:        TableLeaveRequests,
		Description: "leave requests",
		Columns: []Column{
			{Name: "leave_id", Kind: KindInteger},
			{Name: "emp_id", Kind: KindInteger},
			{Name: "leave_type", Kind: KindText, Description: "sick | annual | personal"},
			{Name: "start_date", Kind: KindDate},
			{Name: "end_date", Kind: KindDate},
			{Name: "days", Kind: KindNumeric},
			{Name: "status", Kind: KindText, Description: "pending | approved | rejected"},
			{Name: "reason", Kind: KindText},
		},
	},
	{
		Name:        TablePayroll,
		Description: "monthly payroll runs",
		Columns: []Column{
			{Name: "payroll_id", Kind: KindInteger},
			{Name: "emp_id", Kind: KindInteger},
			{Name: "pay_period", Kind: KindDate, Description: "first day of the paid month"},
			{Name: "base_salary", Kind: KindNumeric},
			{Name: "overtime_pay", Kind: KindNumeric},
			{Name: "deductions", Kind: KindNumeric},
			{Name: "net_salary", Kind: KindNumeric},
			{Name: "pay_date", Kind: KindDate},
		},
	},
	{
		Name:        TableBenefits,
		Description: "employee benefits",
		Columns: []Column{
			{Name: "benefit_id", Kind: KindInteger},
			{Name: "emp_id", Kind: KindInteger},
			{Name: "benefit_type", Kind: KindText, Description: "health_insurance | provident_fund | transport | meal"},
			{Name: "provider", Kind: KindText},
			{Name: "amount", Kind: KindNumeric, Description: "THB"},
			{Name: "start_date", Kind: KindDate},
			{Name: "end_date", Kind: KindDate},
		},
	},
}

// Tables returns the catalog of queryable HR tables in declaration order.
func Tables() []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

func LookupTable(name string) (Table, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, table := range tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

func (t Table) Column(name string) (Column, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, column := range t.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

func (t Table) HasEmployeeID() bool {
	_, ok := t.Column(EmployeeIDColumn)
	return ok
}

func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		names = append(names, column.Name)
	}
	return names
}

func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}
