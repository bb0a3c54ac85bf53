// Package hrdata holds the row types of the HR tables and the bundled demo
// dataset shared by the PostgreSQL and DuckDB backends.
package hrdata

import (
	_ "embed"
)

//go:embed seed.sql
var seedSQL string

// SeedSQL returns INSERT statements for the demo dataset. The statements are
// valid for both supported SQL backends once the schema exists.
func SeedSQL() string {
	return seedSQL
}

// DateLayout is the text form used for DATE values in snapshots.
const DateLayout = "2006-01-02"

type Employee struct {
	EmpID      int64   `parquet:"emp_id" json:"emp_id"`
	FirstName  string  `parquet:"first_name" json:"first_name"`
	LastName   string  `parquet:"last_name" json:"last_name"`
	Department string  `parquet:"department" json:"department"`
	Position   string  `parquet:"position" json:"position"`
	Salary     float64 `parquet:"salary" json:"salary"`
	HireDate   string  `parquet:"hire_date" json:"hire_date"`
	Email      string  `parquet:"email" json:"email"`
	Phone      string  `parquet:"phone" json:"phone"`
}

func (e Employee) DisplayName() string {
	switch {
	case e.FirstName == "":
		return e.LastName
	case e.LastName == "":
		return e.FirstName
	default:
		return e.FirstName + " " + e.LastName
	}
}

type Attendance struct {
	AttendanceID int64   `parquet:"attendance_id"`
	EmpID        int64   `parquet:"emp_id"`
	Date         string  `parquet:"date"`
	CheckIn      *string `parquet:"check_in,optional"`
	CheckOut     *string `parquet:"check_out,optional"`
	Status       string  `parquet:"status"`
	TotalHours   float64 `parquet:"total_hours"`
}

type LeaveRequest struct {
	LeaveID   int64   `parquet:"leave_id"`
	EmpID     int64   `parquet:"emp_id"`
	LeaveType string  `parquet:"leave_type"`
	StartDate string  `parquet:"start_date"`
	EndDate   string  `parquet:"end_date"`
	Days      float64 `parquet:"days"`
	Status    string  `parquet:"status"`
	Reason    *string `parquet:"reason,optional"`
}

type Payroll struct {
	PayrollID   int64   `parquet:"payroll_id"`
	EmpID       int64   `parquet:"emp_id"`
	PayPeriod   string  `parquet:"pay_period"`
	BaseSalary  float64 `parquet:"base_salary"`
	OvertimePay float64 `parquet:"overtime_pay"`
	Deductions  float64 `parquet:"deductions"`
	NetSalary   float64 `parquet:"net_salary"`
	PayDate     *string `parquet:"pay_date,optional"`
}

type Benefit struct {
	BenefitID   int64   `parquet:"benefit_id"`
	EmpID       int64   `parquet:"emp_id"`
	BenefitType string  `parquet:"benefit_type"`
	Provider    *string `parquet:"provider,optional"`
	Amount      float64 `parquet:"amount"`
	StartDate   string  `parquet:"start_date"`
	EndDate     *string `parquet:"end_date,optional"`
}

// Dataset is a full copy of the HR tables.
type Dataset struct {
	Employees     []Employee
	Attendance    []Attendance
	LeaveRequests []LeaveRequest
	Payroll       []Payroll
	Benefits      []Benefit
}

func (d Dataset) RowCounts() map[string]int {
	return map[string]int{
		"employees":      len(d.Employees),
		"attendance":     len(d.Attendance),
		"leave_requests": len(d.LeaveRequests),
		"payroll":        len(d.Payroll),
		"benefits":       len(d.Benefits),
	}
}
