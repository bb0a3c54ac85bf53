package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hrchat/hrchat/internal/hrdata"
)

// ReadDataset copies every HR table into memory. Dates and times are read as
// text so both backends produce identical values.
func (s *Store) ReadDataset(ctx context.Context) (hrdata.Dataset, error) {
	var (
		dataset hrdata.Dataset
		err     error
	)
	if dataset.Employees, err = s.readEmployees(ctx); err != nil {
		return hrdata.Dataset{}, err
	}
	if dataset.Attendance, err = s.readAttendance(ctx); err != nil {
		return hrdata.Dataset{}, err
	}
	if dataset.LeaveRequests, err = s.readLeaveRequests(ctx); err != nil {
		return hrdata.Dataset{}, err
	}
	if dataset.Payroll, err = s.readPayroll(ctx); err != nil {
		return hrdata.Dataset{}, err
	}
	if dataset.Benefits, err = s.readBenefits(ctx); err != nil {
		return hrdata.Dataset{}, err
	}
	return dataset, nil
}

const employeesQuery = `
SELECT emp_id, first_name, last_name, department, position,
       CAST(salary AS DOUBLE PRECISION), CAST(hire_date AS TEXT), COALESCE(email, ''), COALESCE(phone, '')
FROM employees
ORDER BY emp_id ASC`

func (s *Store) readEmployees(ctx context.Context) ([]hrdata.Employee, error) {
	out := make([]hrdata.Employee, 0)
	err := s.scanAll(ctx, "employees", employeesQuery, func(rows *sql.Rows) error {
		var e hrdata.Employee
		if err := rows.Scan(&e.EmpID, &e.FirstName, &e.LastName, &e.Department, &e.Position, &e.Salary, &e.HireDate, &e.Email, &e.Phone); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

const attendanceQuery = `
SELECT attendance_id, emp_id, CAST("date" AS TEXT), CAST(check_in AS TEXT), CAST(check_out AS TEXT),
       status, CAST(COALESCE(total_hours, 0) AS DOUBLE PRECISION)
FROM attendance
ORDER BY attendance_id ASC`

func (s *Store) readAttendance(ctx context.Context) ([]hrdata.Attendance, error) {
	out := make([]hrdata.Attendance, 0)
	err := s.scanAll(ctx, "attendance", attendanceQuery, func(rows *sql.Rows) error {
		var (
			a                 hrdata.Attendance
			checkIn, checkOut sql.NullString
		)
		if err := rows.Scan(&a.AttendanceID, &a.EmpID, &a.Date, &checkIn, &checkOut, &a.Status, &a.TotalHours); err != nil {
			return err
		}
		a.CheckIn = nullableString(checkIn)
		a.CheckOut = nullableString(checkOut)
		out = append(out, a)
		return nil
	})
	return out, err
}

const leaveRequestsQuery = `
SELECT leave_id, emp_id, leave_type, CAST(start_date AS TEXT), CAST(end_date AS TEXT),
       CAST(days AS DOUBLE PRECISION), status, reason
FROM leave_requests
ORDER BY leave_id ASC`

func (s *Store) readLeaveRequests(ctx context.Context) ([]hrdata.LeaveRequest, error) {
	out := make([]hrdata.LeaveRequest, 0)
	err := s.scanAll(ctx, "leave_requests", leaveRequestsQuery, func(rows *sql.Rows) error {
		var (
			l      hrdata.LeaveRequest
			reason sql.NullString
		)
		if err := rows.Scan(&l.LeaveID, &l.EmpID, &l.LeaveType, &l.StartDate, &l.EndDate, &l.Days, &l.Status, &reason); err != nil {
			return err
		}
		l.Reason = nullableString(reason)
		out = append(out, l)
		return nil
	})
	return out, err
}

const payrollQuery = `
SELECT payroll_id, emp_id, CAST(pay_period AS TEXT),
       CAST(base_salary AS DOUBLE PRECISION), CAST(overtime_pay AS DOUBLE PRECISION),
       CAST(deductions AS DOUBLE PRECISION), CAST(net_salary AS DOUBLE PRECISION), CAST(pay_date AS TEXT)
FROM payroll
ORDER BY payroll_id ASC`

func (s *Store) readPayroll(ctx context.Context) ([]hrdata.Payroll, error) {
	out := make([]hrdata.Payroll, 0)
	err := s.scanAll(ctx, "payroll", payrollQuery, func(rows *sql.Rows) error {
		var (
			p       hrdata.Payroll
			payDate sql.NullString
		)
		if err := rows.Scan(&p.PayrollID, &p.EmpID, &p.PayPeriod, &p.BaseSalary, &p.OvertimePay, &p.Deductions, &p.NetSalary, &payDate); err != nil {
			return err
		}
		p.PayDate = nullableString(payDate)
		out = append(out, p)
		return nil
	})
	return out, err
}

const benefitsQuery = `
SELECT benefit_id, emp_id, benefit_type, provider, CAST(amount AS DOUBLE PRECISION),
       CAST(start_date AS TEXT), CAST(end_date AS TEXT)
FROM benefits
ORDER BY benefit_id ASC`

func (s *Store) readBenefits(ctx context.Context) ([]hrdata.Benefit, error) {
	out := make([]hrdata.Benefit, 0)
	err := s.scanAll(ctx, "benefits", benefitsQuery, func(rows *sql.Rows) error {
		var (
			b                 hrdata.Benefit
			provider, endDate sql.NullString
		)
		if err := rows.Scan(&b.BenefitID, &b.EmpID, &b.BenefitType, &provider, &b.Amount, &b.StartDate, &endDate); err != nil {
			return err
		}
		b.Provider = nullableString(provider)
		b.EndDate = nullableString(endDate)
		out = append(out, b)
		return nil
	})
	return out, err
}

func (s *Store) scanAll(ctx context.Context, table, query string, scan func(rows *sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s row: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	text := value.String
	return &text
}
