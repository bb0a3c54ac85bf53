package nl2sql

import (
	"fmt"
	"strings"
	"time"

	"github.com/hrchat/hrchat/internal/hrquery"
)

const promptRules = `Rules:
- Reply with ONE JSON object and nothing else. No markdown, no explanation.
- Fields: type (SELECT | COUNT | AGGREGATE), table, columns, conditions, conditionLogic (AND | OR, default AND), orderBy [{column, direction}], limit, operation {name, params}.
- conditions maps a column to {"operator": op, "value": v}. Allowed operators: =, !=, <>, >, >=, <, <=, IN, LIKE, BETWEEN. Never invent other operators.
- Use LIKE (value without %) for first_name, last_name, department and position.
- Department names are English: IT, HR, Finance, Sales, Marketing, Operations. ฝ่ายขาย = Sales, ฝ่ายบุคคล = HR, ฝ่ายบัญชี/การเงิน = Finance.
- attendance.status is exactly one of present, late, absent. Use = or IN, never LIKE. มาสาย = late, ขาดงาน = absent, มาทำงาน = present.
- A full date uses = with "YYYY-MM-DD". A month reference ("YYYY-MM", "เดือนมีนาคม") uses BETWEEN "YYYY-MM-01 AND YYYY-MM-<last day>" with the correct last day of that month.
- Relative dates (วันนี้, เมื่อวาน, สัปดาห์ที่แล้ว) are resolved against today's date below.
- If the question names a person instead of an id, use the value "(SELECT emp_id FROM employees WHERE first_name LIKE '%NAME%')" (or last_name) with operator =.
- Aggregates go in columns as FUNC(column) AS alias with FUNC one of COUNT, SUM, AVG, MIN, MAX.
- When the question is one of the named operations below, reply only {"operation": {"name": ..., "params": {...}}}.
- Personal questions (ฉัน, ผม, my) are scoped by the server; do not add emp_id yourself.`

func buildPrompt(now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var b strings.Builder
	b.WriteString("คุณคือผู้ช่วยที่แปลงคำถามภาษาไทยหรืออังกฤษเกี่ยวกับข้อมูล HR ให้เป็น JSON query\n")
	b.WriteString("You translate HR questions (Thai or English) into a JSON query over these tables:\n\n")
	for _, table := range hrquery.Tables() {
		fmt.Fprintf(&b, "%s (%s)\n", table.Name, table.Description)
		for _, column := range table.Columns {
			fmt.Fprintf(&b, "  - %s %s", column.Name, column.Kind)
			if column.Description != "" {
				fmt.Fprintf(&b, ": %s", column.Description)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nNamed operations:\n")
	for _, op := range hrquery.Operations() {
		fmt.Fprintf(&b, "  - %s: %s", op.Name, op.Description)
		if len(op.Params) > 0 {
			names := make([]string, 0, len(op.Params))
			for _, param := range op.Params {
				names = append(names, param.Name)
			}
			fmt.Fprintf(&b, " (params: %s)", strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(promptRules)
	b.WriteString("\n\nExamples:\n")
	for _, example := range promptExamples(today) {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", example.question, example.answer)
	}
	fmt.Fprintf(&b, "\nToday is %s.\n", today.Format("2006-01-02"))
	return b.String()
}

type example struct {
	question string
	answer   string
}

func promptExamples(today time.Time) []example {
	yesterday := today.AddDate(0, 0, -1).Format("2006-01-02")
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)
	lastMonthStart := monthStart.AddDate(0, -1, 0)
	lastMonthEnd := monthStart.AddDate(0, 0, -1)

	return []example{
		{
			question: "เมื่อวานใครมาสายบ้าง",
			answer:   fmt.Sprintf(`{"type":"SELECT","table":"attendance","columns":["emp_id","date","check_in"],"conditions":{"status":{"operator":"=","value":"late"},"date":{"operator":"=","value":"%s"}}}`, yesterday),
		},
		{
			question: "พนักงานแผนก IT มีใครบ้าง",
			answer:   `{"type":"SELECT","table":"employees","columns":["emp_id","first_name","last_name","position"],"conditions":{"department":{"operator":"LIKE","value":"IT"}}}`,
		},
		{
			question: "ฝ่ายขายมีพนักงานกี่คน",
			answer:   `{"type":"COUNT","table":"employees","conditions":{"department":{"operator":"LIKE","value":"Sales"}}}`,
		},
		{
			question: "สมชายลากี่วันเดือนที่แล้ว",
			answer: fmt.Sprintf(`{"type":"AGGREGATE","table":"leave_requests","columns":["SUM(days) AS leave_days"],"conditions":{"emp_id":{"operator":"=","value":"(SELECT emp_id FROM employees WHERE first_name LIKE '%%สมชาย%%')"},"start_date":{"operator":"BETWEEN","value":"%s AND %s"}}}`,
				lastMonthStart.Format("2006-01-02"), lastMonthEnd.Format("2006-01-02")),
		},
		{
			question: "ใครเงินเดือนมากกว่า 80000 หรืออยู่ฝ่าย HR",
			answer:   `{"type":"SELECT","table":"employees","columns":["emp_id","first_name","last_name","department","salary"],"conditions":{"salary":{"operator":">","value":80000},"department":{"operator":"LIKE","value":"HR"}},"conditionLogic":"OR"}`,
		},
		{
			question: "เงินเดือนเฉลี่ยของพนักงานทั้งหมดเท่าไหร่",
			answer:   `{"operation":{"name":"average_salary"}}`,
		},
		{
			question: "How many hours did employee 3 work this month?",
			answer: fmt.Sprintf(`{"operation":{"name":"employee_total_hours","params":{"emp_id":3,"start_date":"%s","end_date":"%s"}}}`,
				monthStart.Format("2006-01-02"), monthEnd.Format("2006-01-02")),
		},
		{
			question: "5 คนที่ได้เงินเดือนสุทธิสูงสุดเดือนนี้",
			answer: fmt.Sprintf(`{"type":"SELECT","table":"payroll","columns":["emp_id","net_salary"],"conditions":{"pay_period":{"operator":"=","value":"%s"}},"orderBy":[{"column":"net_salary","direction":"desc"}],"limit":5}`,
				monthStart.Format("2006-01-02")),
		},
	}
}
