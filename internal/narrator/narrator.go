// Package narrator renders query results as a Thai chat reply.
package narrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hrchat/hrchat/internal/hrquery"
	"github.com/hrchat/hrchat/internal/llm"
)

// EmployeeNameField carries the resolved display name added to result rows.
const EmployeeNameField = "employee_name"

const DefaultMaxRows = 20

const conventions = `ตอบเป็นภาษาไทย สุภาพ กระชับ
- อ้างถึงพนักงานในรูปแบบ "{ชื่อ} รหัสพนักงาน {id}" ถ้ามีชื่อ (employee_name) มิฉะนั้นใช้ "รหัสพนักงาน {id}"
- จำนวนเงิน (salary, net_salary, base_salary, overtime_pay, deductions, amount, avg_salary) ให้ใส่คอมมาคั่นหลักพันและต่อท้ายด้วย "บาท"
- ถ้าผลลัพธ์มีหลายแถว ให้สรุปภาพรวม ไม่ต้องไล่ทุกแถว
- ถ้าไม่พบข้อมูล ให้บอกตรงๆ ว่าไม่พบข้อมูล
- ห้ามแต่งข้อมูลที่ไม่มีในผลลัพธ์`

type Input struct {
	Question     string
	Rows         []hrquery.Row
	Query        hrquery.Query
	Personalized bool
}

type Narrator struct {
	Model   llm.Completer
	MaxRows int
}

func New(model llm.Completer, maxRows int) *Narrator {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Narrator{Model: model, MaxRows: maxRows}
}

func (n *Narrator) Narrate(ctx context.Context, in Input) (string, error) {
	prompt, err := n.prompt(in)
	if err != nil {
		return "", err
	}
	reply, err := n.Model.Complete(ctx, llm.Request{
		System:   conventions,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (n *Narrator) prompt(in Input) (string, error) {
	maxRows := n.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	var b strings.Builder
	fmt.Fprintf(&b, "คำถาม: %s\n", strings.TrimSpace(in.Question))
	if in.Personalized {
		b.WriteString("คำถามนี้เป็นข้อมูลส่วนตัวของผู้ถาม ให้ตอบโดยพูดกับผู้ถามโดยตรง (เช่น \"คุณ\")\n")
	}

	queryJSON, err := json.Marshal(in.Query)
	if err != nil {
		return "", fmt.Errorf("marshal query for narration: %w", err)
	}
	fmt.Fprintf(&b, "Query ที่ใช้: %s\n", queryJSON)

	total := len(in.Rows)
	if total == 0 {
		b.WriteString("จำนวนผลลัพธ์: 0 แถว (ไม่พบข้อมูล)\n")
		return b.String(), nil
	}

	sample := in.Rows
	if total > maxRows {
		sample = in.Rows[:maxRows]
		fmt.Fprintf(&b, "จำนวนผลลัพธ์: %d แถว (แสดงตัวอย่าง %d แถวแรก ให้สรุปภาพรวม)\n", total, maxRows)
	} else {
		fmt.Fprintf(&b, "จำนวนผลลัพธ์: %d แถว\n", total)
	}
	rowsJSON, err := json.Marshal(sample)
	if err != nil {
		return "", fmt.Errorf("marshal rows for narration: %w", err)
	}
	fmt.Fprintf(&b, "ผลลัพธ์: %s\n", rowsJSON)
	return b.String(), nil
}
