package guard

import (
	"testing"

	"github.com/hrchat/hrchat/internal/hrquery"
)

func ptr(id int64) *int64 { return &id }

func TestCheckDecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		question   string
		employeeID *int64
		action     Action
		scoped     bool
	}{
		{name: "personal without employee asks to clarify", question: "เงินเดือนของฉันเท่าไหร่", action: ActionClarify},
		{name: "personal with employee is scoped", question: "เงินเดือนของฉันเท่าไหร่", employeeID: ptr(5), action: ActionPass, scoped: true},
		{name: "other employee with employee is rejected", question: "เงินเดือนของสมชายเท่าไหร่", employeeID: ptr(5), action: ActionReject},
		{name: "other employee by id is rejected", question: "พนักงานรหัส 7 ลากี่วัน", employeeID: ptr(5), action: ActionReject},
		{name: "other employee without selection passes", question: "เงินเดือนของสมชายเท่าไหร่", action: ActionPass},
		{name: "who was absent yesterday passes unrestricted", question: "เมื่อวานมีใครขาดงานบ้าง", action: ActionPass},
		{name: "general question passes", question: "บริษัทมีพนักงานกี่คน", employeeID: ptr(5), action: ActionPass},
		{name: "english personal", question: "How many leave days do I have left? Show my balance", employeeID: ptr(3), action: ActionPass, scoped: true},
		{name: "english personal without selection", question: "what is my salary", action: ActionClarify},
		{name: "english other employee", question: "What is John's salary?", employeeID: ptr(3), action: ActionReject},
		{name: "department salary is about others", question: "เงินเดือนเฉลี่ยของแผนก IT", employeeID: ptr(3), action: ActionReject},
		{name: "department mention alone is about others", question: "แผนก IT มีพนักงานกี่คน", employeeID: ptr(5), action: ActionReject},
		{name: "english department mention is about others", question: "How many people work in the Sales department?", employeeID: ptr(5), action: ActionReject},
		{name: "department question without selection passes", question: "แผนก IT มีพนักงานกี่คน", action: ActionPass},
		{name: "remaining leave topic clarifies", question: "วันลาคงเหลือเท่าไหร่", action: ActionClarify},
		{name: "this month salary topic clarifies", question: "เงินเดือนเดือนนี้ได้เท่าไหร่", action: ActionClarify},
		{name: "working hours topic clarifies", question: "ชั่วโมงทำงานเดือนนี้", action: ActionClarify},
		{name: "remaining leave topic is scoped", question: "วันลาคงเหลือเท่าไหร่", employeeID: ptr(5), action: ActionPass, scoped: true},
		{name: "english leave balance topic clarifies", question: "What is the leave balance?", action: ActionClarify},
		{name: "mixed personal and other without selection clarifies", question: "เงินเดือนของฉันกับของสมชาย", action: ActionClarify},
	}
	g := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := g.Check(tt.question, tt.employeeID)
			if decision.Action != tt.action {
				t.Fatalf("Check(%q) action = %s, want %s", tt.question, decision.Action, tt.action)
			}
			if decision.Personalized() != tt.scoped {
				t.Fatalf("Check(%q) personalized = %v, want %v", tt.question, decision.Personalized(), tt.scoped)
			}
			switch tt.action {
			case ActionReject:
				if decision.Message != RejectMessage {
					t.Fatalf("reject message = %q", decision.Message)
				}
			case ActionClarify:
				if decision.Message != ClarifyMessage {
					t.Fatalf("clarify message = %q", decision.Message)
				}
			}
		})
	}
}

func TestDecisionApplyInjectsEmployeeCondition(t *testing.T) {
	decision := New().Check("เงินเดือนของฉัน", ptr(5))
	q := hrquery.Query{
		Type:       hrquery.TypeSelect,
		Table:      hrquery.TableEmployees,
		Columns:    []string{"salary"},
		Conditions: map[string]hrquery.Condition{"emp_id": {Operator: hrquery.OpEq, Value: int64(9)}},
	}
	scoped := decision.Apply(q)
	if got := scoped.Conditions["emp_id"]; got.Operator != hrquery.OpEq || got.Value != int64(5) {
		t.Fatalf("scoped condition = %+v", got)
	}
	if q.Conditions["emp_id"].Value != int64(9) {
		t.Fatal("Apply must not modify the original query")
	}

	unscoped := Decision{Action: ActionPass}.Apply(q)
	if unscoped.Conditions["emp_id"].Value != int64(9) {
		t.Fatal("unscoped decision should not rewrite the query")
	}
	if decision.Scope(q).Restricted() {
		t.Fatal("AND queries are scoped by the injected condition")
	}
}

func TestDecisionScopesOrQueriesThroughExecutor(t *testing.T) {
	decision := New().Check("การลาของฉัน", ptr(5))
	q := hrquery.Query{
		Type:           hrquery.TypeSelect,
		Table:          hrquery.TableLeaveRequests,
		ConditionLogic: "or",
		Conditions:     map[string]hrquery.Condition{"leave_type": {Operator: hrquery.OpEq, Value: "sick"}},
	}
	if _, injected := decision.Apply(q).Conditions["emp_id"]; injected {
		t.Fatal("Apply must not add emp_id as an OR disjunct")
	}
	scope := decision.Scope(q)
	if !scope.Restricted() || *scope.EmployeeID != 5 {
		t.Fatalf("scope = %+v", scope)
	}
	if (Decision{Action: ActionPass}).Scope(q).Restricted() {
		t.Fatal("impersonal decisions must not scope")
	}
}
