// Package guard classifies questions as personal or about other employees and
// decides whether the chat pipeline may answer them for the selected employee.
//
// The classifiers are regular expressions over Thai and English phrasing. They
// shape the conversation but are not an access control boundary: scoping that
// must hold is applied by the query compiler from the authenticated identity.
package guard

import (
	"regexp"
	"strings"

	"github.com/hrchat/hrchat/internal/hrquery"
)

type Action string

const (
	ActionPass    Action = "PASS"
	ActionReject  Action = "REJECT"
	ActionClarify Action = "CLARIFY"
)

const (
	RejectMessage  = "ขออภัยค่ะ คุณสามารถสอบถามได้เฉพาะข้อมูลของตนเองเท่านั้น ไม่สามารถดูข้อมูลของพนักงานคนอื่นได้"
	ClarifyMessage = "กรุณาเลือกพนักงาน (รหัสพนักงาน) ก่อน เพื่อให้ระบบตอบคำถามเกี่ยวกับข้อมูลส่วนตัวของคุณได้ค่ะ"
)

type Decision struct {
	Action  Action
	Message string
	// ScopeEmployeeID is set when the question is personal and must be
	// answered for this employee only.
	ScopeEmployeeID *int64
}

func (d Decision) Personalized() bool {
	return d.Action == ActionPass && d.ScopeEmployeeID != nil
}

// Apply injects the employee equality condition for personalised decisions.
// Named operations and OR queries are left untouched; an extra disjunct would
// not restrict them, so they are scoped by the executor instead (see Scope).
func (d Decision) Apply(q hrquery.Query) hrquery.Query {
	if !d.Personalized() || q.Operation != nil || q.Disjunctive() {
		return q
	}
	table, ok := hrquery.LookupTable(q.Table)
	if !ok || !table.HasEmployeeID() {
		return q
	}
	return q.WithCondition(hrquery.EmployeeIDColumn, hrquery.Condition{Operator: hrquery.OpEq, Value: *d.ScopeEmployeeID})
}

// Scope is the executor scope a personalised decision needs for queries that
// Apply leaves untouched.
func (d Decision) Scope(q hrquery.Query) hrquery.Scope {
	if !d.Personalized() || (q.Operation == nil && !q.Disjunctive()) {
		return hrquery.Scope{}
	}
	id := *d.ScopeEmployeeID
	return hrquery.Scope{EmployeeID: &id}
}

var thaiPronouns = []string{"ฉัน", "ผม", "กระผม", "ดิฉัน", "หนู", "เรา", "ตัวเอง"}

var (
	thaiPersonal    = regexp.MustCompile(`ฉัน|ดิฉัน|กระผม|ผม|หนู(?:เอง)?|ตัวเอง|ของเรา`)
	englishPersonal = regexp.MustCompile(`(?i)\b(my|me|mine|myself)\b|\bI\s+(am|was|have|had|did|do|work|worked|take|took)\b|\bam\s+I\b`)

	// Topic phrases that only make sense about the asker. Questions about who
	// was absent or late stay out of this list; they are roster-wide.
	thaiPersonalTopic    = regexp.MustCompile(`วันลา(?:ที่)?(?:คงเหลือ|เหลือ)|ลาคงเหลือ|สิทธิ์?(?:การ)?ลา(?:คงเหลือ|เหลือ)?|สลิปเงินเดือน|เงินเดือน(?:เดือน)?(?:นี้|ที่แล้ว|ล่าสุด)|ชั่วโมงทำงาน(?:เดือน|สัปดาห์|วัน)(?:นี้|ที่แล้ว)|เวลาเข้างานวันนี้`)
	englishPersonalTopic = regexp.MustCompile(`(?i)\b(leave\s+balance|remaining\s+leave|leave\s+days\s+left|payslip|this\s+month'?s\s+(salary|pay)|hours\s+worked\s+this\s+(month|week))\b`)

	thaiPossessive  = regexp.MustCompile(`(เงินเดือน|ค่าจ้าง|วันลา|การลา|ลา|ชั่วโมงทำงาน|เวลาทำงาน|การเข้างาน|ขาดงาน|มาสาย|สวัสดิการ|โบนัส|ข้อมูล|ประวัติ)\s*ของ\s*(\S+)`)
	thaiEmployeeRef = regexp.MustCompile(`(รหัส(?:พนักงาน)?|พนักงาน(?:รหัส|หมายเลข|คนที่|เบอร์)?)\s*\d+`)
	thaiOthers      = regexp.MustCompile(`ใคร|คนไหน|ทุกคน|คนอื่น|เพื่อนร่วมงาน|พนักงานทั้งหมด`)
	thaiDepartment  = regexp.MustCompile(`แผนก|ฝ่าย`)

	englishEmployeeRef = regexp.MustCompile(`(?i)\b(emp_id\s*=?\s*\d+|employee\s*(id|#|no\.?|number)?\s*\d+)`)
	englishOf          = regexp.MustCompile(`(?i)\b(salary|salaries|pay|leave|leaves|attendance|hours|benefits?|bonus)\s+(?:of|for)\s+(\w+)`)
	englishGenitive    = regexp.MustCompile(`(?i)\b(\w+)'s\s+(salary|pay|leave|attendance|hours|benefits?|bonus)`)
	englishOthers      = regexp.MustCompile(`(?i)\b(who|whose|everyone|anyone|colleagues?|other employees|all employees)\b`)
	englishDepartment  = regexp.MustCompile(`(?i)\bdepartments?\b`)
)

var englishSelfWords = map[string]struct{}{
	"me": {}, "my": {}, "myself": {}, "mine": {}, "i": {}, "it": {}, "that": {}, "this": {}, "what": {}, "the": {},
}

type Guard struct{}

func New() *Guard {
	return &Guard{}
}

// Check applies the decision table:
//
//	employee selected, other-employee question     -> REJECT
//	no employee, personal question                 -> CLARIFY
//	employee selected, personal question           -> PASS scoped to the employee
//	otherwise                                      -> PASS unmodified
func (g *Guard) Check(question string, employeeID *int64) Decision {
	other := IsAboutOtherEmployee(question)
	personal := IsPersonal(question)

	switch {
	case employeeID != nil && other:
		return Decision{Action: ActionReject, Message: RejectMessage}
	case employeeID == nil && personal:
		return Decision{Action: ActionClarify, Message: ClarifyMessage}
	case employeeID != nil && personal:
		id := *employeeID
		return Decision{Action: ActionPass, ScopeEmployeeID: &id}
	default:
		return Decision{Action: ActionPass}
	}
}

func IsPersonal(question string) bool {
	return thaiPersonal.MatchString(question) || englishPersonal.MatchString(question) ||
		thaiPersonalTopic.MatchString(question) || englishPersonalTopic.MatchString(question)
}

func IsAboutOtherEmployee(question string) bool {
	for _, match := range thaiPossessive.FindAllStringSubmatch(question, -1) {
		if !startsWithPronoun(match[2]) {
			return true
		}
	}
	if thaiEmployeeRef.MatchString(question) || englishEmployeeRef.MatchString(question) {
		return true
	}
	if thaiOthers.MatchString(question) || englishOthers.MatchString(question) {
		return true
	}
	if thaiDepartment.MatchString(question) || englishDepartment.MatchString(question) {
		return true
	}
	for _, match := range englishOf.FindAllStringSubmatch(question, -1) {
		if _, self := englishSelfWords[strings.ToLower(match[2])]; !self {
			return true
		}
	}
	for _, match := range englishGenitive.FindAllStringSubmatch(question, -1) {
		if _, self := englishSelfWords[strings.ToLower(match[1])]; !self {
			return true
		}
	}
	return false
}

func startsWithPronoun(text string) bool {
	for _, pronoun := range thaiPronouns {
		if strings.HasPrefix(text, pronoun) {
			return true
		}
	}
	return false
}
