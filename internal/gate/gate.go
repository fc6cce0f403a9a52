// Package gate rejects questions outside the kidney-health domain before any
// retrieval work happens.
//
// The check is a case-insensitive substring match against a fixed keyword
// list. It is permissive: an off-topic question that happens to mention 尿 or
// 飲食 passes.
package gate

import "strings"

// RefusalMessage is returned as both outline and detail for rejected questions.
const RefusalMessage = "不好意思，我是腎臟健康衛教機器人，專門回答腎臟相關問題。無法提供此問題的解答。"

var keywords = []string{
	// organ and disease terms
	"腎", "腎臟", "腎功能", "腎病", "慢性腎臟病", "腎衰竭", "腎炎", "尿毒",
	"腎絲球", "腎小管", "腎元",
	// abbreviations and lab markers
	"ckd", "egfr", "gfr", "bun", "uacr", "肌酸酐", "蛋白尿", "血尿", "尿",
	// procedures
	"透析", "洗腎", "血液透析", "腹膜透析", "腎臟移植",
	// care topics
	"飲食", "腎臟保健", "腎臟檢查", "腎臟藥物", "腎臟飲食", "腎臟營養", "腎衰竭預防",
	"kidney", "renal", "dialysis", "nephro",
}

// Check reports whether question mentions any domain keyword.
func Check(question string) bool {
	lower := strings.ToLower(question)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
