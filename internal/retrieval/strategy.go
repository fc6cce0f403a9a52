package retrieval

import "strings"

type Strategy string

const (
	StrategyTest      Strategy = "test"
	StrategyDiet      Strategy = "diet"
	StrategyDrug      Strategy = "drug"
	StrategyEducation Strategy = "education"
	StrategyGeneral   Strategy = "general"
)

type keywordGroup struct {
	strategy Strategy
	keywords []string
}

// Checked in order; the first group with a hit wins.
var strategyGroups = []keywordGroup{
	{StrategyTest, []string{"檢查", "檢驗", "測試", "化驗", "診斷", "篩檢", "監測"}},
	{StrategyDiet, []string{"吃", "飲食", "食物", "營養", "禁忌", "避免"}},
	{StrategyDrug, []string{"藥物", "藥", "治療", "用藥", "副作用"}},
	{StrategyEducation, []string{"預防", "保健", "教育", "知識", "了解"}},
}

// Classify maps a question to the node category most likely to answer it.
func Classify(question string) Strategy {
	lower := strings.ToLower(question)
	for _, group := range strategyGroups {
		for _, keyword := range group.keywords {
			if strings.Contains(lower, keyword) {
				return group.strategy
			}
		}
	}
	return StrategyGeneral
}

var directScanQueries = map[Strategy]string{
	StrategyTest:      "MATCH (t:Test) RETURN t LIMIT 10",
	StrategyDiet:      "MATCH (d:Diet) RETURN d LIMIT 10",
	StrategyDrug:      "MATCH (d:Drug) RETURN d LIMIT 10",
	StrategyEducation: "MATCH (e:Education) RETURN e LIMIT 10",
	StrategyGeneral:   "MATCH (c:Category) RETURN c LIMIT 10",
}

// DirectScanQuery returns the unconditional category scan for s.
func DirectScanQuery(s Strategy) string {
	if query, ok := directScanQueries[s]; ok {
		return query
	}
	return directScanQueries[StrategyGeneral]
}
