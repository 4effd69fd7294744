package watch

import "strings"

// comboCategoryID names the one category whose intent is an intersection
// of two term families rather than a keyword union. Deliberately a named
// special case, not a general mechanism.
const comboCategoryID = "ai-for-science"

var comboAITerms = []string{
	" ai ",
	"artificial intelligence",
	"llm",
	"agent",
	"模型",
	"大模型",
	"人工智能",
}

var comboScienceTerms = []string{
	"research",
	"scientific",
	"science",
	"biology",
	"biotech",
	"drug discovery",
	"molecule",
	"protein",
	"materials",
	"科研",
	"科学研究",
	"药物发现",
	"蛋白质",
	"材料发现",
	"生物",
}

// Match scores a record against a category's rules and returns the score
// with the terms explaining it. Exclusion is absolute: any exclude
// keyword hit returns (0, nil) regardless of other signals. Filtering of
// zero-score records is the caller's responsibility.
func Match(r Record, category Category) (int, []string) {
	blob := strings.ToLower(strings.Join([]string{
		r.Title,
		r.TitleZH,
		r.TitleEN,
		r.Source,
		r.SiteName,
	}, " "))

	for _, kw := range category.ExcludeKeywords {
		if KeywordHit(blob, kw) {
			return 0, nil
		}
	}

	var matched []string
	for _, kw := range category.Keywords {
		if KeywordHit(blob, kw) {
			matched = append(matched, kw)
		}
	}
	score := len(matched)

	host := HostOfURL(r.URL)
	for _, domain := range category.Domains {
		if domain != "" && IsSameOrSubdomain(host, domain) {
			matched = append(matched, "domain:"+domain)
			score += 2
		}
	}

	if category.ID == comboCategoryID {
		padded := " " + blob + " "
		if containsAnyTerm(padded, comboAITerms) && containsAnyTerm(padded, comboScienceTerms) {
			matched = append(matched, "combo:ai+science")
			score += 3
		}
	}

	return score, matched
}

func containsAnyTerm(padded string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(padded, term) {
			return true
		}
	}
	return false
}
