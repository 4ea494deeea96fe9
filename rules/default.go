package rules

import (
	"regexp"

	"github.com/johnstarich/go/regext"
)

var (
	groceriesPattern = regext.MustCompile(` (?i)
		\b( grocer | market | supercenter | wholefds | liquor | mart )\b
	`)
	restaurantsPattern = regext.MustCompile(` (?i)
		\b( bakery | bar | bistro | burger.* | cafe | coffee | deli | diner
		  | food | grill | kitchen | pizza | pizzeria | restaurant | sushi
		  | taco | thai )\b
	`)
	subscriptionsPattern = regext.MustCompile(` (?i)
		\b( membership | spotify | subscriptions? | netflix | audible )\b
	`)
	gasPattern = regext.MustCompile(` (?i)
		\b( chevron | exxon.* | shell | 7-eleven )\b
	`)
	interestPattern = regext.MustCompile(` (?i)
		\b( autodiv | dividend | interest )\b
	`)
	transfersPattern = regext.MustCompile(` (?i)
		\b( transfer | wire | e-?payment | autopay )\b
	`)
)

// DefaultUncategorized is the fallback counterpart account for postings no
// rule recognizes
const DefaultUncategorized = "Expenses:Uncategorized"

// Default classifies common statement descriptions into a conventional
// expense and revenue account layout. Meant as a starting point: most setups
// load their own rule file and fall back to these.
var Default = mustRules(
	[]Rule{
		patternRule(transfersPattern, "Assets:Transfers"),
		patternRule(interestPattern, "Revenues:Interest"),
		patternRule(groceriesPattern, "Expenses:Food:Groceries"),
		patternRule(restaurantsPattern, "Expenses:Food:Restaurants"),
		patternRule(subscriptionsPattern, "Expenses:Subscriptions"),
		patternRule(gasPattern, "Expenses:Car:Gas"),
	},
	DefaultUncategorized,
)

func patternRule(pattern *regexp.Regexp, account2 string) Rule {
	return Rule{pattern: pattern, Account2: account2}
}

func mustRules(rules []Rule, uncategorized string) *Rules {
	compiled, err := New(rules, uncategorized)
	if err != nil {
		panic(err)
	}
	return compiled
}
