package browser

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConditionKind is the predicate a Condition evaluates.
type ConditionKind int

const (
	KindURLContains ConditionKind = iota
	KindTextContains
	KindTextMatches
	KindElementExists
)

func (k ConditionKind) String() string {
	switch k {
	case KindURLContains:
		return "url-contains"
	case KindTextContains:
		return "text-contains"
	case KindTextMatches:
		return "text-matches"
	case KindElementExists:
		return "element-exists"
	default:
		return fmt.Sprintf("condition(%d)", int(k))
	}
}

// Condition is a page predicate that is polled until it holds. TextMatches
// patterns must be valid in both RE2 and JavaScript and are case-insensitive.
type Condition struct {
	Kind  ConditionKind
	Value string
}

func URLContains(s string) Condition       { return Condition{Kind: KindURLContains, Value: s} }
func TextContains(s string) Condition      { return Condition{Kind: KindTextContains, Value: s} }
func TextMatches(pattern string) Condition { return Condition{Kind: KindTextMatches, Value: pattern} }
func ElementExists(sel string) Condition   { return Condition{Kind: KindElementExists, Value: sel} }

func (c Condition) String() string {
	return fmt.Sprintf("%s(%q)", c.Kind, c.Value)
}

// Expression returns the JavaScript boolean expression evaluated in the page.
func (c Condition) Expression() string {
	lit, _ := json.MarshalToString(c.Value)
	switch c.Kind {
	case KindURLContains:
		return fmt.Sprintf(`window.location.href.includes(%s)`, lit)
	case KindTextContains:
		return fmt.Sprintf(`!!document.body && document.body.innerText.includes(%s)`, lit)
	case KindTextMatches:
		return fmt.Sprintf(`!!document.body && new RegExp(%s, "i").test(document.body.innerText)`, lit)
	case KindElementExists:
		return fmt.Sprintf(`document.querySelector(%s) !== null`, lit)
	default:
		return "false"
	}
}

// Matches evaluates the condition against an already captured URL and body
// text. Element conditions cannot be decided from text and report false.
func (c Condition) Matches(url, text string) bool {
	switch c.Kind {
	case KindURLContains:
		return strings.Contains(url, c.Value)
	case KindTextContains:
		return strings.Contains(text, c.Value)
	case KindTextMatches:
		re, err := regexp.Compile("(?i)" + c.Value)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	default:
		return false
	}
}
