package preference

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"glowgo/internal/timeparse"
)

// servicePatterns maps phrases seen in user messages onto canonical service
// types. Ordered by specificity so "hair color" wins over "hair".
var servicePatterns = []struct {
	pattern string
	name    string
}{
	{"balayage", "hair color"},
	{"highlights", "hair color"},
	{"hair color", "hair color"},
	{"coloring", "hair color"},
	{"color my hair", "hair color"},
	{"beard trim", "beard trim"},
	{"haircut", "haircut"},
	{"hair cut", "haircut"},
	{"trim", "haircut"},
	{"blowout", "blowout"},
	{"blow dry", "blowout"},
	{"manicure", "manicure"},
	{"pedicure", "pedicure"},
	{"nails", "manicure"},
	{"gel polish", "manicure"},
	{"facial", "facial"},
	{"massage", "massage"},
	{"waxing", "waxing"},
	{"wax", "waxing"},
	{"eyebrow", "eyebrow shaping"},
	{"brows", "eyebrow shaping"},
	{"lashes", "lash extensions"},
	{"lash extensions", "lash extensions"},
	{"styling", "hair styling"},
	{"updo", "hair styling"},
}

// amountWords covers the spoken budget amounts users actually say. Values are
// dollars.
var amountWords = map[string]float64{
	"ten": 10, "fifteen": 15, "twenty": 20, "twenty-five": 25,
	"thirty": 30, "thirty-five": 35, "forty": 40, "forty-five": 45,
	"fifty": 50, "fifty-five": 55, "sixty": 60, "seventy": 70,
	"seventy-five": 75, "eighty": 80, "ninety": 90,
	"hundred": 100, "one-hundred": 100,
	"one-fifty": 150, "two-hundred": 200,
}

var (
	budgetRangeRE = regexp.MustCompile(`between\s+\$?(\d+)\s+and\s+\$?(\d+)`)
	budgetMaxRE   = regexp.MustCompile(`(?:under|below|less than|at most|up to|max(?:imum)?(?: of)?|no more than)\s+\$?(\d+)`)
	budgetMinRE   = regexp.MustCompile(`(?:over|above|at least|more than|minimum(?: of)?)\s+\$?(\d+)`)
	budgetNearRE  = regexp.MustCompile(`(?:around|about|roughly|approximately)\s+\$?(\d+)`)
	dollarRE      = regexp.MustCompile(`\$(\d+(?:\.\d{1,2})?)`)
	wordBudgetRE  = regexp.MustCompile(`([a-z]+(?:[- ][a-z]+)?)\s+(?:dollars|bucks)`)
)

var urgencyPhrases = []struct {
	phrase  string
	urgency Urgency
}{
	{"as soon as possible", UrgencyASAP},
	{"asap", UrgencyASAP},
	{"right away", UrgencyASAP},
	{"urgently", UrgencyASAP},
	{"urgent", UrgencyASAP},
	{"this week", UrgencyWeek},
	{"within the week", UrgencyWeek},
	{"sometime this week", UrgencyWeek},
	{"whenever", UrgencyFlexible},
	{"anytime", UrgencyFlexible},
	{"no rush", UrgencyFlexible},
	{"flexible", UrgencyFlexible},
}

// ExtractTurn parses one user message into a partial Preference. It is the
// per-turn counterpart of Merge: callers fold the result into the session's
// accumulated preference. Parsing never fails; anything unrecognized is
// simply absent from the result.
func ExtractTurn(message string, now time.Time) Preference {
	text := strings.ToLower(message)
	var out Preference

	if svc := extractService(text); svc != "" {
		out.ServiceType = &svc
	}

	min, max := extractBudget(text)
	out.BudgetMin = min
	out.BudgetMax = max

	// Spoken-number time handling lives in timeparse; its disambiguation
	// keeps "ten dollars" from ever reading as a clock time.
	tr := timeparse.Extract(message, now)
	out.PreferredDate = tr.Date
	if tr.TimeOfDay != "" {
		tod := tr.TimeOfDay
		out.PreferredTime = &tod
	}
	out.TimeConstraint = tr.Constraint

	if u, ok := extractUrgency(text); ok {
		out.TimeUrgency = &u
	}

	return out
}

func extractService(text string) string {
	for _, sp := range servicePatterns {
		if strings.Contains(text, sp.pattern) {
			return sp.name
		}
	}
	return ""
}

func extractBudget(text string) (min, max *float64) {
	if m := budgetRangeRE.FindStringSubmatch(text); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		if lo > hi {
			lo, hi = hi, lo
		}
		return &lo, &hi
	}
	if m := budgetMaxRE.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return nil, &v
	}
	if m := budgetMinRE.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return &v, nil
	}
	if m := budgetNearRE.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return nil, &v
	}
	if m := wordBudgetRE.FindStringSubmatch(text); m != nil {
		key := strings.ReplaceAll(m[1], " ", "-")
		if v, ok := amountWords[key]; ok {
			return nil, &v
		}
		// The capture may have swallowed a leading filler word
		// ("around fifty"); retry with the last word alone.
		if i := strings.LastIndex(key, "-"); i >= 0 {
			if v, ok := amountWords[key[i+1:]]; ok {
				return nil, &v
			}
		}
	}
	if m := dollarRE.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return nil, &v
	}
	return nil, nil
}

func extractUrgency(text string) (Urgency, bool) {
	for _, up := range urgencyPhrases {
		if strings.Contains(text, up.phrase) {
			return up.urgency, true
		}
	}
	return "", false
}
