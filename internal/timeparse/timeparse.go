// Package timeparse converts free-text scheduling phrases into structured
// date, time and constraint fields. It handles relative dates ("next
// thursday", "this weekend"), numeric clock times ("5:30pm") and spoken
// number forms ("three pm", "five thirty pm").
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Constraint qualifies how a date/time bounds acceptable scheduling.
type Constraint string

const (
	ConstraintNone   Constraint = ""
	ConstraintBefore Constraint = "before"
	ConstraintBy     Constraint = "by"
	ConstraintAfter  Constraint = "after"
)

// Result holds whatever scheduling fields were recovered from one utterance.
// Any subset of fields may be set; an all-zero Result means nothing parsed.
type Result struct {
	Date       *time.Time
	TimeOfDay  string // "HH:MM", 24-hour
	Constraint Constraint
}

// Empty reports whether no scheduling information was found.
func (r Result) Empty() bool {
	return r.Date == nil && r.TimeOfDay == "" && r.Constraint == ConstraintNone
}

// ---------- spoken number lexicon ----------

// hourWords maps spoken hour words to their numeric value. Kept as a plain
// table so new forms can be added without touching the matching logic.
var hourWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "twenty-one": 21, "twenty-two": 22,
	"twenty-three": 23,
}

// minuteWords maps spoken minute words to a two-digit minute string.
var minuteWords = map[string]string{
	"oh-five":    "05",
	"ten":        "10",
	"fifteen":    "15",
	"thirty":     "30",
	"forty-five": "45",
}

var constraintWords = map[string]Constraint{
	"before": ConstraintBefore,
	"by":     ConstraintBy,
	"after":  ConstraintAfter,
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// dateKeywords are words after which a bare spoken number may safely be read
// as an hour ("next thursday three").
var dateKeywords = map[string]bool{
	"today": true, "tomorrow": true, "week": true, "weekend": true, "at": true,
	"sunday": true, "monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true,
}

// ---------- package-level compiled regexes ----------

var (
	clockRE      = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	oclockRE     = regexp.MustCompile(`\b(\d{1,2})\s*o'?clock\b`)
	nextDayRE    = regexp.MustCompile(`\bnext\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	bareDayRE    = regexp.MustCompile(`\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	weekendRE    = regexp.MustCompile(`\b(this|next)\s+weekend\b`)
	nextWeekRE   = regexp.MustCompile(`\bnext\s+week\b`)
	endOfWeekRE  = regexp.MustCompile(`\bend\s+of\s+(?:the\s+)?week\b`)
	todayRE      = regexp.MustCompile(`\btoday\b`)
	tomorrowRE   = regexp.MustCompile(`\btomorrow\b`)
	constraintRE = regexp.MustCompile(`\b(before|by|after)\b`)
)

var apostropheNormalizer = strings.NewReplacer(
	"’", "'",
	"‘", "'",
)

// Extract parses text against the reference instant now. It never fails;
// unparseable input yields an empty Result.
func Extract(text string, now time.Time) Result {
	normalized := normalize(text)
	normalized = substituteSpokenNumbers(normalized)

	var res Result

	datePos := -1
	if d, pos, ok := resolveDate(normalized, now); ok {
		res.Date = &d
		datePos = pos
	}

	timePos := -1
	if t, pos, ok := extractClock(normalized); ok {
		res.TimeOfDay = t
		timePos = pos
	}

	// A constraint only counts when it introduces the date/time phrase.
	if loc := constraintRE.FindStringSubmatchIndex(normalized); loc != nil {
		precedesDate := datePos >= 0 && loc[0] < datePos
		precedesTime := timePos >= 0 && loc[0] < timePos
		if precedesDate || precedesTime {
			res.Constraint = constraintWords[normalized[loc[2]:loc[3]]]
		}
	}

	return res
}

func normalize(text string) string {
	s := strings.ToLower(text)
	s = apostropheNormalizer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// substituteSpokenNumbers rewrites spoken hour/minute words into digits, but
// only inside a window anchored by an am/pm or o'clock marker, or directly
// after a constraint or date keyword. A bare "ten" ("ten dollars") is left
// untouched so budget parsing elsewhere is unaffected.
func substituteSpokenNumbers(s string) string {
	tokens := strings.Fields(s)
	out := make([]string, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		word := strings.Trim(tokens[i], ".,!?")
		hour, isHour := hourWords[normalizeCompound(word)]
		if !isHour {
			out = append(out, tokens[i])
			continue
		}

		// Optional trailing minute word, possibly two tokens ("forty five").
		minute := ""
		consumed := 0
		if i+1 < len(tokens) {
			one := strings.Trim(tokens[i+1], ".,!?")
			if m, ok := minuteWords[normalizeCompound(one)]; ok {
				minute, consumed = m, 1
			} else if i+2 < len(tokens) {
				two := normalizeCompound(one + " " + strings.Trim(tokens[i+2], ".,!?"))
				if m, ok := minuteWords[two]; ok {
					minute, consumed = m, 2
				}
			}
		}

		next := ""
		if i+consumed+1 < len(tokens) {
			next = strings.Trim(tokens[i+consumed+1], ".,!?")
		}
		prev := ""
		if i > 0 {
			prev = strings.Trim(tokens[i-1], ".,!?")
		}

		_, prevIsConstraint := constraintWords[prev]
		anchored := isMeridiemMarker(next) || prevIsConstraint || dateKeywords[prev]
		if !anchored {
			out = append(out, tokens[i])
			continue
		}

		if minute != "" {
			out = append(out, fmt.Sprintf("%d:%s", hour, minute))
			i += consumed
		} else {
			out = append(out, strconv.Itoa(hour))
		}
	}

	return strings.Join(out, " ")
}

// normalizeCompound folds "twenty three" and "twenty three"-style spellings
// onto the hyphenated lexicon keys.
func normalizeCompound(word string) string {
	return strings.ReplaceAll(word, " ", "-")
}

func isMeridiemMarker(tok string) bool {
	switch tok {
	case "am", "pm", "o'clock", "oclock":
		return true
	}
	return false
}

// resolveDate finds the first relative-date phrase and resolves it against
// now. Patterns are tried most specific first so "next thursday" is not
// swallowed by the bare weekday rule.
func resolveDate(s string, now time.Time) (time.Time, int, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if loc := nextDayRE.FindStringSubmatchIndex(s); loc != nil {
		wd := weekdays[s[loc[2]:loc[3]]]
		return today.AddDate(0, 0, daysUntil(today, wd)+7), loc[0], true
	}
	if loc := weekendRE.FindStringSubmatchIndex(s); loc != nil {
		days := daysUntilOrToday(today, time.Saturday)
		if s[loc[2]:loc[3]] == "next" {
			days += 7
		}
		return today.AddDate(0, 0, days), loc[0], true
	}
	if loc := nextWeekRE.FindStringIndex(s); loc != nil {
		return today.AddDate(0, 0, daysUntil(today, time.Monday)), loc[0], true
	}
	if loc := endOfWeekRE.FindStringIndex(s); loc != nil {
		return today.AddDate(0, 0, daysUntilOrToday(today, time.Friday)), loc[0], true
	}
	if loc := todayRE.FindStringIndex(s); loc != nil {
		return today, loc[0], true
	}
	if loc := tomorrowRE.FindStringIndex(s); loc != nil {
		return today.AddDate(0, 0, 1), loc[0], true
	}
	if loc := bareDayRE.FindStringSubmatchIndex(s); loc != nil {
		wd := weekdays[s[loc[2]:loc[3]]]
		return today.AddDate(0, 0, daysUntil(today, wd)), loc[0], true
	}
	return time.Time{}, -1, false
}

// daysUntil returns days to the next occurrence of wd strictly after today.
func daysUntil(today time.Time, wd time.Weekday) int {
	d := (int(wd) - int(today.Weekday()) + 7) % 7
	if d == 0 {
		d = 7
	}
	return d
}

// daysUntilOrToday is like daysUntil but allows today itself to match.
func daysUntilOrToday(today time.Time, wd time.Weekday) int {
	return (int(wd) - int(today.Weekday()) + 7) % 7
}

// extractClock finds the first clock time and renders it as "HH:MM".
func extractClock(s string) (string, int, bool) {
	if loc := clockRE.FindStringSubmatchIndex(s); loc != nil {
		hour, _ := strconv.Atoi(s[loc[2]:loc[3]])
		minute := 0
		if loc[4] >= 0 {
			minute, _ = strconv.Atoi(s[loc[4]:loc[5]])
		}
		meridiem := s[loc[6]:loc[7]]
		if hour >= 1 && hour <= 12 && minute <= 59 {
			return fmt.Sprintf("%02d:%02d", to24Hour(hour, meridiem), minute), loc[0], true
		}
	}
	if loc := oclockRE.FindStringSubmatchIndex(s); loc != nil {
		hour, _ := strconv.Atoi(s[loc[2]:loc[3]])
		if hour >= 1 && hour <= 23 {
			return fmt.Sprintf("%02d:00", oclockHour(hour)), loc[0], true
		}
	}
	return "", -1, false
}

func to24Hour(hour int, meridiem string) int {
	switch meridiem {
	case "am":
		if hour == 12 {
			return 0
		}
		return hour
	default: // pm
		if hour == 12 {
			return 12
		}
		return hour + 12
	}
}

// oclockHour resolves a bare "H o'clock" without a meridiem. Hours past 12
// are taken as 24-hour values; 8 through 11 read as morning and 1 through 7
// as afternoon or evening, matching typical salon booking hours.
func oclockHour(hour int) int {
	switch {
	case hour > 12:
		return hour
	case hour >= 8:
		return hour
	case hour == 12:
		return 12
	default:
		return hour + 12
	}
}
