package keywords

const defaultTargetCount = 3

var targetCounts = map[int]int{
	1:  2,
	5:  3,
	10: 5,
	15: 7,
	30: 10,
	60: 15,
}

// TargetCount returns how many keywords a pitch of the given length should cover.
func TargetCount(minutes int) int {
	if n, ok := targetCounts[minutes]; ok {
		return n
	}
	return defaultTargetCount
}

// Prioritize selects the keywords to rehearse for a target duration.
// Every flagged keyword is kept; the remaining slots go to the earliest
// non-flagged keywords. The result keeps the original keyword order.
func Prioritize(words, flagged []string, minutes int) []string {
	if len(words) == 0 {
		return []string{}
	}
	flagSet := make(map[string]struct{}, len(flagged))
	for _, f := range flagged {
		flagSet[Key(f)] = struct{}{}
	}

	flaggedCount := 0
	for _, w := range words {
		if _, ok := flagSet[Key(w)]; ok {
			flaggedCount++
		}
	}
	needed := TargetCount(minutes) - flaggedCount
	if needed < 0 {
		needed = 0
	}

	out := make([]string, 0, flaggedCount+needed)
	for _, w := range words {
		if _, ok := flagSet[Key(w)]; ok {
			out = append(out, w)
			continue
		}
		if needed > 0 {
			out = append(out, w)
			needed--
		}
	}
	return out
}
