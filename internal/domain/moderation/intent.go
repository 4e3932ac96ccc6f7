package moderation

import (
	"regexp"
	"strings"
)

// IntentCategory is the qualitative bucket Layer 4 branches on
type IntentCategory string

const (
	IntentNeutral    IntentCategory = "neutral"
	IntentExpressive IntentCategory = "expressive"
	IntentDisruptive IntentCategory = "disruptive"
	IntentHostile    IntentCategory = "hostile"
	IntentDangerous  IntentCategory = "dangerous"
)

// UserContext carries caller-supplied hints about the author
type UserContext struct {
	RecentHostileContentFlag bool `json:"recent_hostile_content_flag"`
}

// IntentOutput is the Layer 2 result
type IntentOutput struct {
	Category   IntentCategory `json:"intent_category"`
	Score      int            `json:"intent_score"`
	Confidence int            `json:"confidence"`
	Targets    []string       `json:"targets"`
	Hostility  []string       `json:"hostility_markers"`
	Threats    []string       `json:"threat_patterns"`
	Expressive []string       `json:"expressive_patterns"`
}

type namedPattern struct {
	name string
	re   *regexp.Regexp
}

func patterns(pairs ...string) []namedPattern {
	out := make([]namedPattern, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, namedPattern{name: pairs[i], re: regexp.MustCompile(pairs[i+1])})
	}
	return out
}

var targetPatterns = patterns(
	"second_person", `\b(you|your|you're|youre|u|ur|yourself)\b`,
	"third_person", `\b(he|she|they|him|her|them)\s+(is|are|should|deserves?|needs?\s+to|must)\b`,
	"group", `\b(all|those|these)\s+(people|idiots|morons|losers|freaks|animals|scum)\b`,
	"self_harm", `\b(kill|hurt|harm|cut)\s+(yourself|myself|themselves|himself|herself)\b|\bsuicide\b`,
	"directed_insult", `\b(fuck|screw)\s+(you|u|off|them|him|her)\b|\b(you|u)\s+(are\s+)?(an?\s+)?(idiot|moron|loser|clown|stupid|pathetic)\b`,
)

var hostilityPatterns = patterns(
	"hate", `\bhate\s+(you|u|them|him|her|all\s+of\s+you)\b`,
	"death_wish", `\b(hope|wish)\s+(you|u|they|he|she)\s+(die|dies|suffer|suffers|burn|burns|rot|rots)\b|\bdrop\s+dead\b`,
	"go_die", `\bgo\s+(die|to\s+hell|kill\s+yourself)\b|\bkys\b`,
	"shut_up", `\bshut\s+(up|the\s+fuck\s+up)\b`,
	"worthless", `\b(you're|youre|you\s+are|ur)\s+(worthless|pathetic|disgusting|garbage|trash|nothing|a\s+waste)\b`,
	"rejection", `\bnobody\s+(likes|wants|cares\s+about)\s+you\b`,
)

var threatPatterns = patterns(
	"first_person_harm", `\bi(\s+will|'ll|ll|\s+am\s+going\s+to|'m\s+going\s+to|m\s+going\s+to|'m\s+gonna|\s+am\s+gonna|\s+gonna)\s+(find|hurt|kill|beat|stab|shoot|murder|destroy|end)\b`,
	"future_consequence", `\byou('ll|ll|\s+will)\s+(regret|pay|die|be\s+sorry)\b`,
	"watch_your_back", `\bwatch\s+your\s+back\b`,
	"coming_for_you", `\bcoming\s+for\s+(you|u)\b`,
	"know_where_you_live", `\bi\s+know\s+where\s+(you|u)\s+live\b`,
)

var expressivePatterns = patterns(
	"profanity", `\b(fuck|fucking|fucked|shit|damn|hell|omg|wtf|holy)\b`,
	"emphasis", `!{2,}`,
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

// ClassifyIntent buckets text into an intent category
func ClassifyIntent(text string, uc UserContext) IntentOutput {
	lower := apostrophes.Replace(strings.ToLower(text))

	out := IntentOutput{
		Targets:    matchNames(targetPatterns, lower),
		Hostility:  matchNames(hostilityPatterns, lower),
		Threats:    matchNames(threatPatterns, lower),
		Expressive: matchNames(expressivePatterns, lower),
	}

	hasTargets := len(out.Targets) > 0
	hasHostility := len(out.Hostility) > 0
	hasThreats := len(out.Threats) > 0

	switch {
	case hasThreats && hasTargets:
		out.Category, out.Score, out.Confidence = IntentDangerous, 90, 85
	case hasHostility && hasTargets:
		out.Category, out.Score, out.Confidence = IntentHostile, 75, 80
	case hasHostility || hasThreats:
		out.Category, out.Score, out.Confidence = IntentDisruptive, 60, 70
	case hasTargets:
		out.Category, out.Score, out.Confidence = IntentDisruptive, 45, 65
	case len(out.Expressive) > 0:
		out.Category, out.Score, out.Confidence = IntentExpressive, 20, 60
	default:
		out.Category, out.Score, out.Confidence = IntentNeutral, 0, 90
	}

	if uc.RecentHostileContentFlag {
		out.Score = clamp(out.Score+10, 0, 100)
		out.Confidence = clamp(out.Confidence+5, 0, 100)
	}
	return out
}

// Labels returns the human-readable signal labels stored on events
func (o IntentOutput) Labels() []string {
	labels := []string{"Intent: " + string(o.Category)}
	for _, t := range o.Threats {
		labels = append(labels, "Threat: "+t)
	}
	for _, h := range o.Hostility {
		labels = append(labels, "Hostility: "+h)
	}
	for _, t := range o.Targets {
		labels = append(labels, "Target: "+t)
	}
	return labels
}

func matchNames(set []namedPattern, text string) []string {
	out := []string{}
	for _, p := range set {
		if p.re.MatchString(text) {
			out = append(out, p.name)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
