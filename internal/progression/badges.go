package progression

// Metric names the counter a badge threshold is compared against.
type Metric string

const (
	MetricQuestions Metric = "questions_asked"
	MetricLeaders   Metric = "leaders_chatted"
)

// Badge is a one-way achievement.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	Metric      Metric `json:"metric"`
	// Threshold is the counter value that earns the badge. Zero on the
	// champion badge means "every available leader" and is resolved per call.
	Threshold int `json:"threshold"`
}

// ChampionID is the badge that requires chatting with every loaded persona.
const ChampionID = "summit_champion"

var catalog = []Badge{
	{ID: "first_question", Name: "Ice Breaker", Icon: "🧊", Description: "Asked your first question", Metric: MetricQuestions, Threshold: 1},
	{ID: "curious_mind", Name: "Curious Mind", Icon: "🔍", Description: "Asked 5 questions", Metric: MetricQuestions, Threshold: 5},
	{ID: "deep_thinker", Name: "Deep Thinker", Icon: "🧠", Description: "Asked 10 questions", Metric: MetricQuestions, Threshold: 10},
	{ID: "leadership_explorer", Name: "Leadership Explorer", Icon: "🧭", Description: "Chatted with 2 different leaders", Metric: MetricLeaders, Threshold: 2},
	{ID: ChampionID, Name: "Summit Champion", Icon: "🏆", Description: "Chatted with every leader", Metric: MetricLeaders},
}

// Catalog returns every badge in declaration order with the champion
// threshold resolved against totalLeaders.
func Catalog(totalLeaders int) []Badge {
	out := make([]Badge, len(catalog))
	copy(out, catalog)
	for i := range out {
		if out[i].ID == ChampionID {
			out[i].Threshold = totalLeaders
		}
	}
	return out
}

// EarnedBadges returns the badges met by the counters, in catalog order.
// The champion badge is never earned when totalLeaders is zero.
func EarnedBadges(questions, leadersChatted, totalLeaders int) []Badge {
	var earned []Badge
	for _, b := range Catalog(totalLeaders) {
		if b.ID == ChampionID && totalLeaders <= 0 {
			continue
		}
		value := questions
		if b.Metric == MetricLeaders {
			value = leadersChatted
		}
		if value >= b.Threshold {
			earned = append(earned, b)
		}
	}
	return earned
}

// BadgeIDs extracts the ids of badges, preserving order.
func BadgeIDs(badges []Badge) []string {
	ids := make([]string, len(badges))
	for i, b := range badges {
		ids[i] = b.ID
	}
	return ids
}
