package model

// Stat categories as they appear in the feed and on chain.
const (
	CategoryMostRuns       = "Most Runs"
	CategoryMostWickets    = "Most Wickets"
	CategoryMostFifties    = "Most Fifties"
	CategoryHighestInnings = "Highest Innings"
	CategoryBestStrikeRate = "Best Strike Rate"
	CategoryBestEconomy    = "Best Economy"
)

// Player roles carried by the feed.
const (
	RoleBatsman = "Batsman"
	RoleBowler  = "Bowler"
)

// StatRow is one external-feed record. Rows are immutable once read and are
// the source of truth for their date.
type StatRow struct {
	Player     string  `json:"player"`
	Matches    uint64  `json:"matches"`
	Runs       uint64  `json:"runs"`
	Wickets    uint64  `json:"wickets"`
	Fifties    uint64  `json:"fifties"`
	Centuries  uint64  `json:"centuries"`
	StrikeRate float64 `json:"strike_rate"`
	Economy    float64 `json:"economy"`
	Category   string  `json:"category"`
	Role       string  `json:"role"`
	Image      string  `json:"image"`
	Date       string  `json:"date"`
}
