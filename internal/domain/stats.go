package domain

import (
	"cmp"
	"slices"
	"time"
)

// RankingEntry is one row of a game ranking page
type RankingEntry struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	Score       int64  `json:"score"`
	Timestamp   int64  `json:"timestamp"`
	SubmittedAt string `json:"submittedAt"`
}

// RankPage assigns 1-based ranks to records already ordered by score descending.
// Ranks restart at 1 for every page.
func RankPage(records []ScoreRecord) []RankingEntry {
	entries := make([]RankingEntry, len(records))
	for i, r := range records {
		entries[i] = RankingEntry{
			Rank:        i + 1,
			PlayerID:    r.PlayerID,
			PlayerName:  r.DisplayName(),
			Score:       r.Score,
			Timestamp:   r.Timestamp,
			SubmittedAt: r.SubmittedAt,
		}
	}
	return entries
}

// PlayerStats aggregates every record of one player
type PlayerStats struct {
	TotalGames   int   `json:"totalGames"`
	AverageScore int64 `json:"averageScore"`
	BestScore    int64 `json:"bestScore"`
	WorstScore   int64 `json:"worstScore"`
	TotalScore   int64 `json:"totalScore"`
}

// GameHistoryEntry is a record reduced for the player history view
type GameHistoryEntry struct {
	GameID      string `json:"gameId"`
	Score       int64  `json:"score"`
	Timestamp   int64  `json:"timestamp"`
	SubmittedAt string `json:"submittedAt"`
}

// ComputePlayerStats aggregates records, which must be non-empty
func ComputePlayerStats(records []ScoreRecord) PlayerStats {
	stats := PlayerStats{
		TotalGames: len(records),
		BestScore:  records[0].Score,
		WorstScore: records[0].Score,
	}
	for _, r := range records {
		stats.TotalScore += r.Score
		stats.BestScore = max(stats.BestScore, r.Score)
		stats.WorstScore = min(stats.WorstScore, r.Score)
	}
	stats.AverageScore = RoundedAverage(stats.TotalScore, int64(stats.TotalGames))
	return stats
}

// BuildHistory orders records by timestamp descending, ties by game ID ascending
func BuildHistory(records []ScoreRecord) []GameHistoryEntry {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b ScoreRecord) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.GameID, b.GameID)
	})

	history := make([]GameHistoryEntry, len(sorted))
	for i, r := range sorted {
		history[i] = GameHistoryEntry{
			GameID:      r.GameID,
			Score:       r.Score,
			Timestamp:   r.Timestamp,
			SubmittedAt: r.SubmittedAt,
		}
	}
	return history
}

// MostRecent returns the record with the latest timestamp, ties by game ID ascending
func MostRecent(records []ScoreRecord) ScoreRecord {
	latest := records[0]
	for _, r := range records[1:] {
		if r.Timestamp > latest.Timestamp ||
			(r.Timestamp == latest.Timestamp && r.GameID < latest.GameID) {
			latest = r
		}
	}
	return latest
}

// RoundedAverage returns sum/count rounded half up. Inputs are non-negative.
func RoundedAverage(sum, count int64) int64 {
	if count == 0 {
		return 0
	}
	return (2*sum + count) / (2 * count)
}

// GameStats aggregates every record of one game
type GameStats struct {
	TotalPlayers int    `json:"totalPlayers"`
	TopScore     int64  `json:"topScore"`
	TopPlayer    string `json:"topPlayer"`
	TopPlayerID  string `json:"topPlayerId"`
	AverageScore int64  `json:"averageScore"`
}

// GameAccumulator folds records of one game into GameStats incrementally
type GameAccumulator struct {
	count int
	sum   int64
	top   ScoreRecord
}

// Add folds a record in. Equal top scores keep the smallest player ID.
func (a *GameAccumulator) Add(r ScoreRecord) {
	if a.count == 0 ||
		r.Score > a.top.Score ||
		(r.Score == a.top.Score && r.PlayerID < a.top.PlayerID) {
		a.top = r
	}
	a.count++
	a.sum += r.Score
}

// Stats returns the aggregate of everything added so far
func (a *GameAccumulator) Stats() GameStats {
	topPlayer := a.top.PlayerName
	if topPlayer == "" {
		topPlayer = a.top.PlayerID
	}
	return GameStats{
		TotalPlayers: a.count,
		TopScore:     a.top.Score,
		TopPlayer:    topPlayer,
		TopPlayerID:  a.top.PlayerID,
		AverageScore: RoundedAverage(a.sum, int64(a.count)),
	}
}

// BatchStatsResult is the output of one global stats run
type BatchStatsResult struct {
	GamesProcessed int                  `json:"gamesProcessed"`
	TotalScores    int                  `json:"totalScores"`
	GameStats      map[string]GameStats `json:"gameStats"`
	Timestamp      time.Time            `json:"timestamp"`
}

// StatsSummary is what the batch job hands to notifiers
type StatsSummary struct {
	Subject string           `json:"subject"`
	Body    string           `json:"body"`
	Result  BatchStatsResult `json:"result"`
}
