package domain

import "time"

// APIResponse is the error envelope written by every endpoint
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SubmitResponse is the wire form of a SubmissionResult
type SubmitResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	Accepted       bool   `json:"accepted"`
	IsNewRecord    bool   `json:"isNewRecord"`
	Score          *int64 `json:"score,omitempty"`
	PreviousScore  *int64 `json:"previousScore,omitempty"`
	Improvement    *int64 `json:"improvement,omitempty"`
	CurrentScore   *int64 `json:"currentScore,omitempty"`
	SubmittedScore *int64 `json:"submittedScore,omitempty"`
	Timestamp      *int64 `json:"timestamp,omitempty"`
}

// NewSubmitResponse shapes an accepted or rejected result for the caller
func NewSubmitResponse(r *SubmissionResult) SubmitResponse {
	resp := SubmitResponse{
		Success:     true,
		Message:     r.Message,
		Accepted:    r.Accepted,
		IsNewRecord: r.IsNewRecord,
	}
	if !r.Accepted {
		current, submitted := r.CurrentScore, r.Score
		resp.CurrentScore = &current
		resp.SubmittedScore = &submitted
		return resp
	}
	score, previous, improvement, ts := r.Score, r.PreviousScore, r.Improvement(), r.Timestamp
	resp.Score = &score
	resp.PreviousScore = &previous
	resp.Improvement = &improvement
	resp.Timestamp = &ts
	return resp
}

// RankingsResponse is returned by the ranking query
type RankingsResponse struct {
	Success      bool           `json:"success"`
	GameID       string         `json:"gameId"`
	TotalPlayers int            `json:"totalPlayers"`
	Rankings     []RankingEntry `json:"rankings"`
	GeneratedAt  time.Time      `json:"generatedAt"`
}

// PlayerProfile groups a player's stats and history
type PlayerProfile struct {
	PlayerID    string             `json:"playerId"`
	PlayerName  string             `json:"playerName"`
	Stats       PlayerStats        `json:"stats"`
	GameHistory []GameHistoryEntry `json:"gameHistory"`
}

// PlayerStatsResponse is returned by the player stats query
type PlayerStatsResponse struct {
	Success     bool          `json:"success"`
	Player      PlayerProfile `json:"player"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// BatchStatsResponse is returned by an on-demand stats run
type BatchStatsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	BatchStatsResult
}

// Batch outcome messages
const (
	MsgNoScores          = "No scores to process"
	MsgRankingsCompleted = "Rankings calculated successfully"
)

// NewBatchStatsResponse wraps a batch result with its outcome message
func NewBatchStatsResponse(r *BatchStatsResult) BatchStatsResponse {
	msg := MsgRankingsCompleted
	if r.TotalScores == 0 {
		msg = MsgNoScores
	}
	return BatchStatsResponse{
		Success:          true,
		Message:          msg,
		BatchStatsResult: *r,
	}
}
