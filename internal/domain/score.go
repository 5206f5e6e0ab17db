package domain

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Score bounds enforced on every submission
const (
	MinScore int64 = 0
	MaxScore int64 = 999999
)

// AnonymousName is shown for records stored without a player name
const AnonymousName = "Anonymous"

// ScoreRecord is the single stored row for a (player, game) pair
type ScoreRecord struct {
	PlayerID    string `json:"playerId"`
	GameID      string `json:"gameId"`
	Score       int64  `json:"score"`
	PlayerName  string `json:"playerName"`
	Timestamp   int64  `json:"timestamp"`
	SubmittedAt string `json:"submittedAt"`
}

// NewScoreRecord builds a record stamped with the given write time
func NewScoreRecord(playerID, gameID string, score int64, playerName string, now time.Time) ScoreRecord {
	return ScoreRecord{
		PlayerID:    playerID,
		GameID:      gameID,
		Score:       score,
		PlayerName:  playerName,
		Timestamp:   now.UnixMilli(),
		SubmittedAt: FormatSubmittedAt(now),
	}
}

// FormatSubmittedAt renders t as an ISO-8601 UTC string with millisecond precision
func FormatSubmittedAt(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// DisplayName returns the player name, or AnonymousName when none is stored
func (r ScoreRecord) DisplayName() string {
	if r.PlayerName == "" {
		return AnonymousName
	}
	return r.PlayerName
}

// WriteResult reports the outcome of a conditional write
type WriteResult struct {
	// Written is true when the candidate record replaced (or created) the stored one
	Written bool
	// Existed is true when a record for the pair was present before the write
	Existed bool
	// Previous is the stored score before the write, 0 when none existed
	Previous int64
}

// SubmitRequest is a candidate score submission
type SubmitRequest struct {
	PlayerID   string
	GameID     string
	PlayerName string
	// Score is nil when the caller omitted it
	Score *int64
}

// Validate checks required fields and the score range without touching the store
func (r SubmitRequest) Validate() error {
	if strings.TrimSpace(r.PlayerID) == "" ||
		strings.TrimSpace(r.GameID) == "" ||
		strings.TrimSpace(r.PlayerName) == "" ||
		r.Score == nil {
		return NewValidationError(MsgMissingFields)
	}
	if *r.Score < MinScore || *r.Score > MaxScore {
		return NewValidationError(MsgScoreOutOfRange)
	}
	return nil
}

// ScoreSubmission is the wire form of a submission, shared by HTTP and Kafka ingest
type ScoreSubmission struct {
	PlayerID   string       `json:"playerId"`
	GameID     string       `json:"gameId"`
	Score      *json.Number `json:"score"`
	PlayerName string       `json:"playerName"`
}

// ToRequest converts the wire form, rejecting scores that are not integers
func (s ScoreSubmission) ToRequest() (SubmitRequest, error) {
	req := SubmitRequest{
		PlayerID:   s.PlayerID,
		GameID:     s.GameID,
		PlayerName: s.PlayerName,
	}
	if s.Score == nil || *s.Score == "" {
		return req, nil
	}
	score, err := s.Score.Int64()
	if err != nil {
		if score, err = parseIntegral(*s.Score); err != nil {
			return req, err
		}
	}
	req.Score = &score
	return req, nil
}

// parseIntegral accepts numbers written in float form, such as 500.0 or 1e3,
// when they hold a whole value. Values outside the score bounds report the range.
func parseIntegral(n json.Number) (int64, error) {
	f, err := n.Float64()
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, NewValidationError(MsgScoreNotInteger)
	}
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) ||
		f < float64(MinScore) || f > float64(MaxScore) {
		return 0, NewValidationError(MsgScoreOutOfRange)
	}
	if f != math.Trunc(f) {
		return 0, NewValidationError(MsgScoreNotInteger)
	}
	return int64(f), nil
}

// SubmissionResult is the outcome of a submission that passed validation
type SubmissionResult struct {
	Accepted    bool
	IsNewRecord bool
	Message     string
	// Score is the submitted score
	Score int64
	// PreviousScore is the stored score before an accepted write, 0 for a new pair
	PreviousScore int64
	// CurrentScore is the stored score that caused a rejection
	CurrentScore int64
	Timestamp    int64
}

// Improvement is the gain of an accepted score over the previous best
func (r SubmissionResult) Improvement() int64 {
	if !r.Accepted {
		return 0
	}
	return r.Score - r.PreviousScore
}

// Submission outcome messages
const (
	MsgNewScoreRecorded = "New score recorded!"
	MsgNewPersonalBest  = "New personal best!"
	MsgScoreNotUpdated  = "Score not updated. Previous score was higher."
)
