package model

import "time"

type ScoreboardCell struct {
	ContestProblem string     `json:"contest_problem"`
	Solved         bool       `json:"solved"`
	Attempts       int        `json:"attempts"`
	SolvedAt       *time.Time `json:"solved_at,omitempty"`
}

type ScoreboardEntry struct {
	Rank           int              `json:"rank"`
	UserID         int64            `json:"user_id"`
	Username       string           `json:"username"`
	ProblemsSolved int              `json:"problems_solved"`
	LastSolvedAt   *time.Time       `json:"last_solved_at,omitempty"`
	Problems       []ScoreboardCell `json:"problems"`
}

// ScoreboardRow is what the store hands back: one row per registered user
// and contest problem.
type ScoreboardRow struct {
	UserID         int64
	Username       string
	ContestProblem string
	Attempts       int
	FirstSolvedAt  *time.Time
}
