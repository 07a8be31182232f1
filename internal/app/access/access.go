// Package access holds the visibility rules for submissions, problems and
// contests. Every function is pure: callers load the inputs fresh from the
// store on each request, so a decision follows contest end times and
// registrations as they change.
package access

import (
	"time"

	"judge_zone/internal/domain/model"
)

// Actor is the caller. A nil *Actor is an anonymous visitor.
type Actor struct {
	UserID      int64
	Permissions []string
}

func (a *Actor) IsAdmin() bool {
	if a == nil {
		return false
	}
	for _, p := range a.Permissions {
		if p == model.PermissionAdmin {
			return true
		}
	}
	return false
}

// IsJudge is true for the worker principal. Admins count as judges.
func (a *Actor) IsJudge() bool {
	if a == nil {
		return false
	}
	if a.IsAdmin() {
		return true
	}
	for _, p := range a.Permissions {
		if p == model.PermissionJudge {
			return true
		}
	}
	return false
}

func (a *Actor) Owns(sub *model.Submission) bool {
	return a != nil && sub != nil && a.UserID == sub.UserID
}

// SubmissionTarget is what a submission points at. Contest is nil for a
// standalone submission, Problem is only consulted in that case.
type SubmissionTarget struct {
	Problem    *model.Problem
	Contest    *model.Contest
	Registered bool
}

// CanViewSubmission: admins and the owner always pass. A contest submission
// is visible to others only after the contest ended, and then only if the
// contest is public or the actor was registered. A standalone submission is
// visible iff its problem is public.
func CanViewSubmission(actor *Actor, sub *model.Submission, target SubmissionTarget, now time.Time) bool {
	if actor.IsAdmin() || actor.Owns(sub) {
		return true
	}
	if sub.InContest() {
		if target.Contest == nil || !target.Contest.HasEnded(now) {
			return false
		}
		return target.Contest.IsPublic || (actor != nil && target.Registered)
	}
	return target.Problem != nil && target.Problem.IsPublic
}

// CanSeeFullSubmission gates source code and raw judge output.
func CanSeeFullSubmission(actor *Actor, sub *model.Submission) bool {
	return actor.IsAdmin() || actor.Owns(sub)
}

func CanViewProblem(actor *Actor, p *model.Problem) bool {
	return p.IsPublic || actor.IsAdmin()
}

func CanViewContest(actor *Actor, c *model.Contest, registered bool) bool {
	return c.IsPublic || actor.IsAdmin() || (actor != nil && registered)
}

// CanViewContestProblems hides the problem set until the contest starts.
func CanViewContestProblems(actor *Actor, c *model.Contest, now time.Time) bool {
	return actor.IsAdmin() || c.HasStarted(now)
}

// CanSubmitInContest requires the contest to be open and a registration.
func CanSubmitInContest(actor *Actor, c *model.Contest, registered bool, now time.Time) bool {
	return actor != nil && registered && c.IsRunning(now)
}

func CanRegister(actor *Actor, c *model.Contest, registered bool, now time.Time) bool {
	return actor != nil && CanViewContest(actor, c, registered) && !c.HasEnded(now)
}

// CanViewScoreboard: admins always, everyone else once the contest ended
// and only for contests they could see.
func CanViewScoreboard(actor *Actor, c *model.Contest, registered bool, now time.Time) bool {
	if actor.IsAdmin() {
		return true
	}
	return c.HasEnded(now) && CanViewContest(actor, c, registered)
}
