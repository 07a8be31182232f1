package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Contest struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	IsPublic  bool      `json:"is_public"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Problems []ContestProblem `json:"problems,omitempty"`
}

// HasStarted and HasEnded use inclusive start and end bounds: a contest is
// open for submissions while StartTime <= now <= EndTime.
func (c *Contest) HasStarted(now time.Time) bool {
	return !now.Before(c.StartTime)
}

func (c *Contest) HasEnded(now time.Time) bool {
	return now.After(c.EndTime)
}

func (c *Contest) IsRunning(now time.Time) bool {
	return c.HasStarted(now) && !c.HasEnded(now)
}

type ContestProblem struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	ContestID   int64  `json:"contest_id"`
	ProblemID   int64  `json:"problem_id"`
	ProblemSlug string `json:"problem_slug"`
	Title       string `json:"title"`
}

type ContestRegistration struct {
	ContestID    int64     `json:"contest_id"`
	UserID       int64     `json:"user_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

type ContestProblemRequest struct {
	Slug        string `json:"slug"`
	ProblemSlug string `json:"problem_slug"`
}

func (r ContestProblemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Slug, validation.Required, validation.Match(SlugRegexp)),
		validation.Field(&r.ProblemSlug, validation.Required, validation.Match(SlugRegexp)),
	)
}

// ContestRequest serves create and partial edit, like ProblemRequest.
type ContestRequest struct {
	Slug      *string                  `json:"slug"`
	Title     *string                  `json:"title"`
	IsPublic  *bool                    `json:"is_public"`
	StartTime *time.Time               `json:"start_time"`
	EndTime   *time.Time               `json:"end_time"`
	Problems  *[]ContestProblemRequest `json:"problems"`
}

func (r ContestRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Slug, validation.NilOrNotEmpty, validation.Match(SlugRegexp)),
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Problems, validation.By(uniqueContestProblemSlugs)),
	)
}

func (r ContestRequest) ValidateCreate() error {
	if err := r.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Slug, validation.Required),
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.StartTime, validation.Required),
		validation.Field(&r.EndTime, validation.Required),
	)
}

func uniqueContestProblemSlugs(value interface{}) error {
	problems, _ := value.(*[]ContestProblemRequest)
	if problems == nil {
		return nil
	}
	seen := make(map[string]bool, len(*problems))
	for _, p := range *problems {
		if seen[p.Slug] {
			return errors.New("contest problem slugs must be unique")
		}
		seen[p.Slug] = true
	}
	return nil
}

// Apply copies the scalar fields onto c. Problems are resolved by the caller.
func (r ContestRequest) Apply(c *Contest) {
	if r.Slug != nil {
		c.Slug = *r.Slug
	}
	if r.Title != nil {
		c.Title = *r.Title
	}
	if r.IsPublic != nil {
		c.IsPublic = *r.IsPublic
	}
	if r.StartTime != nil {
		c.StartTime = *r.StartTime
	}
	if r.EndTime != nil {
		c.EndTime = *r.EndTime
	}
}

// ValidateWindow checks the contest does not end before it starts.
func ValidateWindow(c *Contest) error {
	if c.EndTime.Before(c.StartTime) {
		return validation.Errors{"end_time": errors.New("must not be before start_time")}
	}
	return nil
}
