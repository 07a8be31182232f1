package model

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gosimple/slug"
)

type ProblemType string

const (
	ProblemTypeStandard    ProblemType = "standard"
	ProblemTypeInteractive ProblemType = "interactive"
)

// Limit defaults, in seconds and kilobytes.
const (
	DefaultTimeLimit          = 1.0
	DefaultMemoryLimit        = 256000
	DefaultCompileTimeLimit   = 15.0
	DefaultCompileMemoryLimit = 1024000
	DefaultCheckerTimeLimit   = 1.0
	DefaultCheckerMemoryLimit = 256000
)

// SlugRegexp is shared by problem, contest and contest problem slugs.
var SlugRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Limits struct {
	TimeLimit          float64 `json:"time_limit" yaml:"time_limit"`
	MemoryLimit        int64   `json:"memory_limit" yaml:"memory_limit"`
	CompileTimeLimit   float64 `json:"compile_time_limit" yaml:"compile_time_limit"`
	CompileMemoryLimit int64   `json:"compile_memory_limit" yaml:"compile_memory_limit"`
	CheckerTimeLimit   float64 `json:"checker_time_limit" yaml:"checker_time_limit"`
	CheckerMemoryLimit int64   `json:"checker_memory_limit" yaml:"checker_memory_limit"`
}

func DefaultLimits() Limits {
	return Limits{
		TimeLimit:          DefaultTimeLimit,
		MemoryLimit:        DefaultMemoryLimit,
		CompileTimeLimit:   DefaultCompileTimeLimit,
		CompileMemoryLimit: DefaultCompileMemoryLimit,
		CheckerTimeLimit:   DefaultCheckerTimeLimit,
		CheckerMemoryLimit: DefaultCheckerMemoryLimit,
	}
}

// TestCase names the input and expected output files of one test.
type TestCase struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

func (tc TestCase) Validate() error {
	return validation.ValidateStruct(&tc,
		validation.Field(&tc.Input, validation.Required),
		validation.Field(&tc.Output, validation.Required),
	)
}

type Problem struct {
	ID         int64       `json:"id"`
	Slug       string      `json:"slug"`
	Title      string      `json:"title"`
	Statement  string      `json:"statement"`
	Type       ProblemType `json:"type"`
	IsPublic   bool        `json:"is_public"`
	Limits                 // flattened into the JSON object
	Checker    *string     `json:"checker,omitempty"`    // Admin only view
	Interactor *string     `json:"interactor,omitempty"` // Admin only view
	TestCases  []TestCase  `json:"testcases"`            // Admin only view
	LastUpdate time.Time   `json:"last_update"`
}

// PublicProblem hides checker, interactor and test data.
type PublicProblem struct {
	ID        int64       `json:"id"`
	Slug      string      `json:"slug"`
	Title     string      `json:"title"`
	Statement string      `json:"statement"`
	Type      ProblemType `json:"type"`
	Limits
	LastUpdate time.Time `json:"last_update"`
}

func (p *Problem) Public() PublicProblem {
	return PublicProblem{
		ID:         p.ID,
		Slug:       p.Slug,
		Title:      p.Title,
		Statement:  p.Statement,
		Type:       p.Type,
		Limits:     p.Limits,
		LastUpdate: p.LastUpdate,
	}
}

// ProblemMetadata is the YAML document the judge worker reads.
type ProblemMetadata struct {
	ProblemName string      `yaml:"problem_name"`
	Type        ProblemType `yaml:"type"`
	Limits      Limits      `yaml:"limits"`
	TestCases   []TestCase  `yaml:"testcases"`
}

func (p *Problem) Metadata() ProblemMetadata {
	tcs := p.TestCases
	if tcs == nil {
		tcs = []TestCase{}
	}
	return ProblemMetadata{ProblemName: p.Slug, Type: p.Type, Limits: p.Limits, TestCases: tcs}
}

// ProblemRequest serves create (all nil fields get defaults) and edit (nil
// fields are left unchanged).
type ProblemRequest struct {
	Slug               *string      `json:"slug"`
	Title              *string      `json:"title"`
	Statement          *string      `json:"statement"`
	Type               *ProblemType `json:"type"`
	IsPublic           *bool        `json:"is_public"`
	TimeLimit          *float64     `json:"time_limit"`
	MemoryLimit        *int64       `json:"memory_limit"`
	CompileTimeLimit   *float64     `json:"compile_time_limit"`
	CompileMemoryLimit *int64       `json:"compile_memory_limit"`
	CheckerTimeLimit   *float64     `json:"checker_time_limit"`
	CheckerMemoryLimit *int64       `json:"checker_memory_limit"`
	Checker            *string      `json:"checker"`
	Interactor         *string      `json:"interactor"`
	TestCases          *[]TestCase  `json:"testcases"`
}

func (r ProblemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Slug, validation.NilOrNotEmpty, validation.Match(SlugRegexp)),
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Type, validation.In(ProblemTypeStandard, ProblemTypeInteractive)),
		validation.Field(&r.TimeLimit, validation.Min(0.0).Exclusive()),
		validation.Field(&r.MemoryLimit, validation.Min(int64(1))),
		validation.Field(&r.CompileTimeLimit, validation.Min(0.0).Exclusive()),
		validation.Field(&r.CompileMemoryLimit, validation.Min(int64(1))),
		validation.Field(&r.CheckerTimeLimit, validation.Min(0.0).Exclusive()),
		validation.Field(&r.CheckerMemoryLimit, validation.Min(int64(1))),
		validation.Field(&r.TestCases),
	)
}

// ValidateCreate adds the fields a new problem cannot do without.
func (r ProblemRequest) ValidateCreate() error {
	if err := r.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
	)
}

// NewProblem builds a problem from a create request. A missing slug is
// derived from the title.
func (r ProblemRequest) NewProblem() *Problem {
	p := &Problem{
		Type:      ProblemTypeStandard,
		Limits:    DefaultLimits(),
		TestCases: []TestCase{},
	}
	if r.Title != nil {
		p.Slug = slug.Make(*r.Title)
	}
	r.Apply(p)
	return p
}

// Apply copies every non-nil field onto p.
func (r ProblemRequest) Apply(p *Problem) {
	if r.Slug != nil {
		p.Slug = *r.Slug
	}
	if r.Title != nil {
		p.Title = *r.Title
	}
	if r.Statement != nil {
		p.Statement = *r.Statement
	}
	if r.Type != nil {
		p.Type = *r.Type
	}
	if r.IsPublic != nil {
		p.IsPublic = *r.IsPublic
	}
	if r.TimeLimit != nil {
		p.TimeLimit = *r.TimeLimit
	}
	if r.MemoryLimit != nil {
		p.MemoryLimit = *r.MemoryLimit
	}
	if r.CompileTimeLimit != nil {
		p.CompileTimeLimit = *r.CompileTimeLimit
	}
	if r.CompileMemoryLimit != nil {
		p.CompileMemoryLimit = *r.CompileMemoryLimit
	}
	if r.CheckerTimeLimit != nil {
		p.CheckerTimeLimit = *r.CheckerTimeLimit
	}
	if r.CheckerMemoryLimit != nil {
		p.CheckerMemoryLimit = *r.CheckerMemoryLimit
	}
	if r.Checker != nil {
		p.Checker = r.Checker
	}
	if r.Interactor != nil {
		p.Interactor = r.Interactor
	}
	if r.TestCases != nil {
		p.TestCases = *r.TestCases
	}
}

type TestCasesRequest struct {
	TestCases []TestCase `json:"testcases"`
}

func (r TestCasesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TestCases, validation.NotNil),
	)
}
