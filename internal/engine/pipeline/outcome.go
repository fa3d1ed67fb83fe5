package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rendis/eyescan/internal/engine/places"
	"github.com/rendis/eyescan/internal/metrics"
)

// Level is the granularity an outcome applies to.
type Level string

const (
	LevelItem     Level = "item"
	LevelQuery    Level = "query"
	LevelStrategy Level = "strategy"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// Category classifies a failure.
type Category string

const (
	CategoryNone         Category = ""
	CategoryConfig       Category = "config"
	CategoryTransport    Category = "transport"
	CategoryQuota        Category = "quota"
	CategoryInvalid      Category = "invalid_request"
	CategoryDecode       Category = "decode"
	CategoryMissingField Category = "missing_field"
	CategoryCanceled     Category = "canceled"
)

var (
	// ErrMissingField marks a record the provider returned without a required attribute.
	ErrMissingField = errors.New("missing required field")
	// ErrConfig marks an unusable run configuration.
	ErrConfig = errors.New("invalid configuration")
)

// Outcome is the structured result of one unit of work.
type Outcome struct {
	Level    Level
	Status   Status
	Category Category
	Subject  string
	Err      error
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s %s %s [%s]: %v", o.Level, o.Subject, o.Status, o.Category, o.Err)
	}
	return fmt.Sprintf("%s %s %s", o.Level, o.Subject, o.Status)
}

// Classify maps an error onto a failure category.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var se *places.StatusError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CategoryCanceled
	case errors.Is(err, ErrConfig):
		return CategoryConfig
	case errors.Is(err, ErrMissingField):
		return CategoryMissingField
	case errors.Is(err, places.ErrMalformed):
		return CategoryDecode
	case errors.As(err, &se):
		if se.Quota() {
			return CategoryQuota
		}
		if se.Status == places.StatusInvalidRequest || se.Status == places.StatusNotFound {
			return CategoryInvalid
		}
		return CategoryTransport
	}
	var he *places.HTTPError
	if errors.As(err, &he) && he.StatusCode == 429 {
		return CategoryQuota
	}
	return CategoryTransport
}

func failed(level Level, subject string, err error) Outcome {
	return Outcome{Level: level, Status: StatusFailed, Category: Classify(err), Subject: subject, Err: err}
}

// Outcomes collects outcomes from concurrent workers.
type Outcomes struct {
	mu   sync.Mutex
	list []Outcome
}

func (o *Outcomes) Add(out Outcome) {
	metrics.RecordOutcome(string(out.Level), string(out.Status), string(out.Category))
	o.mu.Lock()
	o.list = append(o.list, out)
	o.mu.Unlock()
}

// All returns a copy of the recorded outcomes in arrival order.
func (o *Outcomes) All() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.list...)
}

// Count returns how many outcomes match level, status and category.
// An empty category matches any.
func (o *Outcomes) Count(level Level, status Status, cat Category) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, out := range o.list {
		if out.Level == level && out.Status == status && (cat == CategoryNone || out.Category == cat) {
			n++
		}
	}
	return n
}

// Failures returns the failed outcomes tallied by category.
func (o *Outcomes) Failures() map[Category]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	m := make(map[Category]int)
	for _, out := range o.list {
		if out.Status == StatusFailed {
			m[out.Category]++
		}
	}
	return m
}
