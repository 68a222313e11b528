package healthcheck

import (
	"context"
	"log/slog"
	"sort"
)

// Service aggregates the registered checkers for the health endpoint.
type Service struct {
	logger   *slog.Logger
	checkers []Checker
}

// NewService creates a service evaluating the given checkers.
func NewService(log *slog.Logger, checkers ...Checker) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		logger:   log.With(slog.String("component", "healthcheck")),
		checkers: checkers,
	}
}

// Run evaluates all checkers and returns their results sorted by ID.
func (s *Service) Run(ctx context.Context) []CheckResult {
	results := make([]CheckResult, 0, len(s.checkers))
	for _, checker := range s.checkers {
		if checker == nil {
			continue
		}
		results = append(results, checker.ListChecks(ctx)...)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	return results
}

// Overall reduces check results to the worst status present.
func Overall(results []CheckResult) string {
	overall := StatusOK
	for _, result := range results {
		switch result.Status {
		case StatusError:
			return StatusError
		case StatusWarn:
			overall = StatusWarn
		case StatusUnknown:
			if overall == StatusOK {
				overall = StatusUnknown
			}
		}
	}
	return overall
}
