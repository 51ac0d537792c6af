package service

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/bilbotrack/internal/models"
	"github.com/google/uuid"
)

// StartRest puts an exercise into a rest period. endDate is the planned end
// and may be empty for an open-ended rest.
func (s *Service) StartRest(ctx context.Context, exerciseID, startDate, endDate string) (models.Exercise, error) {
	if err := validDate(startDate); err != nil {
		return models.Exercise{}, err
	}
	if endDate != "" {
		if err := validDate(endDate); err != nil {
			return models.Exercise{}, err
		}
	}

	e, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return models.Exercise{}, err
	}

	e.IsResting = true
	e.RestStartDate = startDate
	e.RestEndDate = endDate
	e.UpdatedAt = s.now().UnixMilli()

	if err := s.store.PutExercise(ctx, e); err != nil {
		return models.Exercise{}, err
	}
	s.log.Info("rest started", "exercise", exerciseID, "from", startDate)
	s.scheduleSync()
	return e, nil
}

// EndRest ends the current rest period and archives it into the exercise's
// rest history with today's date as the actual end.
func (s *Service) EndRest(ctx context.Context, exerciseID string) (models.Exercise, error) {
	e, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return models.Exercise{}, err
	}

	if e.RestStartDate != "" {
		e.RestHistory = append(e.RestHistory, models.RestPeriod{
			ID:        uuid.NewString(),
			StartDate: e.RestStartDate,
			EndDate:   e.RestEndDate,
			ActualEnd: s.now().Format(dateLayout),
		})
	}

	e.IsResting = false
	e.RestStartDate = ""
	e.RestEndDate = ""
	e.UpdatedAt = s.now().UnixMilli()

	if err := s.store.PutExercise(ctx, e); err != nil {
		return models.Exercise{}, err
	}
	s.log.Info("rest ended", "exercise", exerciseID)
	s.scheduleSync()
	return e, nil
}

// CancelRest drops the current rest period without archiving it.
func (s *Service) CancelRest(ctx context.Context, exerciseID string) (models.Exercise, error) {
	e, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return models.Exercise{}, err
	}

	e.IsResting = false
	e.RestStartDate = ""
	e.RestEndDate = ""
	e.UpdatedAt = s.now().UnixMilli()

	if err := s.store.PutExercise(ctx, e); err != nil {
		return models.Exercise{}, err
	}
	s.scheduleSync()
	return e, nil
}

// UpdateRest changes the dates of the current rest period.
func (s *Service) UpdateRest(ctx context.Context, exerciseID, startDate, endDate string) (models.Exercise, error) {
	if err := validDate(startDate); err != nil {
		return models.Exercise{}, err
	}
	if endDate != "" {
		if err := validDate(endDate); err != nil {
			return models.Exercise{}, err
		}
	}

	e, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return models.Exercise{}, err
	}

	e.RestStartDate = startDate
	e.RestEndDate = endDate
	e.UpdatedAt = s.now().UnixMilli()

	if err := s.store.PutExercise(ctx, e); err != nil {
		return models.Exercise{}, err
	}
	s.scheduleSync()
	return e, nil
}

// UpdateHistoricalRest edits an archived rest period in place.
func (s *Service) UpdateHistoricalRest(ctx context.Context, exerciseID, restID, startDate, endDate, actualEnd string) (models.Exercise, error) {
	for _, d := range []string{startDate, actualEnd} {
		if err := validDate(d); err != nil {
			return models.Exercise{}, err
		}
	}
	if endDate != "" {
		if err := validDate(endDate); err != nil {
			return models.Exercise{}, err
		}
	}

	e, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return models.Exercise{}, err
	}

	found := false
	for i := range e.RestHistory {
		if e.RestHistory[i].ID != restID {
			continue
		}
		e.RestHistory[i].StartDate = startDate
		e.RestHistory[i].EndDate = endDate
		e.RestHistory[i].ActualEnd = actualEnd
		found = true
	}
	if !found {
		return models.Exercise{}, fmt.Errorf("%w: rest period %q", ErrInvalidInput, restID)
	}
	e.UpdatedAt = s.now().UnixMilli()

	if err := s.store.PutExercise(ctx, e); err != nil {
		return models.Exercise{}, err
	}
	s.scheduleSync()
	return e, nil
}

// DeleteHistoricalRest removes an archived rest period.
func (s *Service) DeleteHistoricalRest(ctx context.Context, exerciseID, restID string) (models.Exercise, error) {
	e, err := s.store.GetExercise(ctx, exerciseID)
	if err != nil {
		return models.Exercise{}, err
	}

	kept := e.RestHistory[:0]
	for _, r := range e.RestHistory {
		if r.ID != restID {
			kept = append(kept, r)
		}
	}
	e.RestHistory = kept
	e.UpdatedAt = s.now().UnixMilli()

	if err := s.store.PutExercise(ctx, e); err != nil {
		return models.Exercise{}, err
	}
	s.scheduleSync()
	return e, nil
}

func validDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidInput, date)
	}
	return nil
}
