package services

import (
	"context"
	"strings"
	"time"

	"expensa/internal/core"
	"expensa/internal/log"
)

type GoalService struct {
	store  GoalStore
	logger *log.Logger
	now    func() time.Time
}

func NewGoalService(store GoalStore, logger *log.Logger) *GoalService {
	if logger == nil {
		logger = log.Nop()
	}
	return &GoalService{store: store, logger: logger.WithComponent(log.ComponentGoal), now: time.Now}
}

func (s *GoalService) Create(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	g.Name = strings.TrimSpace(g.Name)
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	return s.store.CreateGoal(ctx, g)
}

// Update changes the goal's metadata. The current amount only moves through
// contributions, so the stored value is kept.
func (s *GoalService) Update(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	current, err := s.store.GetGoal(ctx, g.UserID, g.ID)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	g.Name = strings.TrimSpace(g.Name)
	g.CurrentAmount = current.CurrentAmount
	g.CreatedAt = current.CreatedAt
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	if err := s.store.UpdateGoal(ctx, g); err != nil {
		return core.SavingsGoal{}, err
	}
	return g, nil
}

func (s *GoalService) Get(ctx context.Context, userID, id string) (core.SavingsGoal, error) {
	return s.store.GetGoal(ctx, userID, id)
}

func (s *GoalService) List(ctx context.Context, userID string) ([]core.SavingsGoal, error) {
	return s.store.ListGoals(ctx, userID)
}

func (s *GoalService) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteGoal(ctx, userID, id)
}

// Contribute adds money to a goal. A zero date means today.
func (s *GoalService) Contribute(ctx context.Context, c core.Contribution) (core.Contribution, core.SavingsGoal, error) {
	if c.Date.IsZero() {
		c.Date = core.DateOf(s.now())
	}
	c.Note = strings.TrimSpace(c.Note)
	if err := c.Validate(); err != nil {
		return core.Contribution{}, core.SavingsGoal{}, err
	}
	saved, goal, err := s.store.AddContribution(ctx, c)
	if err != nil {
		return core.Contribution{}, core.SavingsGoal{}, err
	}
	if goal.Completed() {
		s.logger.InfoContext(ctx, "Savings goal reached", log.FieldUserID, goal.UserID, "goal_id", goal.ID)
	}
	return saved, goal, nil
}

func (s *GoalService) RemoveContribution(ctx context.Context, userID, goalID, id string) (core.SavingsGoal, error) {
	return s.store.DeleteContribution(ctx, userID, goalID, id)
}

func (s *GoalService) Contributions(ctx context.Context, userID, goalID string) ([]core.Contribution, error) {
	if _, err := s.store.GetGoal(ctx, userID, goalID); err != nil {
		return nil, err
	}
	return s.store.ListContributions(ctx, userID, goalID)
}
