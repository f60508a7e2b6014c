package scheduler

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Handler is the callback invoked when a scheduled task fires. The prompt is
// submitted as a normal turn on the task's thread.
type Handler func(userID, threadID, prompt string)

// Scheduler evaluates cron expressions from the task store and fires tasks
// through a handler callback.
type Scheduler struct {
	store   *TaskStore
	handler Handler
	cron    *cron.Cron
	logger  *zap.Logger
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func New(store *TaskStore, handler Handler, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		handler: handler,
		cron:    cron.New(cron.WithParser(cronParser)),
		logger:  logger,
	}
}

// Start loads tasks from the store, registers enabled tasks that have a
// schedule, and starts the cron ticker.
func (s *Scheduler) Start() error {
	tasks, err := s.store.List()
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if task.Schedule == "" || !task.Enabled {
			continue
		}

		task := task
		_, err := s.cron.AddFunc(task.Schedule, func() {
			s.logger.Info("cron firing task",
				zap.String("name", task.Name),
				zap.String("user_id", task.UserID),
				zap.String("thread_id", task.ThreadID),
			)
			s.handler(task.UserID, task.ThreadID, task.Prompt)
		})
		if err != nil {
			s.logger.Error("invalid cron schedule",
				zap.String("name", task.Name),
				zap.String("schedule", task.Schedule),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("scheduled task",
			zap.String("name", task.Name),
			zap.String("schedule", task.Schedule),
		)
	}

	s.cron.Start()
	return nil
}

// Reload stops the existing cron, creates a new one, and starts again from
// the store.
func (s *Scheduler) Reload() error {
	s.cron.Stop()
	s.cron = cron.New(cron.WithParser(cronParser))
	return s.Start()
}

// Stop stops the cron ticker.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
