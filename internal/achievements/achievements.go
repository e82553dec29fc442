// Package achievements grants one-time badges when a user's persisted
// message count crosses fixed thresholds.
package achievements

import (
	"context"
	"fmt"
	"log"

	"github.com/charlabot/charla/internal/metrics"
	"github.com/charlabot/charla/internal/notify"
	"github.com/charlabot/charla/internal/store"
)

// Rule is one threshold entry. All rules are evaluated on every call;
// the store's uniqueness guard keeps each grant one-time.
type Rule struct {
	Threshold   int64
	Name        string
	Description string
}

var Rules = []Rule{
	{Threshold: 100, Name: "Cien Mensajes", Description: "Enviados 100 mensajes"},
	{Threshold: 10, Name: "Primeros Pasos", Description: "Enviados 10 mensajes"},
}

// Recorder is the slice of the store the engine needs.
type Recorder interface {
	CountTurns(ctx context.Context, userID string) (int64, error)
	GrantAchievement(ctx context.Context, userID, name, description string) (store.Achievement, bool, error)
}

type Engine struct {
	Store    Recorder
	Notifier notify.Notifier
	Logger   *log.Logger
}

func NewEngine(st Recorder, n notify.Notifier, logger *log.Logger) *Engine {
	return &Engine{Store: st, Notifier: n, Logger: logger}
}

// Evaluate grants every threshold the user has crossed but does not yet hold
// and returns the list actually granted this call. All newly granted badges
// go out in one notification.
func (e *Engine) Evaluate(ctx context.Context, userID string) ([]store.Achievement, error) {
	count, err := e.Store.CountTurns(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count turns: %w", err)
	}
	var granted []store.Achievement
	for _, rule := range Rules {
		if count < rule.Threshold {
			continue
		}
		a, ok, err := e.Store.GrantAchievement(ctx, userID, rule.Name, rule.Description)
		if err != nil {
			return granted, fmt.Errorf("grant %q: %w", rule.Name, err)
		}
		if ok {
			granted = append(granted, a)
		}
	}
	metrics.AchievementsGranted.Add(float64(len(granted)))
	if len(granted) > 0 && e.Notifier != nil {
		if err := e.Notifier.Publish(ctx, userID, notify.EventAchievement, granted); err != nil {
			e.Logger.Printf("publish achievements for %s: %v", userID, err)
		}
	}
	return granted, nil
}
