// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tasks implements the priority-ordered task marketplace.
//
// Tasks move through a fixed state machine:
//
//	available --claim(agent)--> claimed --start--> in_progress
//	claimed | in_progress --complete(agent,summary)--> completed
//	available --cancel--> cancelled
//
// No retrograde transitions exist; completed and cancelled are terminal and
// tasks are retained indefinitely. Every transition appends a lifecycle
// event to a dedicated lineage chain, so the marketplace history is
// tamper-evident the same way the audit trail is.
package tasks

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGateway/services/gateway/chain"
	"github.com/google/uuid"
)

// Priority levels, ordered critical > high > medium > low for listing.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Task statuses.
const (
	StatusAvailable  = "available"
	StatusClaimed    = "claimed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// priorityRank orders priorities for listing; higher sorts first.
var priorityRank = map[string]int{
	PriorityCritical: 3,
	PriorityHigh:     2,
	PriorityMedium:   1,
	PriorityLow:      0,
}

// Sentinel errors for state machine violations.
var (
	// ErrNotFound is returned for an unknown task ID.
	ErrNotFound = errors.New("task not found")

	// ErrNotAvailable is returned when claiming or cancelling a task that
	// has left the available state.
	ErrNotAvailable = errors.New("task not available")

	// ErrNotClaimable is returned when completing or starting a task from
	// an incompatible state, or when starting by an agent that does not
	// hold it.
	ErrNotClaimable = errors.New("task not held in a claimable state")
)

// Task is one marketplace entry.
type Task struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Priority      string   `json:"priority"`
	Status        string   `json:"status"`
	Agent         string   `json:"agent,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Skills        []string `json:"skills,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	CreatedAtNS   int64    `json:"created_at_ns"`
	ClaimedAtNS   int64    `json:"claimed_at_ns,omitempty"`
	CompletedAtNS int64    `json:"completed_at_ns,omitempty"`
}

// Filter selects tasks for List. Empty fields match everything.
type Filter struct {
	Status   string
	Priority string
	Agent    string
	Limit    int
	Offset   int
}

// lifecycleEvent is the lineage chain content for one transition.
type lifecycleEvent struct {
	Event  string `json:"event"`
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Agent  string `json:"agent,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Store is the in-memory task marketplace.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Mutations hold the write lock
// across the state check, the transition, and the lineage append, so a
// losing concurrent claim always observes ErrNotAvailable rather than a
// torn state.
type Store struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	lineage *chain.Log
	now     func() int64
}

// NewStore creates an empty marketplace. lineage may be nil for callers that
// do not record history (tests of unrelated behavior).
func NewStore(lineage *chain.Log) *Store {
	if lineage == nil {
		lineage = chain.NewLog()
	}
	return &Store{
		tasks:   make(map[string]*Task),
		lineage: lineage,
		now:     func() int64 { return time.Now().UnixNano() },
	}
}

// Create adds a new available task. Priority defaults to medium.
func (s *Store) Create(title, description, priority string, tags, skills []string) (*Task, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	if _, ok := priorityRank[priority]; !ok {
		return nil, fmt.Errorf("unknown priority %q", priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusAvailable,
		Tags:        tags,
		Skills:      skills,
		CreatedAtNS: s.now(),
	}
	s.tasks[t.ID] = t
	s.appendLineage("task.created", t)
	return copyTask(t), nil
}

// Claim moves an available task to claimed for the given agent.
func (s *Store) Claim(id, agent string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status != StatusAvailable {
		return nil, fmt.Errorf("task %s is %s: %w", id, t.Status, ErrNotAvailable)
	}

	t.Status = StatusClaimed
	t.Agent = agent
	t.ClaimedAtNS = s.now()
	s.appendLineage("task.claimed", t)
	return copyTask(t), nil
}

// Start moves a claimed task to in_progress. Only the holding agent may
// start its own claim.
func (s *Store) Start(id, agent string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status != StatusClaimed || t.Agent != agent {
		return nil, fmt.Errorf("task %s is %s (held by %q): %w", id, t.Status, t.Agent, ErrNotClaimable)
	}

	t.Status = StatusInProgress
	s.appendLineage("task.started", t)
	return copyTask(t), nil
}

// Complete finishes a claimed or in_progress task, recording the agent and
// an optional summary.
func (s *Store) Complete(id, agent, summary string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status != StatusClaimed && t.Status != StatusInProgress {
		return nil, fmt.Errorf("task %s is %s: %w", id, t.Status, ErrNotClaimable)
	}

	t.Status = StatusCompleted
	t.Agent = agent
	t.Summary = summary
	t.CompletedAtNS = s.now()
	s.appendLineage("task.completed", t)
	return copyTask(t), nil
}

// Cancel withdraws an available task from the marketplace.
func (s *Store) Cancel(id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status != StatusAvailable {
		return nil, fmt.Errorf("task %s is %s: %w", id, t.Status, ErrNotAvailable)
	}

	t.Status = StatusCancelled
	s.appendLineage("task.cancelled", t)
	return copyTask(t), nil
}

// Get returns a task by ID.
func (s *Store) Get(id string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return copyTask(t), true
}

// List returns tasks sorted by priority descending then creation time
// ascending, plus the total match count before pagination.
func (s *Store) List(f Filter) ([]*Task, int) {
	s.mu.RLock()
	matched := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Agent != "" && t.Agent != f.Agent {
			continue
		}
		matched = append(matched, copyTask(t))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if priorityRank[matched[i].Priority] != priorityRank[matched[j].Priority] {
			return priorityRank[matched[i].Priority] > priorityRank[matched[j].Priority]
		}
		return matched[i].CreatedAtNS < matched[j].CreatedAtNS
	})

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= total {
			return nil, total
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total
}

// VerifyLineage verifies the lifecycle event chain.
func (s *Store) VerifyLineage() chain.VerifyResult {
	return s.lineage.Verify()
}

// appendLineage records one lifecycle event. Called with the write lock
// held; the chain has its own append lock, so the nesting is fixed-order
// and deadlock-free.
func (s *Store) appendLineage(event string, t *Task) {
	_, _ = s.lineage.Append(lifecycleEvent{
		Event:  event,
		TaskID: t.ID,
		Status: t.Status,
		Agent:  t.Agent,
		Title:  t.Title,
	})
}

func copyTask(t *Task) *Task {
	dup := *t
	return &dup
}
