package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

// PipelineStore — in-memory хранилище определений pipeline.
//
// Имя pipeline уникально. Store отдаёт копии: правка полученного
// Pipeline не видна другим читателям, пока не пройдёт через Update.
type PipelineStore struct {
	mu        sync.RWMutex
	pipelines map[uuid.UUID]*domain.Pipeline
	byName    map[string]uuid.UUID
}

// NewPipelineStore создаёт пустое хранилище pipelines.
func NewPipelineStore() *PipelineStore {
	return &PipelineStore{
		pipelines: make(map[uuid.UUID]*domain.Pipeline),
		byName:    make(map[string]uuid.UUID),
	}
}

// Create сохраняет новый pipeline.
func (s *PipelineStore) Create(p *domain.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[p.ID]; ok {
		return fmt.Errorf("%w: pipeline %s", ErrAlreadyExists, p.ID)
	}
	if _, ok := s.byName[p.Name]; ok {
		return fmt.Errorf("%w: pipeline name %q", ErrAlreadyExists, p.Name)
	}

	s.pipelines[p.ID] = clonePipeline(p)
	s.byName[p.Name] = p.ID
	return nil
}

// Get возвращает pipeline по ID.
func (s *PipelineStore) Get(id uuid.UUID) (*domain.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("%w: pipeline %s", ErrNotFound, id)
	}
	return clonePipeline(p), nil
}

// GetByName возвращает pipeline по имени.
func (s *PipelineStore) GetByName(name string) (*domain.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: pipeline %q", ErrNotFound, name)
	}
	return clonePipeline(s.pipelines[id]), nil
}

// Update заменяет определение pipeline.
func (s *PipelineStore) Update(p *domain.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.pipelines[p.ID]
	if !ok {
		return fmt.Errorf("%w: pipeline %s", ErrNotFound, p.ID)
	}
	if p.Name != old.Name {
		if _, taken := s.byName[p.Name]; taken {
			return fmt.Errorf("%w: pipeline name %q", ErrAlreadyExists, p.Name)
		}
		delete(s.byName, old.Name)
		s.byName[p.Name] = p.ID
	}

	s.pipelines[p.ID] = clonePipeline(p)
	return nil
}

// Delete удаляет pipeline.
func (s *PipelineStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pipelines[id]
	if !ok {
		return fmt.Errorf("%w: pipeline %s", ErrNotFound, id)
	}
	delete(s.byName, p.Name)
	delete(s.pipelines, id)
	return nil
}

// List возвращает все pipelines, новые первыми.
func (s *PipelineStore) List() []*domain.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, clonePipeline(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Count возвращает количество pipelines.
func (s *PipelineStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pipelines)
}

// clonePipeline делает глубокую копию pipeline, достаточную для того,
// чтобы читатели не делили изменяемое состояние со store.
func clonePipeline(p *domain.Pipeline) *domain.Pipeline {
	cp := *p
	cp.Stages = cloneStages(p.Stages)
	if p.Schedule != nil {
		sched := *p.Schedule
		sched.Triggers = append([]domain.TriggerDef(nil), p.Schedule.Triggers...)
		cp.Schedule = &sched
	}
	return &cp
}

func cloneStages(stages []domain.Stage) []domain.Stage {
	out := make([]domain.Stage, len(stages))
	for i, st := range stages {
		cp := st
		cp.DependsOn = append([]string(nil), st.DependsOn...)
		if st.Config != nil {
			cp.Config = make(map[string]any, len(st.Config))
			for k, v := range st.Config {
				cp.Config[k] = v
			}
		}
		if st.Retry != nil {
			retry := *st.Retry
			retry.RetryableErrors = append([]string(nil), st.Retry.RetryableErrors...)
			cp.Retry = &retry
		}
		if st.Condition != nil {
			cond := *st.Condition
			cp.Condition = &cond
		}
		out[i] = cp
	}
	return out
}
