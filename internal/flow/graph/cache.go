package graph

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"garita/internal/flow/models"
	id "garita/pkg/domain"
)

// QuestionSource lists a questionnaire's questions with their choices.
type QuestionSource interface {
	ListQuestions(ctx context.Context, questionnaireID id.QuestionnaireID) ([]models.Question, error)
}

// Cache builds graphs on first use and shares the read-only result across
// requests. singleflight collapses concurrent builds of the same
// questionnaire so a cold cache never fans out duplicate store reads.
type Cache struct {
	source QuestionSource

	mu     sync.RWMutex
	graphs map[id.QuestionnaireID]*Graph
	group  singleflight.Group
}

func NewCache(source QuestionSource) *Cache {
	return &Cache{
		source: source,
		graphs: make(map[id.QuestionnaireID]*Graph),
	}
}

// Get returns the cached graph for the questionnaire, building it if needed.
func (c *Cache) Get(ctx context.Context, questionnaireID id.QuestionnaireID) (*Graph, error) {
	c.mu.RLock()
	g, ok := c.graphs[questionnaireID]
	c.mu.RUnlock()
	if ok {
		return g, nil
	}

	v, err, _ := c.group.Do(questionnaireID.String(), func() (any, error) {
		questions, err := c.source.ListQuestions(ctx, questionnaireID)
		if err != nil {
			return nil, err
		}
		built, err := Build(questionnaireID, questions)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.graphs[questionnaireID] = built
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Graph), nil
}

// Invalidate drops a cached graph. Called when a questionnaire forks a new
// version.
func (c *Cache) Invalidate(questionnaireID id.QuestionnaireID) {
	c.mu.Lock()
	delete(c.graphs, questionnaireID)
	c.mu.Unlock()
}
