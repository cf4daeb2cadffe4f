package knowledgebase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/studio/internal/models"
	"github.com/aura-webinar/studio/pkg/database/dbtest"
)

func TestRepositoryBonusNeedsProduct(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	webinarID := dbtest.Webinar(t, pool, dbtest.User(t, pool, "kb@example.com"))
	repo := NewRepository(pool)

	_, err := repo.AddBonus(ctx, webinarID, models.Bonus{Name: "Templates"})
	assert.ErrorIs(t, err, ErrNoProduct)

	_, err = repo.PutProduct(ctx, webinarID, &models.Product{Name: "Course"})
	require.NoError(t, err)
	b, err := repo.AddBonus(ctx, webinarID, models.Bonus{Name: "Templates", Value: "$99"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, b.ProductID)

	p, err := repo.Product(ctx, webinarID)
	require.NoError(t, err)
	require.Len(t, p.Bonuses, 1)

	_, err = repo.PutProduct(ctx, webinarID, nil)
	require.NoError(t, err)
	var left int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM bonuses`).Scan(&left))
	assert.Zero(t, left)
}

func TestRepositorySaveAndReorder(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	webinarID := dbtest.Webinar(t, pool, dbtest.User(t, pool, "topics@example.com"))
	repo := NewRepository(pool)

	kb := models.KnowledgeBase{WebinarSummary: models.WebinarSummary{Name: "Scale", Topics: []string{"A", "B"}}}
	data := sampleData()
	require.NoError(t, repo.Save(ctx, webinarID, kb, &data))

	got, err := repo.Get(ctx, webinarID)
	require.NoError(t, err)
	assert.Equal(t, kb.WebinarSummary, got.WebinarSummary)

	topics, err := repo.Topics(ctx, webinarID)
	require.NoError(t, err)
	require.Len(t, topics, 2)

	reordered, err := repo.ReorderTopics(ctx, webinarID, []uuid.UUID{topics[1].ID, topics[0].ID})
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", reordered[0].Name)
	assert.Equal(t, 1, reordered[1].OrderIndex)

	_, err = repo.ReorderTopics(ctx, webinarID, []uuid.UUID{topics[0].ID, topics[0].ID})
	assert.ErrorIs(t, err, ErrTopicOrder)
}
