package knowledgebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-webinar/studio/internal/models"
)

var (
	// ErrNoProduct is returned when a bonus is added to a webinar without a product.
	ErrNoProduct = errors.New("a bonus requires a product")
	// ErrTopicOrder is returned when a reorder does not name every topic exactly once.
	ErrTopicOrder = errors.New("topic order must list every topic exactly once")
)

// Repository persists knowledge bases, topics, products and bonuses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a knowledge base repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the webinar's knowledge base, or nil when none has been saved.
func (r *Repository) Get(ctx context.Context, webinarID uuid.UUID) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	err := r.pool.QueryRow(ctx, `SELECT campaign_outline, audience_data, ultimate_client_goals,
		webinar_value_proposition, webinar_summary FROM knowledge_bases WHERE webinar_id = $1`, webinarID).
		Scan(&kb.CampaignOutline, &kb.AudienceData, &kb.UltimateClientGoals, &kb.WebinarValueProposition, &kb.WebinarSummary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	return &kb, nil
}

// Save upserts the knowledge base and, when data is given, replaces the
// questionnaire topics, product and bonuses it was generated from. Everything
// is written in one transaction.
func (r *Repository) Save(ctx context.Context, webinarID uuid.UUID, kb models.KnowledgeBase, data *models.WebinarData) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	sections := make([][]byte, 0, 5)
	for _, v := range []any{kb.CampaignOutline, kb.AudienceData, kb.UltimateClientGoals, kb.WebinarValueProposition, kb.WebinarSummary} {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode knowledge base: %w", err)
		}
		sections = append(sections, b)
	}
	const q = `INSERT INTO knowledge_bases (webinar_id, campaign_outline, audience_data, ultimate_client_goals,
			webinar_value_proposition, webinar_summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (webinar_id) DO UPDATE SET
			campaign_outline = EXCLUDED.campaign_outline,
			audience_data = EXCLUDED.audience_data,
			ultimate_client_goals = EXCLUDED.ultimate_client_goals,
			webinar_value_proposition = EXCLUDED.webinar_value_proposition,
			webinar_summary = EXCLUDED.webinar_summary,
			updated_at = NOW()`
	if _, err := tx.Exec(ctx, q, webinarID, sections[0], sections[1], sections[2], sections[3], sections[4]); err != nil {
		return fmt.Errorf("save knowledge base: %w", err)
	}

	if data != nil {
		if err := replaceTopics(ctx, tx, webinarID, data.Topics); err != nil {
			return err
		}
		var product *models.Product
		if data.Product != nil {
			product = &models.Product{
				Name:         data.Product.Name,
				Description:  data.Product.Description,
				RegularPrice: data.Product.RegularPrice,
				SpecialPrice: data.Product.SpecialPrice,
			}
			for _, b := range data.Bonuses {
				product.Bonuses = append(product.Bonuses, models.Bonus{Name: b.Name, Description: b.Description, Value: b.Price})
			}
		}
		if _, err := putProduct(ctx, tx, webinarID, product); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func replaceTopics(ctx context.Context, tx pgx.Tx, webinarID uuid.UUID, topics []models.TopicInput) error {
	if _, err := tx.Exec(ctx, `DELETE FROM topics WHERE webinar_id = $1`, webinarID); err != nil {
		return fmt.Errorf("clear topics: %w", err)
	}
	batch := &pgx.Batch{}
	i := 0
	for _, t := range topics {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		batch.Queue(`INSERT INTO topics (webinar_id, name, description, order_index) VALUES ($1, $2, $3, $4)`,
			webinarID, name, strings.TrimSpace(t.Description), i)
		i++
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert topics: %w", err)
	}
	return nil
}

// Topics returns the webinar's topics in order.
func (r *Repository) Topics(ctx context.Context, webinarID uuid.UUID) ([]models.Topic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, webinar_id, name, description, order_index, created_at, updated_at
		FROM topics WHERE webinar_id = $1 ORDER BY order_index`, webinarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Topic{}
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.WebinarID, &t.Name, &t.Description, &t.OrderIndex, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ReorderTopics assigns order_index by position in ids, which must name every
// topic of the webinar exactly once.
func (r *Repository) ReorderTopics(ctx context.Context, webinarID uuid.UUID, ids []uuid.UUID) ([]models.Topic, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM topics WHERE webinar_id = $1`, webinarID).Scan(&count); err != nil {
		return nil, err
	}
	if count != len(ids) {
		return nil, ErrTopicOrder
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for i, id := range ids {
		if seen[id] {
			return nil, ErrTopicOrder
		}
		seen[id] = true
		tag, err := tx.Exec(ctx, `UPDATE topics SET order_index = $3, updated_at = NOW() WHERE id = $1 AND webinar_id = $2`, id, webinarID, i)
		if err != nil {
			return nil, fmt.Errorf("reorder topics: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrTopicOrder
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.Topics(ctx, webinarID)
}

// Product returns the webinar's product with its bonuses, or nil.
func (r *Repository) Product(ctx context.Context, webinarID uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.pool.QueryRow(ctx, `SELECT id, webinar_id, name, description, regular_price, special_price, created_at, updated_at
		FROM products WHERE webinar_id = $1`, webinarID).
		Scan(&p.ID, &p.WebinarID, &p.Name, &p.Description, &p.RegularPrice, &p.SpecialPrice, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, name, description, value, created_at
		FROM bonuses WHERE product_id = $1 ORDER BY created_at, id`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	p.Bonuses = []models.Bonus{}
	for rows.Next() {
		var b models.Bonus
		if err := rows.Scan(&b.ID, &b.ProductID, &b.Name, &b.Description, &b.Value, &b.CreatedAt); err != nil {
			return nil, err
		}
		p.Bonuses = append(p.Bonuses, b)
	}
	return &p, rows.Err()
}

// PutProduct replaces the product and its bonuses. A nil product removes it,
// and its bonuses with it.
func (r *Repository) PutProduct(ctx context.Context, webinarID uuid.UUID, p *models.Product) (*models.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)
	if _, err := putProduct(ctx, tx, webinarID, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.Product(ctx, webinarID)
}

func putProduct(ctx context.Context, tx pgx.Tx, webinarID uuid.UUID, p *models.Product) (uuid.UUID, error) {
	if p == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM products WHERE webinar_id = $1`, webinarID); err != nil {
			return uuid.Nil, fmt.Errorf("delete product: %w", err)
		}
		return uuid.Nil, nil
	}
	var id uuid.UUID
	err := tx.QueryRow(ctx, `INSERT INTO products (webinar_id, name, description, regular_price, special_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (webinar_id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
			regular_price = EXCLUDED.regular_price, special_price = EXCLUDED.special_price, updated_at = NOW()
		RETURNING id`, webinarID, p.Name, p.Description, p.RegularPrice, p.SpecialPrice).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("save product: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM bonuses WHERE product_id = $1`, id); err != nil {
		return uuid.Nil, fmt.Errorf("clear bonuses: %w", err)
	}
	for _, b := range p.Bonuses {
		if _, err := tx.Exec(ctx, `INSERT INTO bonuses (product_id, name, description, value) VALUES ($1, $2, $3, $4)`,
			id, b.Name, b.Description, b.Value); err != nil {
			return uuid.Nil, fmt.Errorf("insert bonus: %w", err)
		}
	}
	return id, nil
}

// AddBonus attaches a bonus to the webinar's product. It fails with
// ErrNoProduct when the webinar has none.
func (r *Repository) AddBonus(ctx context.Context, webinarID uuid.UUID, b models.Bonus) (*models.Bonus, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO bonuses (product_id, name, description, value)
		SELECT id, $2, $3, $4 FROM products WHERE webinar_id = $1
		RETURNING id, product_id, created_at`, webinarID, b.Name, b.Description, b.Value).
		Scan(&b.ID, &b.ProductID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoProduct
	}
	if err != nil {
		return nil, fmt.Errorf("add bonus: %w", err)
	}
	return &b, nil
}
