package nutrition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries are the persistence operations the nutrition services need.
// Every method works the same inside or outside a transaction.
type Queries interface {
	// GetOrCreateFood finds a food by case-insensitive name or inserts candidate.
	GetOrCreateFood(ctx context.Context, candidate *Food) (food *Food, created bool, err error)
	GetFood(ctx context.Context, id uuid.UUID) (*Food, error)
	UpdateFoodNutrients(ctx context.Context, food *Food) error
	SearchFoods(ctx context.Context, query, category string, limit int) ([]Food, error)

	GetOrCreateDay(ctx context.Context, userID uuid.UUID, date time.Time) (*DayAggregate, error)
	GetDay(ctx context.Context, userID uuid.UUID, date time.Time) (*DayAggregate, error)
	GetDayByID(ctx context.Context, dayID uuid.UUID) (*DayAggregate, error)
	ListDays(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]DayAggregate, error)
	LockDay(ctx context.Context, dayID uuid.UUID) error
	UpdateDayTotals(ctx context.Context, dayID uuid.UUID, totals Totals) error

	CreateMeal(ctx context.Context, meal *Meal) error
	GetMeal(ctx context.Context, userID, mealID uuid.UUID) (*Meal, error)
	UpdateMeal(ctx context.Context, meal *Meal) error
	DeleteMeal(ctx context.Context, mealID uuid.UUID) error
	ListMeals(ctx context.Context, dayID uuid.UUID) ([]Meal, error)
	ListMealLines(ctx context.Context, dayID uuid.UUID) ([]MealLine, error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpsertProfile(ctx context.Context, p *Profile) error
}

// Store adds transactions to Queries. fn's Queries are bound to the
// transaction, which commits when fn returns nil.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	*queries
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new nutrition store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{queries: &queries{db: pool}, pool: pool}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}
	return nil
}

type queries struct {
	db dbtx
}

const foodColumns = `id, name, calories, protein, carbs, fat, category, serving_size, created_at, updated_at`

func scanFood(row pgx.Row) (*Food, error) {
	var f Food
	err := row.Scan(&f.ID, &f.Name, &f.Calories, &f.Protein, &f.Carbs, &f.Fat,
		&f.Category, &f.ServingSize, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (q *queries) GetOrCreateFood(ctx context.Context, c *Food) (*Food, bool, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	// The unique index on lower(name) makes concurrent creators converge on one row.
	f, err := scanFood(q.db.QueryRow(ctx,
		`INSERT INTO foods (id, name, calories, protein, carbs, fat, category, serving_size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT ((lower(name))) DO NOTHING
		 RETURNING `+foodColumns,
		c.ID, c.Name, c.Calories, c.Protein, c.Carbs, c.Fat, c.Category, c.ServingSize,
	))
	if err == nil {
		return f, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("inserting food: %w", err)
	}

	f, err = scanFood(q.db.QueryRow(ctx,
		`SELECT `+foodColumns+` FROM foods WHERE lower(name) = lower($1)`, c.Name))
	if err != nil {
		return nil, false, fmt.Errorf("getting food by name: %w", err)
	}
	return f, false, nil
}

func (q *queries) GetFood(ctx context.Context, id uuid.UUID) (*Food, error) {
	f, err := scanFood(q.db.QueryRow(ctx, `SELECT `+foodColumns+` FROM foods WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting food: %w", err)
	}
	return f, nil
}

func (q *queries) UpdateFoodNutrients(ctx context.Context, f *Food) error {
	_, err := q.db.Exec(ctx,
		`UPDATE foods SET calories = $2, protein = $3, carbs = $4, fat = $5, updated_at = NOW()
		 WHERE id = $1`,
		f.ID, f.Calories, f.Protein, f.Carbs, f.Fat,
	)
	if err != nil {
		return fmt.Errorf("updating food nutrients: %w", err)
	}
	return nil
}

func (q *queries) SearchFoods(ctx context.Context, query, category string, limit int) ([]Food, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+foodColumns+`
		 FROM foods
		 WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		   AND ($2 = '' OR category = $2)
		 ORDER BY name
		 LIMIT $3`,
		query, category, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching foods: %w", err)
	}
	defer rows.Close()

	foods := []Food{}
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning food: %w", err)
		}
		foods = append(foods, *f)
	}
	return foods, rows.Err()
}

const dayColumns = `id, user_id, date, total_calories, total_protein, total_carbs, total_fat, updated_at`

func scanDay(row pgx.Row) (*DayAggregate, error) {
	var d DayAggregate
	err := row.Scan(&d.ID, &d.UserID, &d.Date, &d.TotalCalories, &d.TotalProtein,
		&d.TotalCarbs, &d.TotalFat, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (q *queries) GetOrCreateDay(ctx context.Context, userID uuid.UUID, date time.Time) (*DayAggregate, error) {
	_, err := q.db.Exec(ctx,
		`INSERT INTO daily_intakes (id, user_id, date)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, date) DO NOTHING`,
		uuid.New(), userID, DateOnly(date),
	)
	if err != nil {
		return nil, fmt.Errorf("creating day: %w", err)
	}
	return q.GetDay(ctx, userID, date)
}

func (q *queries) GetDay(ctx context.Context, userID uuid.UUID, date time.Time) (*DayAggregate, error) {
	d, err := scanDay(q.db.QueryRow(ctx,
		`SELECT `+dayColumns+` FROM daily_intakes WHERE user_id = $1 AND date = $2`,
		userID, DateOnly(date),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting day: %w", err)
	}
	return d, nil
}

func (q *queries) GetDayByID(ctx context.Context, dayID uuid.UUID) (*DayAggregate, error) {
	d, err := scanDay(q.db.QueryRow(ctx, `SELECT `+dayColumns+` FROM daily_intakes WHERE id = $1`, dayID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting day by id: %w", err)
	}
	return d, nil
}

func (q *queries) ListDays(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]DayAggregate, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+dayColumns+`
		 FROM daily_intakes
		 WHERE user_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date`,
		userID, DateOnly(from), DateOnly(to),
	)
	if err != nil {
		return nil, fmt.Errorf("listing days: %w", err)
	}
	defer rows.Close()

	days := []DayAggregate{}
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning day: %w", err)
		}
		days = append(days, *d)
	}
	return days, rows.Err()
}

func (q *queries) LockDay(ctx context.Context, dayID uuid.UUID) error {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, `SELECT id FROM daily_intakes WHERE id = $1 FOR NO KEY UPDATE`, dayID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (q *queries) UpdateDayTotals(ctx context.Context, dayID uuid.UUID, t Totals) error {
	_, err := q.db.Exec(ctx,
		`UPDATE daily_intakes
		 SET total_calories = $2, total_protein = $3, total_carbs = $4, total_fat = $5, updated_at = NOW()
		 WHERE id = $1`,
		dayID, t.Calories, t.Protein, t.Carbs, t.Fat,
	)
	return err
}

func (q *queries) CreateMeal(ctx context.Context, m *Meal) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := q.db.QueryRow(ctx,
		`INSERT INTO meals (id, daily_intake_id, food_id, quantity, calories, meal_time, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		m.ID, m.DayID, m.FoodID, m.Quantity, m.Calories, m.Slot, m.Notes,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting meal: %w", err)
	}
	return nil
}

const mealColumns = `m.id, m.daily_intake_id, m.food_id, m.quantity, m.calories, m.meal_time, m.notes, m.created_at`

func scanMeal(row pgx.Row) (*Meal, error) {
	var m Meal
	if err := row.Scan(&m.ID, &m.DayID, &m.FoodID, &m.Quantity, &m.Calories, &m.Slot, &m.Notes, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (q *queries) GetMeal(ctx context.Context, userID, mealID uuid.UUID) (*Meal, error) {
	m, err := scanMeal(q.db.QueryRow(ctx,
		`SELECT `+mealColumns+`
		 FROM meals m
		 JOIN daily_intakes d ON d.id = m.daily_intake_id
		 WHERE m.id = $1 AND d.user_id = $2`,
		mealID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting meal: %w", err)
	}
	return m, nil
}

func (q *queries) UpdateMeal(ctx context.Context, m *Meal) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE meals SET food_id = $2, quantity = $3, calories = $4, meal_time = $5, notes = $6
		 WHERE id = $1`,
		m.ID, m.FoodID, m.Quantity, m.Calories, m.Slot, m.Notes,
	)
	if err != nil {
		return fmt.Errorf("updating meal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *queries) DeleteMeal(ctx context.Context, mealID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM meals WHERE id = $1`, mealID)
	if err != nil {
		return fmt.Errorf("deleting meal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *queries) ListMeals(ctx context.Context, dayID uuid.UUID) ([]Meal, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+mealColumns+`,
		        f.id, f.name, f.calories, f.protein, f.carbs, f.fat, f.category, f.serving_size, f.created_at, f.updated_at
		 FROM meals m
		 JOIN foods f ON f.id = m.food_id
		 WHERE m.daily_intake_id = $1
		 ORDER BY m.created_at`,
		dayID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing meals: %w", err)
	}
	defer rows.Close()

	meals := []Meal{}
	for rows.Next() {
		var m Meal
		var f Food
		if err := rows.Scan(&m.ID, &m.DayID, &m.FoodID, &m.Quantity, &m.Calories, &m.Slot, &m.Notes, &m.CreatedAt,
			&f.ID, &f.Name, &f.Calories, &f.Protein, &f.Carbs, &f.Fat, &f.Category, &f.ServingSize, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning meal: %w", err)
		}
		m.Food = &f
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

func (q *queries) ListMealLines(ctx context.Context, dayID uuid.UUID) ([]MealLine, error) {
	rows, err := q.db.Query(ctx,
		`SELECT m.quantity, f.calories, f.protein, f.carbs, f.fat
		 FROM meals m
		 JOIN foods f ON f.id = m.food_id
		 WHERE m.daily_intake_id = $1`,
		dayID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []MealLine
	for rows.Next() {
		var l MealLine
		if err := rows.Scan(&l.Quantity, &l.Calories, &l.Protein, &l.Carbs, &l.Fat); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (q *queries) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	err := q.db.QueryRow(ctx,
		`SELECT user_id, age, weight_kg, height_cm, goal, activity_level, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Age, &p.WeightKg, &p.HeightCm, &p.Goal, &p.ActivityLevel, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &p, nil
}

func (q *queries) UpsertProfile(ctx context.Context, p *Profile) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO user_profiles (user_id, age, weight_kg, height_cm, goal, activity_level)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE
		 SET age = EXCLUDED.age, weight_kg = EXCLUDED.weight_kg, height_cm = EXCLUDED.height_cm,
		     goal = EXCLUDED.goal, activity_level = EXCLUDED.activity_level, updated_at = NOW()
		 RETURNING updated_at`,
		p.UserID, p.Age, p.WeightKg, p.HeightCm, p.Goal, p.ActivityLevel,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}
