package nutrition

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	pronanats "github.com/prona-platform/prona/internal/nats"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory Store. InTx serializes transactions and restores
// the previous state when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	foods    map[uuid.UUID]*Food
	days     map[uuid.UUID]*DayAggregate
	meals    map[uuid.UUID]*Meal
	profiles map[uuid.UUID]*Profile
	seq      int

	locks   int
	failOn  string
	commits int
}

func newMemStore() *memStore {
	return &memStore{
		foods:    map[uuid.UUID]*Food{},
		days:     map[uuid.UUID]*DayAggregate{},
		meals:    map[uuid.UUID]*Meal{},
		profiles: map[uuid.UUID]*Profile{},
	}
}

type memSnapshot struct {
	foods    map[uuid.UUID]Food
	days     map[uuid.UUID]DayAggregate
	meals    map[uuid.UUID]Meal
	profiles map[uuid.UUID]Profile
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		foods:    map[uuid.UUID]Food{},
		days:     map[uuid.UUID]DayAggregate{},
		meals:    map[uuid.UUID]Meal{},
		profiles: map[uuid.UUID]Profile{},
	}
	for k, v := range s.foods {
		snap.foods[k] = *v
	}
	for k, v := range s.days {
		snap.days[k] = *v
	}
	for k, v := range s.meals {
		snap.meals[k] = *v
	}
	for k, v := range s.profiles {
		snap.profiles[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foods = map[uuid.UUID]*Food{}
	for k, v := range snap.foods {
		s.foods[k] = &v
	}
	s.days = map[uuid.UUID]*DayAggregate{}
	for k, v := range snap.days {
		s.days[k] = &v
	}
	s.meals = map[uuid.UUID]*Meal{}
	for k, v := range snap.meals {
		s.meals[k] = &v
	}
	s.profiles = map[uuid.UUID]*Profile{}
	for k, v := range snap.profiles {
		s.profiles[k] = &v
	}
}

func (s *memStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	s.commits++
	return nil
}

func (s *memStore) fail(op string) error {
	if s.failOn == op {
		return errInjected
	}
	return nil
}

func (s *memStore) GetOrCreateFood(_ context.Context, c *Food) (*Food, bool, error) {
	if err := s.fail("GetOrCreateFood"); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.foods {
		if strings.EqualFold(f.Name, c.Name) {
			cp := *f
			return &cp, false, nil
		}
	}
	f := *c
	f.ID = uuid.New()
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	s.foods[f.ID] = &f
	cp := f
	return &cp, true, nil
}

func (s *memStore) GetFood(_ context.Context, id uuid.UUID) (*Food, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.foods[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *memStore) UpdateFoodNutrients(_ context.Context, f *Food) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.foods[f.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Calories, stored.Protein, stored.Carbs, stored.Fat = f.Calories, f.Protein, f.Carbs, f.Fat
	return nil
}

func (s *memStore) SearchFoods(_ context.Context, query, category string, limit int) ([]Food, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Food{}
	for _, f := range s.foods {
		if query != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(query)) {
			continue
		}
		if category != "" && f.Category != category {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) GetOrCreateDay(ctx context.Context, userID uuid.UUID, date time.Time) (*DayAggregate, error) {
	if err := s.fail("GetOrCreateDay"); err != nil {
		return nil, err
	}
	if d, err := s.GetDay(ctx, userID, date); err == nil {
		return d, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &DayAggregate{ID: uuid.New(), UserID: userID, Date: DateOnly(date), UpdatedAt: time.Now()}
	s.days[d.ID] = d
	cp := *d
	return &cp, nil
}

func (s *memStore) GetDay(_ context.Context, userID uuid.UUID, date time.Time) (*DayAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.days {
		if d.UserID == userID && d.Date.Equal(DateOnly(date)) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) GetDayByID(_ context.Context, dayID uuid.UUID) (*DayAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.days[dayID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) ListDays(_ context.Context, userID uuid.UUID, from, to time.Time) ([]DayAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to = DateOnly(from), DateOnly(to)
	out := []DayAggregate{}
	for _, d := range s.days {
		if d.UserID != userID || d.Date.Before(from) || d.Date.After(to) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memStore) LockDay(_ context.Context, dayID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.days[dayID]; !ok {
		return ErrNotFound
	}
	s.locks++
	return nil
}

func (s *memStore) UpdateDayTotals(_ context.Context, dayID uuid.UUID, t Totals) error {
	if err := s.fail("UpdateDayTotals"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.days[dayID]
	if !ok {
		return ErrNotFound
	}
	d.setTotals(t)
	return nil
}

func (s *memStore) CreateMeal(_ context.Context, m *Meal) error {
	if err := s.fail("CreateMeal"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.seq++
	m.CreatedAt = time.Unix(int64(s.seq), 0)
	cp := *m
	cp.Food = nil
	s.meals[m.ID] = &cp
	return nil
}

func (s *memStore) GetMeal(_ context.Context, userID, mealID uuid.UUID) (*Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meals[mealID]
	if !ok {
		return nil, ErrNotFound
	}
	if d, ok := s.days[m.DayID]; !ok || d.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) UpdateMeal(_ context.Context, m *Meal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meals[m.ID]; !ok {
		return ErrNotFound
	}
	cp := *m
	cp.Food = nil
	s.meals[m.ID] = &cp
	return nil
}

func (s *memStore) DeleteMeal(_ context.Context, mealID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meals[mealID]; !ok {
		return ErrNotFound
	}
	delete(s.meals, mealID)
	return nil
}

func (s *memStore) ListMeals(_ context.Context, dayID uuid.UUID) ([]Meal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Meal{}
	for _, m := range s.meals {
		if m.DayID != dayID {
			continue
		}
		cp := *m
		if f, ok := s.foods[m.FoodID]; ok {
			fc := *f
			cp.Food = &fc
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) ListMealLines(_ context.Context, dayID uuid.UUID) ([]MealLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lines []MealLine
	for _, m := range s.meals {
		if m.DayID != dayID {
			continue
		}
		f := s.foods[m.FoodID]
		lines = append(lines, MealLine{
			Quantity: m.Quantity,
			Calories: f.Calories,
			Protein:  f.Protein,
			Carbs:    f.Carbs,
			Fat:      f.Fat,
		})
	}
	return lines, nil
}

func (s *memStore) GetProfile(_ context.Context, userID uuid.UUID) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) UpsertProfile(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

// helpers shared by the package tests

func (s *memStore) dayTotals(userID uuid.UUID, date time.Time) Totals {
	d, err := s.GetDay(context.Background(), userID, date)
	if err != nil {
		return Totals{}
	}
	return d.Totals()
}

func (s *memStore) foodCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.foods)
}

func (s *memStore) mealCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.meals)
}

func (s *memStore) addFood(name string, calories float64, protein, carbs, fat *float64) *Food {
	f, _, _ := s.GetOrCreateFood(context.Background(), &Food{
		Name: name, Calories: calories, Protein: protein, Carbs: carbs, Fat: fat,
		Category: defaultCategory, ServingSize: defaultServingSize,
	})
	return f
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
	totals []float64
}

func (r *recordingEvents) PublishDayTotals(_ context.Context, evt pronanats.DayTotalsUpdated) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt.Source)
	r.totals = append(r.totals, evt.Calories)
	return nil
}
