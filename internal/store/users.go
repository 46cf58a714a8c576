package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"campus-events/internal/actor"
	"campus-events/internal/models"
)

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	if _, err := s.db.NewInsert().Model(u).Exec(ctx); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.NewSelect().Model(&u).Where("u.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.NewSelect().
		Model(&u).
		Where("LOWER(u.email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	if err := s.db.NewSelect().Model(&users).Order("u.created_at DESC", "u.id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role actor.Role) error {
	res, err := s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("role = ?", role).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update role of user %s: %w", id, err)
	}
	if n, _ := affected(res); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) UpdateUserName(ctx context.Context, id, name string) error {
	res, err := s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("name = ?", name).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update name of user %s: %w", id, err)
	}
	if n, _ := affected(res); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) ProfileFor(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := s.db.NewSelect().Model(&p).Where("up.user_id = ?", userID).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile inserts the profile or replaces every detail of an existing one.
func (s *Store) UpsertProfile(ctx context.Context, p *models.UserProfile) error {
	_, err := s.db.NewInsert().
		Model(p).
		On("CONFLICT (user_id) DO UPDATE").
		Set("department = EXCLUDED.department").
		Set("student_id = EXCLUDED.student_id").
		Set("graduation_year = EXCLUDED.graduation_year").
		Set("position = EXCLUDED.position").
		Set("bio = EXCLUDED.bio").
		Set("contact_info = EXCLUDED.contact_info").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert profile of user %s: %w", p.UserID, err)
	}
	return nil
}

func (s *Store) ListDepartments(ctx context.Context) ([]models.Department, error) {
	depts := make([]models.Department, 0)
	if err := s.db.NewSelect().Model(&depts).Order("d.name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return depts, nil
}

func (s *Store) DepartmentExists(ctx context.Context, id int64) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*models.Department)(nil)).
		Where("d.id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check department %d: %w", id, err)
	}
	return exists, nil
}

// InsertDepartment is used by seeding and tests; departments are otherwise
// static reference data.
func (s *Store) InsertDepartment(ctx context.Context, d *models.Department) error {
	if _, err := s.db.NewInsert().Model(d).Exec(ctx); err != nil {
		return fmt.Errorf("insert department %q: %w", d.Name, err)
	}
	return nil
}
