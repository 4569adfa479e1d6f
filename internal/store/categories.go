package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const categoryColumns = `id, name, sort_order, created_at, updated_at`

func scanCategory(sc rowScanner) (*Category, error) {
	c := &Category{}
	var createdAt, updatedAt string
	if err := sc.Scan(&c.ID, &c.Name, &c.Order, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

// AddCategory inserts c, allocating an id and timestamps when they are unset.
func (s *Store) AddCategory(c Category) (*Category, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	_, err := s.q.Exec(
		`INSERT INTO categories (id, name, sort_order, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Order, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return s.GetCategory(c.ID)
}

func (s *Store) GetCategory(id string) (*Category, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	c, err := scanCategory(s.q.QueryRow(
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

// GetCategoryByName returns the first category with the given name. Names are
// not unique at the storage level.
func (s *Store) GetCategoryByName(name string) (*Category, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	c, err := scanCategory(s.q.QueryRow(
		`SELECT `+categoryColumns+` FROM categories WHERE name = ? ORDER BY sort_order, created_at LIMIT 1`, name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get category %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category %q: %w", name, err)
	}
	return c, nil
}

func (s *Store) ListCategories() ([]Category, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.q.Query(`SELECT ` + categoryColumns + ` FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// UpdateCategory writes name and order. Renaming a category also renames the
// category reference held by its activities.
func (s *Store) UpdateCategory(c Category) error {
	if err := s.ready(); err != nil {
		return err
	}
	if c.ID == "" {
		return fmt.Errorf("update category: %w", ErrMissingID)
	}
	old, err := s.GetCategory(c.ID)
	if err != nil {
		return err
	}

	tx, err := s.begin()
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	res, err := tx.Exec(
		`UPDATE categories SET name = ?, sort_order = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Order, now, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if err := checkAffected(res, "update category", c.ID); err != nil {
		return err
	}
	if old.Name != c.Name {
		if _, err := tx.Exec(
			`UPDATE activities SET category = ?, updated_at = ? WHERE category = ?`,
			c.Name, now, old.Name,
		); err != nil {
			return fmt.Errorf("rename category activities: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteCategory removes the category together with every activity filed
// under its name. Time entries and goals of those activities go with them.
func (s *Store) DeleteCategory(id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	c, err := s.GetCategory(id)
	if err != nil {
		return err
	}

	tx, err := s.begin()
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM activities WHERE category = ?`, c.Name); err != nil {
		return fmt.Errorf("delete category activities: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return tx.Commit()
}
