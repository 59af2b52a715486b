// Package sqlite persists machines, recipes and votes in a SQLite database
// through the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/teabrew/core/machine"
	"github.com/kilianp07/teabrew/core/model"
	"github.com/kilianp07/teabrew/core/recipe"
	"github.com/kilianp07/teabrew/core/vote"
)

var (
	_ machine.Store = (*Store)(nil)
	_ recipe.Store  = (*Store)(nil)
	_ vote.Store    = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS machines (
    id TEXT PRIMARY KEY,
    owner_id INTEGER NOT NULL DEFAULT 0,
    connected INTEGER NOT NULL DEFAULT 0,
    mug_ready INTEGER NOT NULL DEFAULT 0,
    water REAL NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS machines_owner ON machines(owner_id) WHERE owner_id <> 0;
CREATE TABLE IF NOT EXISTS containers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    machine_id TEXT NOT NULL REFERENCES machines(id) ON DELETE CASCADE,
    slot INTEGER NOT NULL,
    tea_id INTEGER,
    ingredient_id INTEGER,
    amount REAL NOT NULL DEFAULT 0,
    UNIQUE(machine_id, slot)
);
CREATE TABLE IF NOT EXISTS recipes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    author_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    tea_id INTEGER NOT NULL,
    herb_amount REAL NOT NULL,
    ingredients TEXT NOT NULL DEFAULT '[]',
    portion REAL NOT NULL,
    brewing_temperature REAL NOT NULL,
    brewing_time REAL NOT NULL,
    mixing_time REAL NOT NULL,
    score REAL NOT NULL DEFAULT 0,
    votes INTEGER NOT NULL DEFAULT 0,
    is_public INTEGER NOT NULL DEFAULT 0,
    is_favourite INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS recipes_author ON recipes(author_id);
CREATE TABLE IF NOT EXISTS votes (
    recipe_id INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
    user_id INTEGER NOT NULL,
    score INTEGER NOT NULL,
    PRIMARY KEY(recipe_id, user_id)
);`

// Store implements the machine, recipe and vote stores on one database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at path and ensures schema.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers and keeps transactions free of
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;` + schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Provision(ctx context.Context, m model.Machine, cs []model.Container) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	var n int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM machines WHERE id = ? OR (owner_id = ? AND owner_id <> 0)`,
		m.ID, m.OwnerID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("machine %s or owner %d: %w", m.ID, m.OwnerID, model.ErrConflict)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO machines (id, owner_id, connected, mug_ready, water) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.OwnerID, m.Connected, m.MugReady, m.Water); err != nil {
		return err
	}
	for _, c := range cs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO containers (machine_id, slot, tea_id, ingredient_id, amount) VALUES (?, ?, ?, ?, ?)`,
			m.ID, c.Slot, nullInt(c.TeaID), nullInt(c.IngredientID), c.Amount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, machineID string) (model.Machine, error) {
	return s.machine(ctx, `WHERE id = ?`, machineID)
}

func (s *Store) ForOwner(ctx context.Context, ownerID int64) (model.Machine, error) {
	m, err := s.machine(ctx, `WHERE owner_id = ?`, ownerID)
	if err != nil {
		return model.Machine{}, fmt.Errorf("machine of owner %d: %w", ownerID, err)
	}
	return m, nil
}

func (s *Store) machine(ctx context.Context, where string, arg any) (model.Machine, error) {
	var m model.Machine
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, connected, mug_ready, water FROM machines `+where, arg).
		Scan(&m.ID, &m.OwnerID, &m.Connected, &m.MugReady, &m.Water)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Machine{}, model.ErrNotFound
	}
	return m, err
}

func (s *Store) UpdateStatus(ctx context.Context, m model.Machine) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE machines SET connected = ?, mug_ready = ?, water = ? WHERE id = ?`,
		m.Connected, m.MugReady, m.Water, m.ID)
	return affected(res, err)
}

func (s *Store) Containers(ctx context.Context, machineID string) ([]model.Container, error) {
	if _, err := s.Get(ctx, machineID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, machine_id, slot, tea_id, ingredient_id, amount
        FROM containers WHERE machine_id = ? ORDER BY slot`, machineID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.Container{}
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *Store) UpdateContainer(ctx context.Context, c model.Container) (model.Container, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE containers SET tea_id = ?, ingredient_id = ?, amount = ? WHERE machine_id = ? AND slot = ?`,
		nullInt(c.TeaID), nullInt(c.IngredientID), c.Amount, c.MachineID, c.Slot)
	if err := affected(res, err); err != nil {
		return model.Container{}, fmt.Errorf("slot %d of %s: %w", c.Slot, c.MachineID, err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, machine_id, slot, tea_id, ingredient_id, amount
        FROM containers WHERE machine_id = ? AND slot = ?`, c.MachineID, c.Slot)
	return scanContainer(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContainer(sc scanner) (model.Container, error) {
	var c model.Container
	var tea, ing sql.NullInt64
	if err := sc.Scan(&c.ID, &c.MachineID, &c.Slot, &tea, &ing, &c.Amount); err != nil {
		return model.Container{}, err
	}
	if tea.Valid {
		c.TeaID = &tea.Int64
	}
	if ing.Valid {
		c.IngredientID = &ing.Int64
	}
	return c, nil
}

const recipeColumns = `id, author_id, name, description, tea_id, herb_amount, ingredients, portion,
    brewing_temperature, brewing_time, mixing_time, score, votes, is_public, is_favourite, updated_at`

func (s *Store) Recipe(ctx context.Context, id int64) (model.Recipe, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id)
	r, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Recipe{}, model.ErrNotFound
	}
	return r, err
}

func (s *Store) Create(ctx context.Context, r model.Recipe) (model.Recipe, error) {
	ing, err := json.Marshal(ingredients(r))
	if err != nil {
		return model.Recipe{}, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO recipes (author_id, name, description, tea_id, herb_amount,
        ingredients, portion, brewing_temperature, brewing_time, mixing_time, score, votes,
        is_public, is_favourite, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.AuthorID, r.Name, r.Description, r.TeaID, r.HerbAmount, string(ing), r.Portion,
		r.BrewingTemperature, r.BrewingTime, r.MixingTime, r.Score, r.Votes,
		r.IsPublic, r.IsFavourite, r.UpdatedAt.UnixNano())
	if err != nil {
		return model.Recipe{}, err
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return model.Recipe{}, err
	}
	return r, nil
}

// Update stores every recipe field except the vote tally.
func (s *Store) Update(ctx context.Context, r model.Recipe) error {
	ing, err := json.Marshal(ingredients(r))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE recipes SET name = ?, description = ?, tea_id = ?,
        herb_amount = ?, ingredients = ?, portion = ?, brewing_temperature = ?, brewing_time = ?,
        mixing_time = ?, is_public = ?, is_favourite = ?, updated_at = ? WHERE id = ?`,
		r.Name, r.Description, r.TeaID, r.HerbAmount, string(ing), r.Portion, r.BrewingTemperature,
		r.BrewingTime, r.MixingTime, r.IsPublic, r.IsFavourite, r.UpdatedAt.UnixNano(), r.ID)
	return affected(res, err)
}

func (s *Store) Delete(ctx context.Context, id int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM votes WHERE recipe_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err = affected(res, err); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CountByAuthor(ctx context.Context, authorID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes WHERE author_id = ?`, authorID).Scan(&n)
	return n, err
}

func (s *Store) ListByAuthor(ctx context.Context, authorID int64) ([]model.Recipe, error) {
	return s.recipes(ctx, `WHERE author_id = ?`, []any{authorID}, nil)
}

// ListPublic narrows by name and tea in SQL and applies the rest of f to
// the decoded rows.
func (s *Store) ListPublic(ctx context.Context, f recipe.Filter) ([]model.Recipe, error) {
	where := []string{`is_public = 1`}
	var args []any
	if f.Name != "" {
		where = append(where, `LOWER(name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(f.Name))+"%")
	}
	if f.TeaID != 0 {
		where = append(where, `tea_id = ?`)
		args = append(args, f.TeaID)
	}
	return s.recipes(ctx, `WHERE `+strings.Join(where, ` AND `), args, f.Match)
}

func (s *Store) recipes(ctx context.Context, where string, args []any, keep func(model.Recipe) bool) ([]model.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recipeColumns+` FROM recipes `+where, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(r) {
			res = append(res, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	recipe.Sort(res)
	return res, nil
}

func scanRecipe(sc scanner) (model.Recipe, error) {
	var r model.Recipe
	var ing string
	var updated int64
	err := sc.Scan(&r.ID, &r.AuthorID, &r.Name, &r.Description, &r.TeaID, &r.HerbAmount, &ing,
		&r.Portion, &r.BrewingTemperature, &r.BrewingTime, &r.MixingTime, &r.Score, &r.Votes,
		&r.IsPublic, &r.IsFavourite, &updated)
	if err != nil {
		return model.Recipe{}, err
	}
	if err := json.Unmarshal([]byte(ing), &r.Ingredients); err != nil {
		return model.Recipe{}, fmt.Errorf("decode ingredients of recipe %d: %w", r.ID, err)
	}
	if updated != 0 {
		r.UpdatedAt = time.Unix(0, updated).UTC()
	}
	return r, nil
}

func (s *Store) Tally(ctx context.Context, recipeID int64) (vote.Tally, error) {
	var t vote.Tally
	err := s.db.QueryRowContext(ctx, `SELECT score, votes FROM recipes WHERE id = ?`, recipeID).Scan(&t.Score, &t.Votes)
	if errors.Is(err, sql.ErrNoRows) {
		return vote.Tally{}, model.ErrNotFound
	}
	return t, err
}

func (s *Store) UserVote(ctx context.Context, recipeID, userID int64) (model.Vote, bool, error) {
	v := model.Vote{RecipeID: recipeID, UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT score FROM votes WHERE recipe_id = ? AND user_id = ?`, recipeID, userID).Scan(&v.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vote{}, false, nil
	}
	if err != nil {
		return model.Vote{}, false, err
	}
	return v, true, nil
}

// ApplyVote upserts the vote and writes the tally in one transaction.
func (s *Store) ApplyVote(ctx context.Context, v model.Vote, t vote.Tally) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, `UPDATE recipes SET score = ?, votes = ? WHERE id = ?`, t.Score, t.Votes, v.RecipeID)
	if err = affected(res, err); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO votes (recipe_id, user_id, score) VALUES (?, ?, ?)
        ON CONFLICT(recipe_id, user_id) DO UPDATE SET score = excluded.score`,
		v.RecipeID, v.UserID, v.Score); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Votes(ctx context.Context, recipeID int64) ([]model.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, score FROM votes WHERE recipe_id = ? ORDER BY user_id`, recipeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []model.Vote{}
	for rows.Next() {
		v := model.Vote{RecipeID: recipeID}
		if err := rows.Scan(&v.UserID, &v.Score); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (s *Store) SetTally(ctx context.Context, recipeID int64, t vote.Tally) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recipes SET score = ?, votes = ? WHERE id = ?`, t.Score, t.Votes, recipeID)
	return affected(res, err)
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func ingredients(r model.Recipe) []model.RecipeIngredient {
	if r.Ingredients == nil {
		return []model.RecipeIngredient{}
	}
	return r.Ingredients
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
