package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/financebot/core/domain"
	"github.com/m3rciful/financebot/core/logger"
)

// SQLStore implements Store on top of the profiles and profile_answers tables.
// Queries are written with ? placeholders and rebound for the driver in use.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQL wraps an already migrated database handle.
func NewSQL(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

type profileRow struct {
	UserID           int64         `db:"user_id"`
	Name             string        `db:"name"`
	RegisteredAt     int64         `db:"registered_at"`
	AnswersUpdatedAt sql.NullInt64 `db:"answers_updated_at"`
}

type answerRow struct {
	Ordinal     int             `db:"ordinal"`
	Step        string          `db:"step"`
	Kind        string          `db:"kind"`
	TextValue   sql.NullString  `db:"text_value"`
	NumberValue sql.NullFloat64 `db:"number_value"`
}

const (
	selectProfileSQL = `SELECT user_id, name, registered_at, answers_updated_at FROM profiles WHERE user_id = ?`
	selectAnswersSQL = `SELECT ordinal, step, kind, text_value, number_value FROM profile_answers WHERE user_id = ? ORDER BY ordinal`
	insertProfileSQL = `INSERT INTO profiles (user_id, name, registered_at) VALUES (?, ?, ?) ON CONFLICT (user_id) DO NOTHING`
	touchProfileSQL  = `UPDATE profiles SET answers_updated_at = ? WHERE user_id = ?`
	clearAnswersSQL  = `DELETE FROM profile_answers WHERE user_id = ?`
	insertAnswerSQL  = `INSERT INTO profile_answers (user_id, ordinal, step, kind, text_value, number_value) VALUES (?, ?, ?, ?, ?, ?)`
)

// GetProfile loads a profile with its answers in step order.
func (s *SQLStore) GetProfile(ctx context.Context, userID int64) (domain.Profile, error) {
	return loadProfile(ctx, s.db, userID)
}

// RegisterIfAbsent relies on the primary key so concurrent calls insert at most one row.
func (s *SQLStore) RegisterIfAbsent(ctx context.Context, id domain.Identity) (RegisterResult, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(insertProfileSQL), id.ID, id.DisplayName(), s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert profile: rows affected: %w", err)
	}
	if n == 0 {
		return AlreadyExists, nil
	}
	return Created, nil
}

// Commit overwrites the answers of userID inside one transaction.
func (s *SQLStore) Commit(ctx context.Context, userID int64, answers domain.Answers) (profile domain.Profile, err error) {
	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("begin commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
		logger.Store.Debug("commit",
			slog.String("event", "store.commit"),
			slog.Int64("user_id", userID),
			slog.Int("count", len(answers)),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		)
	}()

	res, err := tx.ExecContext(ctx, tx.Rebind(touchProfileSQL), s.now().UnixMilli(), userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if n, rowsErr := res.RowsAffected(); rowsErr != nil {
		return domain.Profile{}, fmt.Errorf("update profile: rows affected: %w", rowsErr)
	} else if n == 0 {
		return domain.Profile{}, ErrNotFound
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(clearAnswersSQL), userID); err != nil {
		return domain.Profile{}, fmt.Errorf("clear answers: %w", err)
	}
	insert := tx.Rebind(insertAnswerSQL)
	for i, ans := range answers {
		var text sql.NullString
		var number sql.NullFloat64
		if ans.Value.Kind == domain.KindNumber {
			number = sql.NullFloat64{Float64: ans.Value.Number, Valid: true}
		} else {
			text = sql.NullString{String: ans.Value.Text, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, insert, userID, i, ans.Step, string(ans.Value.Kind), text, number); err != nil {
			return domain.Profile{}, fmt.Errorf("insert answer %s: %w", ans.Step, err)
		}
	}
	if profile, err = loadProfile(ctx, tx, userID); err != nil {
		return domain.Profile{}, err
	}
	if err = tx.Commit(); err != nil {
		return domain.Profile{}, fmt.Errorf("commit: %w", err)
	}
	return profile, nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func loadProfile(ctx context.Context, q queryer, userID int64) (domain.Profile, error) {
	var row profileRow
	if err := sqlx.GetContext(ctx, q, &row, q.Rebind(selectProfileSQL), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Profile{}, ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	var rows []answerRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(selectAnswersSQL), userID); err != nil {
		return domain.Profile{}, fmt.Errorf("select answers: %w", err)
	}

	p := domain.Profile{
		Identity:     domain.Identity{ID: row.UserID, Name: row.Name},
		RegisteredAt: time.UnixMilli(row.RegisteredAt).UTC(),
	}
	if row.AnswersUpdatedAt.Valid {
		p.AnswersUpdatedAt = time.UnixMilli(row.AnswersUpdatedAt.Int64).UTC()
	}
	for _, r := range rows {
		kind, err := domain.ParseKind(r.Kind)
		if err != nil {
			return domain.Profile{}, fmt.Errorf("answer %s: %w", r.Step, err)
		}
		v := domain.TextValue(r.TextValue.String)
		if kind == domain.KindNumber {
			v = domain.NumberValue(r.NumberValue.Float64)
		}
		p.Answers = append(p.Answers, domain.Answer{Step: r.Step, Value: v})
	}
	return p, nil
}
