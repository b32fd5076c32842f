package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/m3rciful/financebot/core/database"
	"github.com/m3rciful/financebot/core/domain"
	"github.com/m3rciful/financebot/migrations"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "profiles.db")}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := database.RunMigrations(ctx, cfg, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := NewSQL(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
}

func TestRegisterIfAbsent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id := domain.Identity{ID: 42, Name: "Alice"}

		res, err := s.RegisterIfAbsent(ctx, id)
		if err != nil || res != Created {
			t.Fatalf("first register = %v, %v", res, err)
		}
		res, err = s.RegisterIfAbsent(ctx, domain.Identity{ID: 42, Name: "Renamed"})
		if err != nil || res != AlreadyExists {
			t.Fatalf("second register = %v, %v", res, err)
		}

		p, err := s.GetProfile(ctx, 42)
		if err != nil {
			t.Fatalf("get profile: %v", err)
		}
		if p.Identity.Name != "Alice" {
			t.Fatalf("name = %q, want original", p.Identity.Name)
		}
		if p.RegisteredAt.IsZero() || p.HasAnswers() {
			t.Fatalf("unexpected profile: %+v", p)
		}
	})
}

func TestRegisterRace(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const callers = 8
		results := make(chan RegisterResult, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.RegisterIfAbsent(ctx, domain.Identity{ID: 7, Name: "Bob"})
				if err != nil {
					t.Errorf("register: %v", err)
					return
				}
				results <- res
			}()
		}
		wg.Wait()
		close(results)

		var created, existing int
		for res := range results {
			switch res {
			case Created:
				created++
			case AlreadyExists:
				existing++
			}
		}
		if created != 1 || existing != callers-1 {
			t.Fatalf("created=%d existing=%d", created, existing)
		}
	})
}

func TestGetProfileNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		if _, err := s.GetProfile(context.Background(), 999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestCommitOverwrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if _, err := s.Commit(ctx, 5, domain.Answers{{Step: "a", Value: domain.TextValue("x")}}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("commit unregistered err = %v", err)
		}
		if _, err := s.RegisterIfAbsent(ctx, domain.Identity{ID: 5, Name: "Eve"}); err != nil {
			t.Fatalf("register: %v", err)
		}

		first := domain.Answers{
			{Step: "category1", Value: domain.TextValue("Food")},
			{Step: "expenses1", Value: domain.NumberValue(120.5)},
			{Step: "category2", Value: domain.TextValue("Transport")},
		}
		if _, err := s.Commit(ctx, 5, first); err != nil {
			t.Fatalf("commit: %v", err)
		}
		second := domain.Answers{
			{Step: "category1", Value: domain.TextValue("Rent")},
			{Step: "expenses1", Value: domain.NumberValue(40)},
		}
		got, err := s.Commit(ctx, 5, second)
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		if got.AnswersUpdatedAt.IsZero() {
			t.Fatal("answers timestamp not set")
		}

		p, err := s.GetProfile(ctx, 5)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(p.Answers) != len(second) {
			t.Fatalf("answers = %+v, want overwrite", p.Answers)
		}
		for i, ans := range second {
			if p.Answers[i] != ans {
				t.Fatalf("answer %d = %+v, want %+v", i, p.Answers[i], ans)
			}
		}
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_, _ = s.RegisterIfAbsent(ctx, domain.Identity{ID: 1})
	answers := domain.Answers{{Step: "a", Value: domain.TextValue("x")}}
	if _, err := s.Commit(ctx, 1, answers); err != nil {
		t.Fatalf("commit: %v", err)
	}
	answers[0].Value = domain.TextValue("mutated")
	p, _ := s.GetProfile(ctx, 1)
	if v, _ := p.Answers.Get("a"); v.Text != "x" {
		t.Fatalf("stored answers aliased caller slice: %q", v.Text)
	}
}

func TestMemoryStoreFailCommit(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	_, _ = s.RegisterIfAbsent(ctx, domain.Identity{ID: 1})
	boom := errors.New("disk gone")
	s.SetFailCommit(boom)
	if _, err := s.Commit(ctx, 1, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	s.SetFailCommit(nil)
	if _, err := s.Commit(ctx, 1, nil); err != nil {
		t.Fatalf("commit after reset: %v", err)
	}
}
