package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BerylCAtieno/milo-api/internal/db"
	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

func newSQLiteRepo(t *testing.T) PatientRepository {
	t.Helper()

	conn, err := db.NewSQLiteDB(filepath.Join(t.TempDir(), "milo.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.RunMigrations(conn); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return NewSQLiteRepository(conn)
}

func newFirestoreRepo(t *testing.T) PatientRepository {
	t.Helper()

	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	client, err := NewFirestoreClient(context.Background(), "milo-test")
	if err != nil {
		t.Fatalf("NewFirestoreClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &firestoreRepository{client: client, collection: "patients-" + utils.GenerateID()}
}

func newPatient(name, team string) *models.Patient {
	p := &models.Patient{
		ID:        utils.GenerateID(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if team != "" {
		p.TeamID = &team
	}
	return p
}

func newEntry(values map[string]float64) *models.LabEntry {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.LabEntry{
		ID:        utils.GenerateID(),
		Date:      models.EntryDate(now),
		Values:    values,
		CreatedAt: now,
	}
}

func TestSQLiteRepository(t *testing.T) {
	runRepositoryTests(t, newSQLiteRepo)
}

func TestFirestoreRepository(t *testing.T) {
	runRepositoryTests(t, newFirestoreRepo)
}

func runRepositoryTests(t *testing.T, newRepo func(*testing.T) PatientRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		gender := "female"
		p := newPatient("Jane Doe", "team-a")
		p.Gender = &gender

		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}

		got, err := repo.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Name != "Jane Doe" || got.Gender == nil || *got.Gender != "female" {
			t.Errorf("got %+v", got)
		}
		if got.DOB != nil {
			t.Errorf("DOB = %v, want nil", got.DOB)
		}
		if len(got.Labs) != 0 {
			t.Errorf("labs = %v, want empty", got.Labs)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("append keeps order", func(t *testing.T) {
		repo := newRepo(t)
		p := newPatient("Jane Doe", "")
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}

		first := newEntry(map[string]float64{"estradiol": 41})
		second := newEntry(map[string]float64{"progesterone": 6.8})
		second.IsPrimary = true

		for _, e := range []*models.LabEntry{first, second} {
			ok, err := repo.AppendLabEntry(ctx, p.ID, e)
			if err != nil || !ok {
				t.Fatalf("AppendLabEntry = %v, %v", ok, err)
			}
		}

		got, err := repo.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if len(got.Labs) != 2 {
			t.Fatalf("labs = %d, want 2", len(got.Labs))
		}
		if got.Labs[0].ID != first.ID || got.Labs[1].ID != second.ID {
			t.Errorf("labs out of order: %s, %s", got.Labs[0].ID, got.Labs[1].ID)
		}
		if got.Labs[1].Values["progesterone"] != 6.8 {
			t.Errorf("values = %v", got.Labs[1].Values)
		}
		if latest := got.LatestPrimaryLab(); latest == nil || latest.ID != second.ID {
			t.Errorf("LatestPrimaryLab = %+v", latest)
		}
	})

	t.Run("append is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		p := newPatient("Jane Doe", "")
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}

		e := newEntry(map[string]float64{"tsh": 1.8})
		if ok, err := repo.AppendLabEntry(ctx, p.ID, e); err != nil || !ok {
			t.Fatalf("first append = %v, %v", ok, err)
		}
		if ok, err := repo.AppendLabEntry(ctx, p.ID, e); err != nil || ok {
			t.Fatalf("second append = %v, %v, want false, nil", ok, err)
		}

		got, _ := repo.GetByID(ctx, p.ID)
		if len(got.Labs) != 1 {
			t.Errorf("labs = %d, want 1", len(got.Labs))
		}
	})

	t.Run("unknown markers dropped on read", func(t *testing.T) {
		repo := newRepo(t)
		p := newPatient("Jane Doe", "")
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}

		e := newEntry(map[string]float64{"tsh": 1.8, "cortisol": 18})
		if _, err := repo.AppendLabEntry(ctx, p.ID, e); err != nil {
			t.Fatalf("AppendLabEntry: %v", err)
		}

		got, err := repo.GetByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		values := got.Labs[0].Values
		if len(values) != 1 || values["tsh"] != 1.8 {
			t.Errorf("values = %v, want only tsh", values)
		}
	})

	t.Run("append to missing patient", func(t *testing.T) {
		repo := newRepo(t)
		if _, err := repo.AppendLabEntry(ctx, "missing", newEntry(nil)); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("list filters", func(t *testing.T) {
		repo := newRepo(t)
		for _, p := range []*models.Patient{
			newPatient("Jane Doe", "team-a"),
			newPatient("John Roe", "team-a"),
			newPatient("Janet Poe", "team-b"),
		} {
			if err := repo.Create(ctx, p); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}

		all, err := repo.List(ctx, models.PatientFilter{})
		if err != nil || len(all) != 3 {
			t.Fatalf("List all = %d, %v", len(all), err)
		}

		teamA, _ := repo.List(ctx, models.PatientFilter{TeamID: "team-a"})
		if len(teamA) != 2 {
			t.Errorf("team-a = %d, want 2", len(teamA))
		}

		jan, _ := repo.List(ctx, models.PatientFilter{Query: "jan"})
		if len(jan) != 2 || jan[0].Name != "Jane Doe" || jan[1].Name != "Janet Poe" {
			t.Errorf("query jan = %+v", jan)
		}
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		p := newPatient("Jane Doe", "")
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := repo.AppendLabEntry(ctx, p.ID, newEntry(map[string]float64{"psa": 0.9})); err != nil {
			t.Fatalf("AppendLabEntry: %v", err)
		}

		if err := repo.Delete(ctx, p.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := repo.GetByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByID after delete err = %v", err)
		}
		if err := repo.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete err = %v, want ErrNotFound", err)
		}
	})
}
