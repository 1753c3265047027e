//go:build integration

package mysql_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"flex_reviews/internal/domain"
	mysqlrepo "flex_reviews/internal/storage/mysql"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pfloat(f float64) *float64 { return &f }

// migrationsDir honours MIGRATIONS_DIR and defaults to the repo's migrations/.
func migrationsDir(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir(t)

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// ---------- the test ----------
func TestRepo_MySQL_UpsertApproveAndQuery(t *testing.T) {
	// Start isolated MySQL; let Docker pick a free host port.
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=flex_reviews",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "flex_reviews")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)

	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// Arrange: seed two reviews
	pub := domain.StatusPublished
	r1 := domain.Review{
		ID:          "hostaway:7453",
		Source:      domain.SourceHostaway,
		ListingID:   "70985",
		ListingName: pstr("Shoreditch Heights"),
		Type:        domain.TypeHostToGuest,
		Channel:     domain.ChannelAirbnb,
		Status:      &pub,
		Categories:  map[string]float64{"cleanliness": 10},
		Text:        pstr("Wonderful"),
		SubmittedAt: "2020-08-21T22:45:14.000Z",
		Author:      &domain.Author{Name: pstr("Shane")},
		ExternalIDs: &domain.ExternalIDs{ReviewID: pstr("7453")},
	}
	r2 := domain.Review{
		ID:          "hostaway:7454",
		Source:      domain.SourceHostaway,
		ListingID:   "70985",
		Type:        domain.TypeGuestToHost,
		Channel:     domain.ChannelBooking,
		Rating:      pfloat(4.5),
		Categories:  map[string]float64{},
		SubmittedAt: "2021-01-01T00:00:00.000Z",
	}
	if err := repo.UpsertReviews(ctx, []domain.Review{r1, r2}); err != nil {
		t.Fatalf("UpsertReviews: %v", err)
	}

	// Approve one, then re-seed: the flag must survive.
	if _, err := repo.SetApproved(ctx, r1.ID, true); err != nil {
		t.Fatalf("SetApproved: %v", err)
	}
	r1.Text = pstr("Wonderful, updated")
	if err := repo.UpsertReviews(ctx, []domain.Review{r1}); err != nil {
		t.Fatalf("UpsertReviews (reseed): %v", err)
	}

	got, err := repo.Get(ctx, r1.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Approved || got.Text == nil || *got.Text != "Wonderful, updated" || got.SubmittedAt != r1.SubmittedAt {
		t.Fatalf("unexpected review after reseed: %+v", got)
	}

	approved, err := repo.ListApproved(ctx)
	if err != nil {
		t.Fatalf("ListApproved: %v", err)
	}
	if len(approved) != 1 || approved[0].ID != r1.ID {
		t.Fatalf("unexpected approved set: %+v", approved)
	}

	// Merge-on-write for a row that does not exist yet.
	r3 := r2
	r3.ID = "hostaway:9999"
	r3.Approved = true
	m, err := repo.UpsertApproval(ctx, r3)
	if err != nil {
		t.Fatalf("UpsertApproval: %v", err)
	}
	if !m.Approved || m.Rating == nil || *m.Rating != 4.5 {
		t.Fatalf("unexpected materialized review: %+v", m)
	}

	states, err := repo.ApprovalStates(ctx)
	if err != nil {
		t.Fatalf("ApprovalStates: %v", err)
	}
	if len(states) != 3 || !states["hostaway:9999"] || states["hostaway:7454"] {
		t.Fatalf("unexpected states: %+v", states)
	}

	if _, err := repo.Get(ctx, "hostaway:missing"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
