package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/framelight/previz-server/internal/db/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	// One shared in-memory database per test, one connection so
	// transactions serialize at the pool instead of hitting SQLITE_BUSY.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	if _, err := db.NewCreateTable().
		Model((*models.Asset)(nil)).
		IfNotExists().
		Exec(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}

	return db
}

func seedRoot(t *testing.T, repo IAssetRepository) *models.Asset {
	t.Helper()

	root, err := repo.Create(context.Background(), &models.Asset{
		ID:        uuid.Must(uuid.NewRandom()),
		Iteration: 1,
		Url:       "http://files/root.png",
		Status:    models.AssetStatusUnreviewed,
		Title:     "root",
	})
	if err != nil {
		t.Fatalf("seed root: %v", err)
	}
	return root
}

func TestCreateChildAllocatesNextIteration(t *testing.T) {
	repo := NewAssetRepository(setupTestDB(t))
	ctx := context.Background()
	root := seedRoot(t, repo)

	first, err := repo.CreateChild(ctx, root.ID, &models.Asset{Url: "http://files/v2.png"})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	if first.Iteration != 2 {
		t.Errorf("first child iteration = %d, want 2", first.Iteration)
	}

	second, err := repo.CreateChild(ctx, root.ID, &models.Asset{Url: "http://files/v3.png"})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	if second.Iteration != 3 {
		t.Errorf("second child iteration = %d, want 3", second.Iteration)
	}

	// A grandchild continues the lineage count; it does not restart at
	// parent iteration + 1.
	grand, err := repo.CreateChild(ctx, first.ID, &models.Asset{Url: "http://files/v4.png"})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	if grand.Iteration != 4 {
		t.Errorf("grandchild iteration = %d, want 4", grand.Iteration)
	}
}

func TestCreateChildConcurrentIterationsUnique(t *testing.T) {
	repo := NewAssetRepository(setupTestDB(t))
	ctx := context.Background()
	root := seedRoot(t, repo)

	const workers = 6

	var wg sync.WaitGroup
	results := make([]*models.Asset, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.CreateChild(ctx, root.ID, &models.Asset{
				Url: fmt.Sprintf("http://files/c%d.png", i),
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("CreateChild %d: %v", i, errs[i])
		}
		if seen[results[i].Iteration] {
			t.Errorf("iteration %d allocated twice", results[i].Iteration)
		}
		seen[results[i].Iteration] = true
	}

	for want := 2; want <= workers+1; want++ {
		if !seen[want] {
			t.Errorf("iteration %d was never allocated", want)
		}
	}
}

func TestDeleteWithChildrenKeepsGrandchildren(t *testing.T) {
	repo := NewAssetRepository(setupTestDB(t))
	ctx := context.Background()
	root := seedRoot(t, repo)

	child, err := repo.CreateChild(ctx, root.ID, &models.Asset{Url: "http://files/v2.png"})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	grand, err := repo.CreateChild(ctx, child.ID, &models.Asset{Url: "http://files/v3.png"})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}

	if err := repo.DeleteWithChildren(ctx, root.ID); err != nil {
		t.Fatalf("DeleteWithChildren: %v", err)
	}

	for _, id := range []uuid.UUID{root.ID, child.ID} {
		if _, err := repo.GetByID(ctx, id.String()); !errors.Is(err, ErrAssetNotFound) {
			t.Errorf("GetByID(%s) err = %v, want ErrAssetNotFound", id, err)
		}
	}

	// The cascade is a single level deep.
	if _, err := repo.GetByID(ctx, grand.ID.String()); err != nil {
		t.Errorf("grandchild should survive, got %v", err)
	}
}

func TestListLineageFromLeaf(t *testing.T) {
	repo := NewAssetRepository(setupTestDB(t))
	ctx := context.Background()
	root := seedRoot(t, repo)

	child, err := repo.CreateChild(ctx, root.ID, &models.Asset{Url: "http://files/v2.png"})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}
	grand, err := repo.CreateChild(ctx, child.ID, &models.Asset{Url: "http://files/v3.png"})
	if err != nil {
		t.Fatalf("CreateChild: %v", err)
	}

	lineage, err := repo.ListLineage(ctx, grand.ID)
	if err != nil {
		t.Fatalf("ListLineage: %v", err)
	}

	if len(lineage) != 3 {
		t.Fatalf("lineage length = %d, want 3", len(lineage))
	}
	for i, want := range []uuid.UUID{root.ID, child.ID, grand.ID} {
		if lineage[i].ID != want {
			t.Errorf("lineage[%d] = %s, want %s", i, lineage[i].ID, want)
		}
		if lineage[i].Iteration != i+1 {
			t.Errorf("lineage[%d].Iteration = %d, want %d", i, lineage[i].Iteration, i+1)
		}
	}
}
