package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/framelight/previz-server/internal/db/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrAssetNotFound = errors.New("asset not found")

type IAssetRepository interface {
	Repository[models.Asset]
	WithTx(tx *bun.Tx) IAssetRepository
	ResolveRoot(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	ListLineage(ctx context.Context, id uuid.UUID) ([]models.Asset, error)
	NextIteration(ctx context.Context, id uuid.UUID) (int, error)
	CreateChild(ctx context.Context, parentID uuid.UUID, child *models.Asset) (*models.Asset, error)
	DeleteWithChildren(ctx context.Context, id uuid.UUID) error
	ListByStatus(ctx context.Context, status models.AssetStatus) ([]models.Asset, error)
}

type AssetRepository struct {
	db bun.IDB
}

func NewAssetRepository(db *bun.DB) IAssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) (*models.Asset, error) {
	if asset == nil {
		return nil, fmt.Errorf("asset model is nil")
	}

	if err := r.db.NewInsert().Model(asset).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return asset, nil
}

func (r *AssetRepository) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	var asset models.Asset
	if err := r.db.NewSelect().Model(&asset).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}

	return &asset, nil
}

func (r *AssetRepository) UpdateByID(ctx context.Context, id string, asset *models.Asset) (*models.Asset, error) {
	if asset == nil {
		return nil, fmt.Errorf("asset model is nil")
	}

	if err := r.db.NewUpdate().Model(asset).Where("id = ?", id).Returning("*").Scan(ctx); err != nil {
		return nil, err
	}

	return asset, nil
}

func (r *AssetRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model(&models.Asset{}).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *AssetRepository) WithTx(tx *bun.Tx) IAssetRepository {
	return &AssetRepository{db: tx}
}

// ResolveRoot follows parent pointers until it reaches an asset with no
// parent. A broken parent reference is reported as an error rather than
// silently treating the orphan as a root.
func (r *AssetRepository) ResolveRoot(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	asset, err := r.GetByID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	for asset.ParentAssetID != nil {
		parent, err := r.GetByID(ctx, asset.ParentAssetID.String())
		if err != nil {
			if errors.Is(err, ErrAssetNotFound) {
				return nil, fmt.Errorf("asset %s has dangling parent %s", asset.ID, *asset.ParentAssetID)
			}
			return nil, err
		}
		asset = parent
	}

	return asset, nil
}

// ListLineage returns the root and every descendant-by-parent-pointer of the
// given asset's lineage, ordered by iteration ascending.
func (r *AssetRepository) ListLineage(ctx context.Context, id uuid.UUID) ([]models.Asset, error) {
	root, err := r.ResolveRoot(ctx, id)
	if err != nil {
		return nil, err
	}

	lineage := []models.Asset{*root}
	frontier := []uuid.UUID{root.ID}

	for len(frontier) > 0 {
		var children []models.Asset
		if err := r.db.NewSelect().
			Model(&children).
			Where("parent_asset_id IN (?)", bun.In(frontier)).
			Scan(ctx); err != nil {
			return nil, err
		}

		if len(children) == 0 {
			break
		}

		frontier = frontier[:0]
		for _, child := range children {
			frontier = append(frontier, child.ID)
		}
		lineage = append(lineage, children...)
	}

	sortByIteration(lineage)
	return lineage, nil
}

// NextIteration computes max(iteration) over the asset's whole lineage plus
// one. Callers that insert a new member should prefer CreateChild, which does
// the same computation inside a transaction.
func (r *AssetRepository) NextIteration(ctx context.Context, id uuid.UUID) (int, error) {
	lineage, err := r.ListLineage(ctx, id)
	if err != nil {
		return 0, err
	}

	return maxIteration(lineage) + 1, nil
}

// CreateChild inserts a new lineage member with iteration = lineage max + 1.
// The read and the insert run in one transaction so two concurrent runs
// against the same lineage cannot allocate the same iteration number.
func (r *AssetRepository) CreateChild(ctx context.Context, parentID uuid.UUID, child *models.Asset) (*models.Asset, error) {
	if child == nil {
		return nil, fmt.Errorf("asset model is nil")
	}

	db, ok := r.db.(*bun.DB)
	if !ok {
		return nil, fmt.Errorf("create child requires a root db handle")
	}

	err := db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		repo := r.WithTx(&tx)

		next, err := repo.NextIteration(ctx, parentID)
		if err != nil {
			return err
		}

		child.ParentAssetID = &parentID
		child.Iteration = next
		if child.ID == uuid.Nil {
			child.ID = uuid.Must(uuid.NewRandom())
		}
		if child.Status == "" {
			child.Status = models.AssetStatusUnreviewed
		}

		return tx.NewInsert().Model(child).Returning("*").Scan(ctx)
	})
	if err != nil {
		return nil, err
	}

	return child, nil
}

// DeleteWithChildren removes the asset's direct children and then the asset
// itself. The cascade is a single level deep: grandchildren survive with a
// dangling parent pointer. Matches the shipped product behavior.
func (r *AssetRepository) DeleteWithChildren(ctx context.Context, id uuid.UUID) error {
	db, ok := r.db.(*bun.DB)
	if !ok {
		return fmt.Errorf("delete with children requires a root db handle")
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model(&models.Asset{}).
			Where("parent_asset_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewDelete().
			Model(&models.Asset{}).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

func (r *AssetRepository) ListByStatus(ctx context.Context, status models.AssetStatus) ([]models.Asset, error) {
	var assets []models.Asset
	if err := r.db.NewSelect().Model(&assets).Where("status = ?", status).Scan(ctx); err != nil {
		return nil, err
	}

	return assets, nil
}

func maxIteration(assets []models.Asset) int {
	max := 0
	for _, a := range assets {
		if a.Iteration > max {
			max = a.Iteration
		}
	}
	return max
}

func sortByIteration(assets []models.Asset) {
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Iteration < assets[j].Iteration
	})
}
