package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AssetStatus string

const (
	AssetStatusUnreviewed AssetStatus = "unreviewed"
	AssetStatusApproved   AssetStatus = "approved"
	AssetStatusNeedsWork  AssetStatus = "needs_work"
	AssetStatusRejected   AssetStatus = "rejected"
)

// Asset is one persisted image version. Lineage is a tree over
// ParentAssetID, rooted at an upload or import; Iteration increases
// monotonically within one lineage.
type Asset struct {
	bun.BaseModel `bun:"table:assets"`

	ID            uuid.UUID  `bun:",pk" json:"id"`
	ParentAssetID *uuid.UUID `bun:",nullzero" json:"parent_asset_id"`
	Iteration     int        `bun:",notnull" json:"iteration"`

	Url          string `bun:",notnull" json:"url"`
	ThumbnailUrl string `bun:",nullzero" json:"thumbnail_url,omitempty"`

	// Provenance; nil when the image was imported from an unknown source.
	SourceModel  *string `bun:",nullzero" json:"source_model"`
	SourcePrompt *string `bun:",nullzero" json:"source_prompt"`

	Status AssetStatus `bun:",notnull" json:"status"`

	Analysis   json.RawMessage `bun:"analysis_json,type:jsonb,nullzero" json:"analysis_json,omitempty"`
	Refinement json.RawMessage `bun:"refinement_json,type:jsonb,nullzero" json:"refinement_json,omitempty"`

	Title        string       `bun:",nullzero" json:"title,omitempty"`
	Notes        string       `bun:",nullzero" json:"notes,omitempty"`
	StyleScore   *float64     `bun:",nullzero" json:"style_score,omitempty"`
	RealismScore *float64     `bun:",nullzero" json:"realism_score,omitempty"`
	UpdatedAt    bun.NullTime `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	CreatedAt    bun.NullTime `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (a *Asset) IsRoot() bool {
	return a.ParentAssetID == nil
}
