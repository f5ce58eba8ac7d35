package store

import (
	"context"

	"gorm.io/gorm"
)

// BlocklistGate consults mint_blocklist directly on every call — spec §4.8
// is explicit that this gate keeps "no cache (reads are index-backed)",
// since a cached view would let a freshly-expired or freshly-added block
// go unnoticed until the next refresh. A mint is blocked iff a row matches
// mint and (expires_at IS NULL OR expires_at > now).
type BlocklistGate struct {
	db *gorm.DB
}

// NewBlocklistGate returns a gate that queries db's mint_blocklist table.
func NewBlocklistGate(db *gorm.DB) *BlocklistGate {
	return &BlocklistGate{db: db}
}

// IsBlocked reports whether mint is currently blocked as of now.
func (g *BlocklistGate) IsBlocked(ctx context.Context, mint string, now int64) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&MintBlocklistRecord{}).
		Where("mint = ? AND (expires_at IS NULL OR expires_at > ?)", mint, now).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
