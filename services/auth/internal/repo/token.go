package repo

import (
	"context"

	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GormRepo) AddRefreshToken(ctx context.Context, rt *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(rt).Error
}

// FindActiveRefresh returns the row for jti only if its digest matches and it
// has not expired at now.
func (r *GormRepo) FindActiveRefresh(ctx context.Context, jti, digest string, now int64) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := r.DB.WithContext(ctx).
		Where("jti = ? AND token = ? AND expires_at > ?", jti, digest, now).
		First(&rt).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

func (r *GormRepo) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.BlacklistEntry{}).
		Where("jti = ?", jti).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Revoke blacklists entry and, when refreshDigest is set, deletes the
// matching refresh token of the same user. Both writes share one
// transaction. Re-blacklisting a jti and deleting an absent refresh token are
// no-ops.
func (r *GormRepo) Revoke(ctx context.Context, entry *models.BlacklistEntry, refreshDigest string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error; err != nil {
			return err
		}

		if refreshDigest == "" {
			return nil
		}

		return tx.Where("token = ? AND user_id = ?", refreshDigest, entry.UserID).
			Delete(&models.RefreshToken{}).Error
	})
}

func (r *GormRepo) DeleteExpiredBlacklist(ctx context.Context, now int64) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expiry < ?", now).Delete(&models.BlacklistEntry{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeleteExpiredRefresh(ctx context.Context, now int64) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
