package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/rohits-web03/meetingvault/internal/models"
	"gorm.io/gorm"
)

// MeetingRepository persists meeting records in a single table.
type MeetingRepository struct {
	db *gorm.DB
}

func NewMeetingRepository(db *gorm.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// Insert assigns ID, CreatedAt and UpdatedAt on m.
func (r *MeetingRepository) Insert(ctx context.Context, m *models.Meeting) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("%w: insert meeting: %w", models.ErrPersistence, err)
	}
	return nil
}

func (r *MeetingRepository) Get(ctx context.Context, id uint) (models.Meeting, bool, error) {
	var m models.Meeting
	err := r.db.WithContext(ctx).First(&m, id).Error
	switch {
	case err == nil:
		return m, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.Meeting{}, false, nil
	default:
		return models.Meeting{}, false, fmt.Errorf("%w: get meeting %d: %w", models.ErrPersistence, id, err)
	}
}

func (r *MeetingRepository) List(ctx context.Context) ([]models.Meeting, error) {
	meetings := make([]models.Meeting, 0)
	if err := r.db.WithContext(ctx).Order("id").Find(&meetings).Error; err != nil {
		return nil, fmt.Errorf("%w: list meetings: %w", models.ErrPersistence, err)
	}
	return meetings, nil
}

// Update writes only the metadata columns set in u and refreshes updated_at.
// URL columns are never touched.
func (r *MeetingRepository) Update(ctx context.Context, id uint, u models.MeetingUpdate) (models.Meeting, bool, error) {
	var updated models.Meeting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Meeting
		if err := tx.First(&current, id).Error; err != nil {
			return err
		}
		if !u.IsEmpty() {
			cols := u.Columns()
			cols["updated_at"] = tx.NowFunc()
			if err := tx.Model(&current).Updates(cols).Error; err != nil {
				return err
			}
		}
		return tx.First(&updated, id).Error
	})
	switch {
	case err == nil:
		return updated, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.Meeting{}, false, nil
	default:
		return models.Meeting{}, false, fmt.Errorf("%w: update meeting %d: %w", models.ErrPersistence, id, err)
	}
}

func (r *MeetingRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Meeting{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("%w: delete meeting %d: %w", models.ErrPersistence, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *MeetingRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Meeting{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: delete all meetings: %w", models.ErrPersistence, res.Error)
	}
	return res.RowsAffected, nil
}

// ResetIDSequence rewinds the primary key generator. On an empty table the
// next insert receives id 1; otherwise every dialect continues from max(id)+1.
// Not safe against concurrent inserts.
func (r *MeetingRepository) ResetIDSequence(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	var err error
	switch db.Dialector.Name() {
	case "mysql":
		err = db.Exec("ALTER TABLE meetings AUTO_INCREMENT = 1").Error
	case "postgres":
		err = db.Exec("SELECT setval(pg_get_serial_sequence('meetings', 'id'), COALESCE((SELECT MAX(id) FROM meetings), 0) + 1, false)").Error
	case "sqlite":
		// without AUTOINCREMENT the rowid allocator already continues from max(id)+1
		// and sqlite_sequence does not exist
		if !db.Migrator().HasTable("sqlite_sequence") {
			return nil
		}
		err = db.Exec("UPDATE sqlite_sequence SET seq = (SELECT COALESCE(MAX(id), 0) FROM meetings) WHERE name = 'meetings'").Error
	default:
		err = fmt.Errorf("id sequence reset not supported for %s", db.Dialector.Name())
	}
	if err != nil {
		return fmt.Errorf("%w: reset meeting id sequence: %w", models.ErrPersistence, err)
	}
	return nil
}
