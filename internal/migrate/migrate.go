package migrate

import (
	"context"

	"reservation-service/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateExtensions       bool // pgcrypto
	CreateChecks           bool // CHECK-constraint'ы
	CreateIndexes          bool // индексы и частичные UNIQUE
	CreateExclusions       bool // EXCLUDE для пересечения диапазонов политик депозита
	CreateFKsViaSQL        bool // FK через Exec после AutoMigrate
	CreateUpdatedAtTrigger bool // триггеры updated_at
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateExtensions:       true,
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateExclusions:       true,
		CreateFKsViaSQL:        true,
		CreateUpdatedAtTrigger: true,
	}
}

type step struct {
	name string
	sql  string
}

func run(ctx context.Context, db *gorm.DB, log *zap.Logger, steps []step) error {
	for _, s := range steps {
		if err := db.WithContext(ctx).Exec(s.sql).Error; err != nil {
			log.Error(s.name, zap.Error(err))
			return err
		}
	}
	return nil
}

func MigrateReservationDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы бронирований")

	if opt.CreateExtensions {
		log.Info("Создание расширений PostgreSQL")
		if err := run(ctx, db, log, []step{
			{"pgcrypto error", `CREATE EXTENSION IF NOT EXISTS pgcrypto`},
		}); err != nil {
			return err
		}
		log.Info("Расширения созданы")
	}

	log.Info("Создание таблиц: room_categories, inventory_nights, special_days, deposit_policies, bookings, idempotency_records")
	if err := db.WithContext(ctx).AutoMigrate(
		&models.RoomCategory{},
		&models.InventoryNight{},
		&models.SpecialDay{},
		&models.DepositPolicy{},
		&models.Booking{},
		&models.IdempotencyRecord{},
	); err != nil {
		log.Error("AutoMigrate error", zap.Error(err))
		return err
	}
	log.Info("Таблицы созданы")

	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггеров updated_at")
		if err := run(ctx, db, log, []step{{"triggers error", `
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_room_categories_updated ON room_categories;
CREATE TRIGGER trg_room_categories_updated BEFORE UPDATE ON room_categories
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_special_days_updated ON special_days;
CREATE TRIGGER trg_special_days_updated BEFORE UPDATE ON special_days
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_deposit_policies_updated ON deposit_policies;
CREATE TRIGGER trg_deposit_policies_updated BEFORE UPDATE ON deposit_policies
FOR EACH ROW EXECUTE FUNCTION set_updated_at();

DROP TRIGGER IF EXISTS trg_bookings_updated ON bookings;
CREATE TRIGGER trg_bookings_updated BEFORE UPDATE ON bookings
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`}}); err != nil {
			return err
		}
		log.Info("Триггеры созданы")
	}

	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")
		if err := run(ctx, db, log, checks); err != nil {
			return err
		}
		log.Info("CHECK-и созданы")
	}

	if opt.CreateIndexes {
		log.Info("Создание индексов и уникальностей")
		if err := run(ctx, db, log, indexes); err != nil {
			return err
		}
		log.Info("Индексы созданы")
	}

	if opt.CreateExclusions {
		log.Info("Создание EXCLUDE-ограничений")
		if err := run(ctx, db, log, exclusions); err != nil {
			return err
		}
		log.Info("EXCLUDE-ограничения созданы")
	}

	if opt.CreateFKsViaSQL {
		log.Info("Создание внешних ключей")
		if err := run(ctx, db, log, foreignKeys); err != nil {
			return err
		}
		log.Info("Внешние ключи созданы")
	}

	log.Info("Миграция базы бронирований успешно завершена")
	return nil
}

var checks = []step{
	{"chk room_categories", `
ALTER TABLE room_categories
	DROP CONSTRAINT IF EXISTS chk_room_categories_values,
	ADD CONSTRAINT chk_room_categories_values
	CHECK (total_rooms >= 0 AND base_price_cents >= 0 AND char_length(currency_code) = 3);
`},
	// остаток ночи не может уйти в минус; верхняя граница total_rooms держится кодом записи категории
	{"chk inventory_nights", `
ALTER TABLE inventory_nights
	DROP CONSTRAINT IF EXISTS chk_inventory_nights_non_negative,
	ADD CONSTRAINT chk_inventory_nights_non_negative
	CHECK (available_rooms >= 0);
`},
	{"chk special_days.kind", `
ALTER TABLE special_days
	DROP CONSTRAINT IF EXISTS chk_special_days_kind_allowed,
	ADD CONSTRAINT chk_special_days_kind_allowed
	CHECK (kind IN ('BLOCKED','SPECIAL_RATE'));
`},
	// SPECIAL_RATE: ровно одно из multiplier / fixed_price_cents; BLOCKED: ни одного
	{"chk special_days.override", `
ALTER TABLE special_days
	DROP CONSTRAINT IF EXISTS chk_special_days_override,
	ADD CONSTRAINT chk_special_days_override
	CHECK (
		(kind = 'BLOCKED' AND multiplier IS NULL AND fixed_price_cents IS NULL)
		OR (kind = 'SPECIAL_RATE' AND (multiplier IS NULL) <> (fixed_price_cents IS NULL))
	);
`},
	{"chk special_days.values", `
ALTER TABLE special_days
	DROP CONSTRAINT IF EXISTS chk_special_days_values,
	ADD CONSTRAINT chk_special_days_values
	CHECK (
		(multiplier IS NULL OR multiplier BETWEEN 0.1 AND 10.0)
		AND (fixed_price_cents IS NULL OR fixed_price_cents >= 0)
	);
`},
	{"chk deposit_policies.range", `
ALTER TABLE deposit_policies
	DROP CONSTRAINT IF EXISTS chk_deposit_policies_range,
	ADD CONSTRAINT chk_deposit_policies_range
	CHECK (min_rooms >= 1 AND max_rooms >= min_rooms);
`},
	{"chk deposit_policies.value", `
ALTER TABLE deposit_policies
	DROP CONSTRAINT IF EXISTS chk_deposit_policies_value,
	ADD CONSTRAINT chk_deposit_policies_value
	CHECK (
		(type = 'PERCENT' AND value > 0 AND value <= 100)
		OR (type = 'FIXED' AND value > 0 AND value = trunc(value))
	);
`},
	{"chk bookings", `
ALTER TABLE bookings
	DROP CONSTRAINT IF EXISTS chk_bookings_values,
	ADD CONSTRAINT chk_bookings_values
	CHECK (
		rooms_booked > 0
		AND end_date > start_date
		AND total_price_cents >= 0
		AND (deposit_cents IS NULL OR deposit_cents >= 0)
		AND (deposit_required = (deposit_cents IS NOT NULL))
	);
`},
	{"chk bookings.status", `
ALTER TABLE bookings
	DROP CONSTRAINT IF EXISTS chk_bookings_status_allowed,
	ADD CONSTRAINT chk_bookings_status_allowed
	CHECK (status IN ('PROVISIONAL','CONFIRMED','CANCELLED'));
`},
	{"chk idempotency_records.hash", `
ALTER TABLE idempotency_records
	DROP CONSTRAINT IF EXISTS chk_idempotency_records_hash,
	ADD CONSTRAINT chk_idempotency_records_hash
	CHECK (char_length(request_hash) = 64);
`},
}

var indexes = []step{
	// не больше одного активного правила на (дату, категорию); NULL-категория считается отдельной областью
	{"ux special_days active scope", `
CREATE UNIQUE INDEX IF NOT EXISTS ux_special_days_active_scope
ON special_days (date, COALESCE(room_category_id, '00000000-0000-0000-0000-000000000000'::uuid))
WHERE is_active;
`},
	{"ix bookings category dates", `
CREATE INDEX IF NOT EXISTS ix_bookings_category_dates
ON bookings (room_category_id, start_date, end_date);
`},
	{"ix bookings user created", `
CREATE INDEX IF NOT EXISTS ix_bookings_user_created
ON bookings (user_id, created_at DESC);
`},
}

var exclusions = []step{
	{"excl deposit_policies active range", `
ALTER TABLE deposit_policies
	DROP CONSTRAINT IF EXISTS excl_deposit_policies_active_range,
	ADD CONSTRAINT excl_deposit_policies_active_range
	EXCLUDE USING gist (int4range(min_rooms, max_rooms, '[]') WITH &&)
	WHERE (is_active);
`},
}

var foreignKeys = []step{
	{"fk inventory_nights.room_category_id", `
ALTER TABLE inventory_nights
  DROP CONSTRAINT IF EXISTS fk_inventory_nights_room_category,
  ADD CONSTRAINT fk_inventory_nights_room_category
    FOREIGN KEY (room_category_id) REFERENCES room_categories(id) ON DELETE CASCADE;
`},
	{"fk special_days.room_category_id", `
ALTER TABLE special_days
  DROP CONSTRAINT IF EXISTS fk_special_days_room_category,
  ADD CONSTRAINT fk_special_days_room_category
    FOREIGN KEY (room_category_id) REFERENCES room_categories(id) ON DELETE CASCADE;
`},
	{"fk bookings.room_category_id", `
ALTER TABLE bookings
  DROP CONSTRAINT IF EXISTS fk_bookings_room_category,
  ADD CONSTRAINT fk_bookings_room_category
    FOREIGN KEY (room_category_id) REFERENCES room_categories(id) ON DELETE RESTRICT;
`},
	// ключ вставляется раньше брони в той же транзакции, поэтому проверка отложена до коммита
	{"fk idempotency_records.booking_id", `
ALTER TABLE idempotency_records
  DROP CONSTRAINT IF EXISTS fk_idempotency_records_booking,
  ADD CONSTRAINT fk_idempotency_records_booking
    FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE RESTRICT
    DEFERRABLE INITIALLY DEFERRED;
`},
}
