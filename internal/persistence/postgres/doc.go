// Package postgres implements persistence.Store on PostgreSQL through gorm.
//
// Overlapping bookings are serialized per desk with pg_advisory_xact_lock and
// re-checked inside the write transaction. An exclusion constraint over
// (desk_code, tstzrange(start_at, end_at)) backs the re-check up.
package postgres
