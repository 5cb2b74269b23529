// Package database provides a GORM-backed database wrapper and a
// storage.Storage implementation that keeps objects (checkpoints) in a
// single table.
//
// The driver is sqlite (gorm.io/driver/sqlite); Config.DSN is the database
// file path. Importing the package registers the "sql" storage provider;
// pass a *database.Config as the provider config to storage.New.
package database
