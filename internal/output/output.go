// Package output holds the dataset writers. Each writer registers itself
// with the factory under its config type name.
package output

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/factory"
	"NDT7Spectra/internal/model"
)

// Writer type names as used in the config file.
const (
	TypeCSV        = "csv"
	TypeClickHouse = "clickhouse"
	TypeSQLite     = "sqlite"
	TypeNATS       = "nats"
)

func init() {
	factory.RegisterWriter(TypeCSV, func(def config.WriterDef) (model.Writer, error) {
		return NewCSVWriter(def.CSV)
	})
	factory.RegisterWriter(TypeClickHouse, func(def config.WriterDef) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse)
	})
	factory.RegisterWriter(TypeSQLite, func(def config.WriterDef) (model.Writer, error) {
		return NewSQLiteWriter(def.SQLite)
	})
	factory.RegisterWriter(TypeNATS, func(def config.WriterDef) (model.Writer, error) {
		return NewPublisher(def.NATS)
	})
}
