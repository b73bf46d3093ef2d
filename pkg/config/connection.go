package config

import (
	"fmt"
	"os"
)

// ConnectionParams carries the relational store credentials. Values are
// sourced from the process environment, never from the configuration
// document. A missing variable surfaces later as a connection failure
// from the driver, not as a config error.
type ConnectionParams struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// ConnectionParamsFromEnv reads DB_USER, DB_PASSWORD, DB_HOST, DB_PORT
// and DB_NAME from the environment.
func ConnectionParamsFromEnv() ConnectionParams {
	return ConnectionParams{
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Database: os.Getenv("DB_NAME"),
	}
}

// ServerDSN returns a go-sql-driver/mysql DSN without a database, for
// operations that need server-level privileges such as CREATE DATABASE.
func (p ConnectionParams) ServerDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/", p.User, p.Password, p.Host, p.Port)
}

// DSN returns a go-sql-driver/mysql DSN scoped to the configured database.
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", p.User, p.Password, p.Host, p.Port, p.Database)
}
