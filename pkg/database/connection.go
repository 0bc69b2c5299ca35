package database

import (
	"database/sql"
	"fmt"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
)

type Connection struct {
	User string
	Pass string
	Host string
	Port int
}

func (c Connection) DSN() string {
	config := mysql.NewConfig()
	config.User = c.User
	config.Passwd = c.Pass
	if strings.HasPrefix(c.Host, "/") {
		config.Net = "unix"
		config.Addr = c.Host
	} else {
		config.Net = "tcp"
		config.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	config.ParseTime = true
	config.MultiStatements = true
	return config.FormatDSN()
}

// Open returns a pooled handle sized for n concurrent worker sessions.
func (c Connection) Open(workers int) (*sql.DB, error) {
	db, err := sql.Open("mysql", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to database: %w", err)
	}
	if workers > 0 {
		db.SetMaxOpenConns(workers + 1)
	}
	return db, nil
}
