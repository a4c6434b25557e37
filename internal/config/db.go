package config

import "fmt"

const sslModeDisable = "disable"

// DBConfig hosts the connection settings for the shared Postgres store, per spec
// section 6's "Configuration" table (dbMaxConnections, dbIdleTimeoutMs) plus the
// connection parameters the teacher's own DBConfig carries.
type DBConfig struct {
	User            string `json:"user"`
	Password        string `json:"password"`
	Host            string `json:"host"`
	Port            string `json:"port"`
	Name            string `json:"name"`
	SSLMode         string `json:"ssl_mode"`
	SSLRootCert     string `json:"ssl_root_cert"`
	Migrations      string `json:"migrations"`
	MaxConnections  int    `json:"max_connections"`
	IdleTimeoutMs   int    `json:"idle_timeout_ms"`
}

// DefaultDBConfig returns the default store connection settings.
func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		Host:           "localhost",
		Port:           "5432",
		Name:           "wscli",
		SSLMode:        sslModeDisable,
		Migrations:     "file://internal/store/migrations",
		MaxConnections: 20,
		IdleTimeoutMs:  30000,
	}
}

// Validate implements check.Validatable.
func (c DBConfig) Validate() []error {
	var errs []error
	if c.MaxConnections <= 0 {
		errs = append(errs, fmt.Errorf("db.max_connections must be positive"))
	}
	if c.IdleTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("db.idle_timeout_ms must be non-negative"))
	}
	return errs
}
