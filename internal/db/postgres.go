// Package db provides PostgreSQL availability probing for container startup.
package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDatabase is the administrative database every server has
	DefaultDatabase = "postgres"
	// DefaultSSLMode matches libpq's default
	DefaultSSLMode = "prefer"
	// ConnectTimeout bounds a single connection attempt
	ConnectTimeout = 5 * time.Second

	applicationName = "wait_for_psql"
)

// PgxConnIface is the part of a pgx connection the waiter needs
type PgxConnIface interface {
	Close(ctx context.Context) error
}

// ConnectFunc opens a connection to the database
type ConnectFunc func(ctx context.Context) (PgxConnIface, error)

// Params holds the connection parameters of one invocation
type Params struct {
	Host     string
	Port     string
	User     string
	Password string
	SSLMode  string
	Database string
}

// ConnString renders params as a keyword/value DSN. A host starting with "/"
// is a unix socket directory.
func (p Params) ConnString() string {
	pairs := []string{
		"host", p.Host,
		"port", p.Port,
		"user", p.User,
		"password", p.Password,
		"dbname", p.database(),
		"sslmode", p.sslMode(),
		"connect_timeout", strconv.Itoa(int(ConnectTimeout.Seconds())),
	}
	var parts []string
	for i := 0; i < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		parts = append(parts, pairs[i]+"="+quoteValue(pairs[i+1]))
	}
	return strings.Join(parts, " ")
}

// quoteValue single-quotes v, escaping backslashes and quotes the way libpq
// expects
func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (p Params) database() string {
	if p.Database == "" {
		return DefaultDatabase
	}
	return p.Database
}

func (p Params) sslMode() string {
	if p.SSLMode == "" {
		return DefaultSSLMode
	}
	return p.SSLMode
}

// ConnConfig parses params into a pgx connection config
func (p Params) ConnConfig() (*pgx.ConnConfig, error) {
	connConfig, err := pgx.ParseConfig(p.ConnString())
	if err != nil {
		return nil, fmt.Errorf("invalid connection parameters: %w", err)
	}
	if connConfig.ConnectTimeout == 0 {
		connConfig.ConnectTimeout = ConnectTimeout
	}
	connConfig.RuntimeParams["application_name"] = applicationName
	logger := logrus.StandardLogger()
	connConfig.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		logger.WithField("severity", n.Severity).WithField("notice", n.Message).Debug("Notice received")
	}
	return connConfig, nil
}

// NewConnector returns a ConnectFunc opening real pgx connections
func NewConnector(connConfig *pgx.ConnConfig) ConnectFunc {
	return func(ctx context.Context) (PgxConnIface, error) {
		ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
		defer cancel()
		conn, err := pgx.ConnectConfig(ctx, connConfig)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Probe opens a connection and closes it right away
func Probe(ctx context.Context, connect ConnectFunc) error {
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	if err := conn.Close(ctx); err != nil {
		return fmt.Errorf("failed to close probe connection: %w", err)
	}
	return nil
}
