package sqlstage

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Descriptor describes how to reach a database: dialect, location,
// credentials and driver options. It is usually loaded from a YAML file:
//
//	dialect: mysql
//	address: db.internal:3306
//	database: app
//	user: app
//	password: hunter2
//	options:
//	  timeout: 5s
//
// Options are passed through to the driver, except for a small forced set
// (see DataSourceName) that this layer depends on for correct NULL, time
// and error semantics.
type Descriptor struct {
	Dialect  string            `yaml:"dialect"`
	Address  string            `yaml:"address"`  // host:port, or the file path for sqlite
	Database string            `yaml:"database"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Options  map[string]string `yaml:"options"`

	// MaxIdle overrides the persistent-connection default (one idle
	// connection kept for reuse).
	MaxIdle *int `yaml:"max_idle"`
}

// LoadDescriptor reads a Descriptor from a YAML file.
func LoadDescriptor(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("sqlstage: parse descriptor %s: %w", path, err)
	}
	if d.Dialect == "" {
		return nil, fmt.Errorf("sqlstage: descriptor %s: dialect is required", path)
	}
	return &d, nil
}

// DataSourceName builds the driver DSN for the descriptor's dialect.
//
// Three options are forced regardless of the caller's Options, because the
// layer's semantics depend on them: times parsed into time.Time in UTC
// (NULL and zero values stay distinguishable), server-side prepares
// (parseTime/interpolateParams for MySQL), and errors surfaced through the
// driver rather than silent conversions.
func (d *Descriptor) DataSourceName() (string, error) {
	switch d.Dialect {
	case MySQL:
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = d.Address
		cfg.DBName = d.Database
		cfg.User = d.User
		cfg.Passwd = d.Password
		if len(d.Options) > 0 {
			cfg.Params = make(map[string]string, len(d.Options))
			for k, v := range d.Options {
				cfg.Params[k] = v
			}
		}
		if v, ok := d.Options["timeout"]; ok {
			t, err := time.ParseDuration(v)
			if err != nil {
				return "", fmt.Errorf("sqlstage: descriptor: bad timeout %q: %w", v, err)
			}
			cfg.Timeout = t
		}
		// Forced; the caller's values for these keys are discarded.
		for _, k := range []string{"timeout", "parseTime", "loc", "interpolateParams"} {
			delete(cfg.Params, k)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.InterpolateParams = false
		return cfg.FormatDSN(), nil
	case Postgres:
		kv := map[string]string{
			"dbname":   d.Database,
			"user":     d.User,
			"password": d.Password,
		}
		if host, port, ok := strings.Cut(d.Address, ":"); ok {
			kv["host"], kv["port"] = host, port
		} else if d.Address != "" {
			kv["host"] = d.Address
		}
		for k, v := range d.Options {
			kv[k] = v
		}
		keys := make([]string, 0, len(kv))
		for k, v := range kv {
			if v != "" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + quoteConnValue(kv[k])
		}
		return strings.Join(parts, " "), nil
	case SQLite:
		src := d.Address
		if src == "" {
			src = d.Database
		}
		if src == "" {
			return "", fmt.Errorf("sqlstage: descriptor: sqlite needs an address or database path")
		}
		if len(d.Options) == 0 {
			return src, nil
		}
		keys := make([]string, 0, len(d.Options))
		for k := range d.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		params := make([]string, len(keys))
		for i, k := range keys {
			params[i] = k + "=" + d.Options[k]
		}
		return "file:" + src + "?" + strings.Join(params, "&"), nil
	default:
		return "", fmt.Errorf("sqlstage: descriptor: unsupported dialect %q", d.Dialect)
	}
}

// Connect builds the DSN, opens the connection and applies the descriptor's
// pool settings. Failures surface as a ConnectError.
func (d *Descriptor) Connect(opts ...Option) (*Conn, error) {
	dsn, err := d.DataSourceName()
	if err != nil {
		return nil, newConnectError(d.Dialect, err)
	}
	conn, err := Open(d.Dialect, dsn, opts...)
	if err != nil {
		return nil, err
	}
	maxIdle := 1
	if d.MaxIdle != nil {
		maxIdle = *d.MaxIdle
	}
	conn.db.SetMaxIdleConns(maxIdle)
	return conn, nil
}

// quoteConnValue quotes a libpq keyword/value setting when needed.
func quoteConnValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
