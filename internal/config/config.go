// Package config holds the configuration handed explicitly to every
// pipeline stage, and loads it from defaults, an optional YAML file and
// ETL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/BartekS5/dailyetl/pkg/models"
)

const (
	DriverPostgres  = "postgres"
	DriverSQLServer = "sqlserver"
	DriverSQLite    = "sqlite"

	BackendElasticsearch = "elasticsearch"
	BackendMongoDB       = "mongodb"

	// EmptyNumericZero fills a column that has no value at all with 0.
	EmptyNumericZero = "zero"
	// EmptyNumericFail aborts the clean stage on such a column.
	EmptyNumericFail = "fail"
)

var (
	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	indexNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// Config holds all configuration for one pipeline deployment.
type Config struct {
	Source    SourceConfig   `mapstructure:"source"`
	Artifacts ArtifactConfig `mapstructure:"artifacts"`
	Cleaning  CleaningConfig `mapstructure:"cleaning"`
	Index     IndexConfig    `mapstructure:"index"`
	Schedule  ScheduleConfig `mapstructure:"schedule"`
	Lock      LockConfig     `mapstructure:"lock"`
	HTTP      HTTPConfig     `mapstructure:"http"`
	Log       LogConfig      `mapstructure:"log"`
}

// SourceConfig describes the relational table that is extracted.
type SourceConfig struct {
	Driver         string        `mapstructure:"driver"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Database       string        `mapstructure:"database"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Table          string        `mapstructure:"table"`
	DSN            string        `mapstructure:"dsn"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// DataSourceName returns the connection string for the configured driver.
// An explicit DSN wins over the composed one. For sqlite the database is a
// file path.
func (s SourceConfig) DataSourceName() string {
	if s.DSN != "" {
		return s.DSN
	}
	host := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	switch s.Driver {
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(s.User, s.Password),
			Host:     host,
			Path:     "/" + s.Database,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	case DriverSQLServer:
		q := url.Values{}
		q.Set("database", s.Database)
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(s.User, s.Password),
			Host:     host,
			RawQuery: q.Encode(),
		}
		return u.String()
	default:
		return s.Database
	}
}

// Query is the fixed full-table scan run by the extractor.
func (s SourceConfig) Query() string {
	return "SELECT * FROM " + s.Table
}

// ArtifactConfig locates the intermediate files.
type ArtifactConfig struct {
	RawPath     string `mapstructure:"raw_path"`
	CleanedPath string `mapstructure:"cleaned_path"`
}

// CleaningConfig tunes the clean stage.
type CleaningConfig struct {
	Placeholder  string `mapstructure:"placeholder"`
	EmptyNumeric string `mapstructure:"empty_numeric"`
}

// IndexConfig describes the search index the loader writes to.
type IndexConfig struct {
	Backend       string        `mapstructure:"backend"`
	Scheme        string        `mapstructure:"scheme"`
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Name          string        `mapstructure:"name"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	MongoDatabase string        `mapstructure:"mongo_database"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// Address returns the base URL of the index endpoint.
func (i IndexConfig) Address() string {
	u := url.URL{Scheme: i.Scheme, Host: net.JoinHostPort(i.Host, strconv.Itoa(i.Port))}
	if i.Backend == BackendMongoDB {
		u.Scheme = "mongodb"
		if i.Username != "" {
			u.User = url.UserPassword(i.Username, i.Password)
		}
	}
	return u.String()
}

// ScheduleConfig is the scheduling surface: when the driver triggers a run
// and how the workflow is described.
type ScheduleConfig struct {
	Workflow    string        `mapstructure:"workflow"`
	Description string        `mapstructure:"description"`
	Cron        string        `mapstructure:"cron"`
	Timezone    string        `mapstructure:"timezone"`
	Owner       string        `mapstructure:"owner"`
	StartDate   string        `mapstructure:"start_date"`
	Catchup     bool          `mapstructure:"catchup"`
	Retries     int           `mapstructure:"retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// Start parses StartDate.
func (s ScheduleConfig) Start() (time.Time, error) {
	return time.Parse(time.RFC3339, s.StartDate)
}

// LockConfig selects the lock that keeps runs from overlapping. An empty
// RedisAddr means an in-process lock.
type LockConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Key           string        `mapstructure:"key"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// HTTPConfig configures the scheduler's status endpoint. An empty Addr
// disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration the pipeline ships with.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Driver:         DriverPostgres,
			Host:           "postgres",
			Port:           5432,
			Database:       "postgres",
			User:           "airflow",
			Password:       "airflow",
			Table:          "employee_performance",
			ConnectTimeout: 5 * time.Second,
		},
		Artifacts: ArtifactConfig{
			RawPath:     "/opt/airflow/dags/raw_data.csv",
			CleanedPath: "/opt/airflow/dags/clean_data.csv",
		},
		Cleaning: CleaningConfig{
			Placeholder:  "Unknown",
			EmptyNumeric: EmptyNumericZero,
		},
		Index: IndexConfig{
			Backend:       BackendElasticsearch,
			Scheme:        "http",
			Host:          "elasticsearch",
			Port:          9200,
			Name:          "employee_data",
			MongoDatabase: "etl",
			Timeout:       10 * time.Second,
		},
		Schedule: ScheduleConfig{
			Workflow:    "m3_karen",
			Description: "raw data from PostgreSQL to cleaned data and post to Elasticsearch",
			Cron:        "30 6 * * *",
			Timezone:    "UTC",
			Owner:       "karen",
			StartDate:   "2024-11-07T23:50:00Z",
			Catchup:     false,
			Retries:     0,
			RetryDelay:  5 * time.Minute,
		},
		Lock: LockConfig{
			Key: "dailyetl:run-lock",
			TTL: 2 * time.Hour,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "json"},
	}
}

// Validate checks the configuration for values no stage could work with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Driver {
	case DriverPostgres, DriverSQLServer, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("source.driver: unsupported driver %q", c.Source.Driver))
	}
	if !tableNamePattern.MatchString(c.Source.Table) {
		errs = append(errs, fmt.Errorf("source.table: %q is not a valid table name", c.Source.Table))
	}
	if c.Source.Driver == DriverSQLite && c.Source.DSN == "" && c.Source.Database == "" {
		errs = append(errs, errors.New("source.database: sqlite needs a database file"))
	}
	if c.Source.Driver != DriverSQLite && c.Source.DSN == "" && !validPort(c.Source.Port) {
		errs = append(errs, fmt.Errorf("source.port: %d out of range", c.Source.Port))
	}

	if c.Artifacts.RawPath == "" || c.Artifacts.CleanedPath == "" {
		errs = append(errs, errors.New("artifacts: raw_path and cleaned_path are required"))
	} else if filepath.Clean(c.Artifacts.RawPath) == filepath.Clean(c.Artifacts.CleanedPath) {
		errs = append(errs, errors.New("artifacts: raw_path and cleaned_path must differ"))
	}

	if c.Cleaning.Placeholder == "" {
		errs = append(errs, errors.New("cleaning.placeholder: must not be empty"))
	}
	switch c.Cleaning.EmptyNumeric {
	case EmptyNumericZero, EmptyNumericFail:
	default:
		errs = append(errs, fmt.Errorf("cleaning.empty_numeric: unknown policy %q", c.Cleaning.EmptyNumeric))
	}

	switch c.Index.Backend {
	case BackendElasticsearch, BackendMongoDB:
	default:
		errs = append(errs, fmt.Errorf("index.backend: unsupported backend %q", c.Index.Backend))
	}
	if !indexNamePattern.MatchString(c.Index.Name) {
		errs = append(errs, fmt.Errorf("index.name: %q is not a valid index name", c.Index.Name))
	}
	if c.Index.Scheme != "http" && c.Index.Scheme != "https" {
		errs = append(errs, fmt.Errorf("index.scheme: %q must be http or https", c.Index.Scheme))
	}
	if c.Index.Host == "" || !validPort(c.Index.Port) {
		errs = append(errs, fmt.Errorf("index: invalid endpoint %s:%d", c.Index.Host, c.Index.Port))
	}

	if c.Schedule.Workflow == "" {
		errs = append(errs, errors.New("schedule.workflow: must not be empty"))
	}
	if _, err := c.Schedule.Start(); err != nil {
		errs = append(errs, fmt.Errorf("schedule.start_date: %w", err))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}
	if c.Schedule.Catchup {
		errs = append(errs, errors.New("schedule.catchup: missed runs are never caught up"))
	}
	if c.Schedule.Retries < 0 {
		errs = append(errs, errors.New("schedule.retries: must not be negative"))
	}
	if c.Lock.RedisAddr != "" && c.Lock.TTL <= 0 {
		errs = append(errs, errors.New("lock.ttl: must be positive when redis is used"))
	}

	return errors.Join(errs...)
}

// Workflow describes the scheduled job for bookkeeping.
func (c *Config) Workflow() models.Workflow {
	start, _ := c.Schedule.Start()
	return models.Workflow{
		ID:          c.Schedule.Workflow,
		Description: c.Schedule.Description,
		Owner:       c.Schedule.Owner,
		StartDate:   start,
		Schedule:    c.Schedule.Cron,
		Timezone:    c.Schedule.Timezone,
		Catchup:     c.Schedule.Catchup,
		Retries:     c.Schedule.Retries,
		RetryDelay:  c.Schedule.RetryDelay.String(),
		Tasks: []models.Task{
			{ID: "extract"},
			{ID: "clean", Upstream: []string{"extract"}},
			{ID: "load", Upstream: []string{"clean"}},
		},
	}
}

func validPort(p int) bool {
	return p > 0 && p < 65536
}
