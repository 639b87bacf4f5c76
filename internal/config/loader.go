package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ETL_SOURCE_HOST.
const EnvPrefix = "ETL"

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("source.driver", d.Source.Driver)
	v.SetDefault("source.host", d.Source.Host)
	v.SetDefault("source.port", d.Source.Port)
	v.SetDefault("source.database", d.Source.Database)
	v.SetDefault("source.user", d.Source.User)
	v.SetDefault("source.password", d.Source.Password)
	v.SetDefault("source.table", d.Source.Table)
	v.SetDefault("source.dsn", d.Source.DSN)
	v.SetDefault("source.connect_timeout", d.Source.ConnectTimeout)

	v.SetDefault("artifacts.raw_path", d.Artifacts.RawPath)
	v.SetDefault("artifacts.cleaned_path", d.Artifacts.CleanedPath)

	v.SetDefault("cleaning.placeholder", d.Cleaning.Placeholder)
	v.SetDefault("cleaning.empty_numeric", d.Cleaning.EmptyNumeric)

	v.SetDefault("index.backend", d.Index.Backend)
	v.SetDefault("index.scheme", d.Index.Scheme)
	v.SetDefault("index.host", d.Index.Host)
	v.SetDefault("index.port", d.Index.Port)
	v.SetDefault("index.name", d.Index.Name)
	v.SetDefault("index.username", d.Index.Username)
	v.SetDefault("index.password", d.Index.Password)
	v.SetDefault("index.mongo_database", d.Index.MongoDatabase)
	v.SetDefault("index.timeout", d.Index.Timeout)

	v.SetDefault("schedule.workflow", d.Schedule.Workflow)
	v.SetDefault("schedule.description", d.Schedule.Description)
	v.SetDefault("schedule.cron", d.Schedule.Cron)
	v.SetDefault("schedule.timezone", d.Schedule.Timezone)
	v.SetDefault("schedule.owner", d.Schedule.Owner)
	v.SetDefault("schedule.start_date", d.Schedule.StartDate)
	v.SetDefault("schedule.catchup", d.Schedule.Catchup)
	v.SetDefault("schedule.retries", d.Schedule.Retries)
	v.SetDefault("schedule.retry_delay", d.Schedule.RetryDelay)

	v.SetDefault("lock.redis_addr", d.Lock.RedisAddr)
	v.SetDefault("lock.redis_password", d.Lock.RedisPassword)
	v.SetDefault("lock.redis_db", d.Lock.RedisDB)
	v.SetDefault("lock.key", d.Lock.Key)
	v.SetDefault("lock.ttl", d.Lock.TTL)

	v.SetDefault("http.addr", d.HTTP.Addr)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
