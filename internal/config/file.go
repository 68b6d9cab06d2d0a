package config

import (
	"strconv"
	"strings"
)

// fileConfig is the YAML layout of a config file, e.g.
//
//	database:
//	  driver: sqlite
//	  url: file:consultations.db
//	notify:
//	  to: [data-team@example.com]
type fileConfig struct {
	Database struct {
		Driver     string `yaml:"driver"`
		URL        string `yaml:"url"`
		Migrations string `yaml:"migrations"`
	} `yaml:"database"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Redis struct {
		URL        string `yaml:"url"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`
	Meilisearch struct {
		URL       string `yaml:"url"`
		MasterKey string `yaml:"master_key"`
	} `yaml:"meilisearch"`
	S3 struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		Region    string `yaml:"region"`
		UseSSL    *bool  `yaml:"use_ssl"`
	} `yaml:"s3"`
	Reports struct {
		Repo string `yaml:"repo"`
	} `yaml:"reports"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		FromName string `yaml:"from_name"`
	} `yaml:"smtp"`
	Notify struct {
		To []string `yaml:"to"`
	} `yaml:"notify"`
}

// values flattens the file onto the environment variable names it stands in for.
func (f fileConfig) values() map[string]string {
	values := map[string]string{
		"THEMEAUDIT_DB_DRIVER":      f.Database.Driver,
		"DATABASE_URL":              f.Database.URL,
		"THEMEAUDIT_MIGRATIONS_DIR": f.Database.Migrations,
		"THEMEAUDIT_LOG_LEVEL":      f.Logging.Level,
		"REDIS_URL":                 f.Redis.URL,
		"MEILI_URL":                 f.Meilisearch.URL,
		"MEILI_MASTER_KEY":          f.Meilisearch.MasterKey,
		"S3_ENDPOINT":               f.S3.Endpoint,
		"S3_ACCESS_KEY":             f.S3.AccessKey,
		"S3_SECRET_KEY":             f.S3.SecretKey,
		"S3_BUCKET":                 f.S3.Bucket,
		"S3_REGION":                 f.S3.Region,
		"THEMEAUDIT_REPORTS_REPO":   f.Reports.Repo,
		"SMTP_HOST":                 f.SMTP.Host,
		"SMTP_USERNAME":             f.SMTP.Username,
		"SMTP_PASSWORD":             f.SMTP.Password,
		"SMTP_FROM":                 f.SMTP.From,
		"SMTP_FROM_NAME":            f.SMTP.FromName,
		"THEMEAUDIT_NOTIFY_TO":      strings.Join(f.Notify.To, ","),
	}
	if f.Redis.TTLSeconds > 0 {
		values["THEMEAUDIT_SNAPSHOT_TTL_SECONDS"] = strconv.Itoa(f.Redis.TTLSeconds)
	}
	if f.S3.UseSSL != nil {
		values["S3_USE_SSL"] = strconv.FormatBool(*f.S3.UseSSL)
	}
	if f.SMTP.Port > 0 {
		values["SMTP_PORT"] = strconv.Itoa(f.SMTP.Port)
	}
	return values
}
