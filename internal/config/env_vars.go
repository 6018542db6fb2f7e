package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-console-session/users"
)

const (
	appNameVar          = "APP_NAME"
	envVar              = "ENV"
	logLevelVar         = "LOG_LEVEL"
	folderEnvVar        = "FOLDER"
	baseURLVar          = "BASE_URL"
	requestTimeoutVar   = "REQUEST_TIMEOUT"
	uploadTimeoutVar    = "UPLOAD_TIMEOUT"
	membersAPIURLVar    = "MEMBERS_API_URL"
	uploadPathsVar      = "UPLOAD_PATHS"
	storageVar          = "SESSION_STORAGE"
	storageFileVar      = "SESSION_FILE"
	storageKeyVar       = "SESSION_KEY"
	redisAddrVar        = "REDIS_ADDR"
	redisPasswordVar    = "REDIS_PASSWORD"
	redisDBVar          = "REDIS_DB"
	redisPrefixVar      = "REDIS_PREFIX"
	proactiveRefreshVar = "PROACTIVE_REFRESH"
	superAdminRoleVar   = "SUPER_ADMIN_ROLE"
)

// Values is the flat set of settings. Environment variables provide the
// defaults and an optional YAML file overrides them.
type Values struct {
	AppName    string `yaml:"app_name" validate:"required"`
	Env        string `yaml:"env" validate:"required"`
	LogLevel   string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	DataFolder string `yaml:"data_folder"`

	BaseURL        string        `yaml:"base_url" validate:"required,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	UploadTimeout  time.Duration `yaml:"upload_timeout" validate:"gtefield=RequestTimeout"`
	MembersAPIURL  string        `yaml:"members_api_url" validate:"omitempty,url"`
	UploadPaths    []string      `yaml:"upload_paths"`

	Storage          string        `yaml:"storage" validate:"oneof=memory file redis"`
	StorageFile      string        `yaml:"storage_file" validate:"required_if=Storage file"`
	StorageKey       string        `yaml:"storage_key" validate:"omitempty,hexadecimal,len=64"`
	RedisAddr        string        `yaml:"redis_addr" validate:"required_if=Storage redis"`
	RedisPassword    string        `yaml:"redis_password"`
	RedisDB          int           `yaml:"redis_db" validate:"gte=0"`
	RedisPrefix      string        `yaml:"redis_prefix"`
	ProactiveRefresh time.Duration `yaml:"proactive_refresh" validate:"gte=0"`

	SuperAdminRole string `yaml:"super_admin_role" validate:"required"`
}

// FromEnv reads Values from environment variables, applying defaults
func FromEnv() Values {
	dataFolder := GetEnv(folderEnvVar, "./data")
	return Values{
		AppName:    GetEnv(appNameVar, "Event Console"),
		Env:        GetEnv(envVar, "DEV"),
		LogLevel:   GetEnv(logLevelVar, "info"),
		DataFolder: dataFolder,

		BaseURL:        GetEnv(baseURLVar, "http://localhost:3000"),
		RequestTimeout: GetEnvDuration(requestTimeoutVar, 30*time.Second),
		UploadTimeout:  GetEnvDuration(uploadTimeoutVar, 5*time.Minute),
		MembersAPIURL:  GetEnv(membersAPIURLVar, ""),
		UploadPaths:    GetEnvList(uploadPathsVar, []string{"/api/uploads", "/api/files"}),

		Storage:          GetEnv(storageVar, "file"),
		StorageFile:      GetEnv(storageFileVar, dataFolder+"/session.json"),
		StorageKey:       GetEnv(storageKeyVar, ""),
		RedisAddr:        GetEnv(redisAddrVar, ""),
		RedisPassword:    GetEnv(redisPasswordVar, ""),
		RedisDB:          GetEnvInt(redisDBVar, 0),
		RedisPrefix:      GetEnv(redisPrefixVar, "console:session:"),
		ProactiveRefresh: GetEnvDuration(proactiveRefreshVar, 0),

		SuperAdminRole: GetEnv(superAdminRoleVar, string(users.RoleSuperAdmin)),
	}
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvList splits a comma separated variable, dropping empty items
func GetEnvList(envVar string, defaultValue []string) []string {
	raw := os.Getenv(envVar)
	if raw == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
