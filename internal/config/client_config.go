package config

import "time"

type ClientConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetUploadTimeout() time.Duration
	GetMembersAPIURL() string
	GetUploadPaths() []string
}

type SessionConfig interface {
	GetStorage() string
	GetStorageFile() string
	GetStorageKey() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
	GetProactiveRefresh() time.Duration
}

type RBACConfig interface {
	GetSuperAdminRole() string
}

// GetBaseURL returns the backend base URL (e.g., "https://events.example.com")
func (c mainConfig) GetBaseURL() string {
	return c.values.BaseURL
}

func (c mainConfig) GetRequestTimeout() time.Duration {
	return c.values.RequestTimeout
}

// GetUploadTimeout is the longer allowance used for file upload endpoints
func (c mainConfig) GetUploadTimeout() time.Duration {
	return c.values.UploadTimeout
}

// GetMembersAPIURL is the external member lookup API, which carries its own auth
func (c mainConfig) GetMembersAPIURL() string {
	return c.values.MembersAPIURL
}

func (c mainConfig) GetUploadPaths() []string {
	return c.values.UploadPaths
}

// GetStorage is one of "memory", "file" or "redis"
func (c mainConfig) GetStorage() string {
	return c.values.Storage
}

func (c mainConfig) GetStorageFile() string {
	return c.values.StorageFile
}

// GetStorageKey is a hex encoded 32 byte key; when set the session file is sealed
func (c mainConfig) GetStorageKey() string {
	return c.values.StorageKey
}

func (c mainConfig) GetRedisAddr() string {
	return c.values.RedisAddr
}

func (c mainConfig) GetRedisPassword() string {
	return c.values.RedisPassword
}

func (c mainConfig) GetRedisDB() int {
	return c.values.RedisDB
}

func (c mainConfig) GetRedisPrefix() string {
	return c.values.RedisPrefix
}

// GetProactiveRefresh is how long before expiry a token is refreshed; zero disables it
func (c mainConfig) GetProactiveRefresh() time.Duration {
	return c.values.ProactiveRefresh
}

func (c mainConfig) GetSuperAdminRole() string {
	return c.values.SuperAdminRole
}
