package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cashkeeper/internal/flagx"
	"github.com/dmitrijs2005/cashkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15s" and integer nanoseconds.
//
// Fields left out of the file keep the value they had before parseJson.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`
	LogLevel         string `json:"log_level"`

	JWTSecretFile   string `json:"jwt_secret_file"`
	MasterKeyFile   string `json:"master_key_file"`
	CredentialsFile string `json:"credentials_file"`

	RegistryS3Bucket string `json:"registry_s3_bucket"`
	RegistryS3Key    string `json:"registry_s3_key"`
	S3RootUser       string `json:"s3_root_user"`
	S3RootPassword   string `json:"s3_root_password"`
	S3Region         string `json:"s3_region"`
	S3BaseEndpoint   string `json:"s3_base_endpoint"`

	MaxAPIUsers                  int            `json:"max_api_users"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`

	GoogleClientSecretFile string `json:"google_client_secret_file"`
	OAuthRedirectURI       string `json:"oauth_redirect_uri"`
	MailQuery              string `json:"mail_query"`
	MailMaxMessages        int    `json:"mail_max_messages"`
	MailUserID             string `json:"mail_user_id"`

	RequestTimeout timex.Duration `json:"request_timeout"`
	Currencies     []string       `json:"currencies"`

	AuthRateLimitPerMinute int `json:"auth_rate_limit_per_minute"`
	AuthRateLimitBurst     int `json:"auth_rate_limit_burst"`

	TrustedProxies []string `json:"trusted_proxies"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c / -config flags or, failing that, from
// CASHKEEPER_CONFIG. If neither is set no JSON file is loaded. If the file
// cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	overlayString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlayString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlayString(&config.DatabaseDSN, c.DatabaseDSN)
	overlayString(&config.LogLevel, c.LogLevel)

	overlayString(&config.JWTSecretFile, c.JWTSecretFile)
	overlayString(&config.MasterKeyFile, c.MasterKeyFile)
	overlayString(&config.CredentialsFile, c.CredentialsFile)

	overlayString(&config.RegistryS3Bucket, c.RegistryS3Bucket)
	overlayString(&config.RegistryS3Key, c.RegistryS3Key)
	overlayString(&config.S3RootUser, c.S3RootUser)
	overlayString(&config.S3RootPassword, c.S3RootPassword)
	overlayString(&config.S3Region, c.S3Region)
	overlayString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	overlayInt(&config.MaxAPIUsers, c.MaxAPIUsers)
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}

	overlayString(&config.GoogleClientSecretFile, c.GoogleClientSecretFile)
	overlayString(&config.OAuthRedirectURI, c.OAuthRedirectURI)
	overlayString(&config.MailQuery, c.MailQuery)
	overlayInt(&config.MailMaxMessages, c.MailMaxMessages)
	overlayString(&config.MailUserID, c.MailUserID)

	if c.RequestTimeout.Duration != 0 {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if len(c.Currencies) > 0 {
		config.Currencies = c.Currencies
	}

	overlayInt(&config.AuthRateLimitPerMinute, c.AuthRateLimitPerMinute)
	overlayInt(&config.AuthRateLimitBurst, c.AuthRateLimitBurst)
	if len(c.TrustedProxies) > 0 {
		config.TrustedProxies = c.TrustedProxies
	}
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
