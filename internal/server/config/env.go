package config

import (
	"os"
	"strings"
)

// parseEnv overlays values from the environment variables used by the
// container deployment. Unset or empty variables leave the field unchanged.
//
//	PORT                  HTTP port, bound on all interfaces
//	DATABASE_URL          PostgreSQL DSN
//	JWT_SECRET_FILE       path to the JWT signing secret
//	MAIL_TOKEN_MASTER_KEY path to the vault master key
//	API_CREDENTIALS_FILE  path to the username:hash registry
//	CLIENT_SECRET         path to the Google OAuth client secret JSON
//	OAUTH_REDIRECT_URI    OAuth redirect URI registered with Google
//	LOG_LEVEL             debug, info, warn or error
func parseEnv(config *Config) {
	if v := lookupEnv("PORT"); v != "" {
		config.EndpointAddrHTTP = ":" + v
	}
	setFromEnv(&config.DatabaseDSN, "DATABASE_URL")
	setFromEnv(&config.JWTSecretFile, "JWT_SECRET_FILE")
	setFromEnv(&config.MasterKeyFile, "MAIL_TOKEN_MASTER_KEY")
	setFromEnv(&config.CredentialsFile, "API_CREDENTIALS_FILE")
	setFromEnv(&config.GoogleClientSecretFile, "CLIENT_SECRET")
	setFromEnv(&config.OAuthRedirectURI, "OAUTH_REDIRECT_URI")
	setFromEnv(&config.LogLevel, "LOG_LEVEL")
}

func lookupEnv(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func setFromEnv(dst *string, name string) {
	if v := lookupEnv(name); v != "" {
		*dst = v
	}
}
