package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/cashkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-j string   JWT secret file
//	-k string   vault master key file
//	-u string   credentials registry file
//	-s string   Google OAuth client secret file
//	-o string   OAuth redirect URI
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-m int      maximum number of API users in the registry
//	-x string   comma-separated currency codes
//	-l string   log level
//	-p string   comma-separated trusted proxy addresses or CIDR prefixes
//
// Duration flags are accepted as integers in minutes and then converted
// to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-j", "-k", "-u", "-s", "-o", "-t", "-r", "-m", "-x", "-l", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecretFile, "j", config.JWTSecretFile, "JWT secret file")
	fs.StringVar(&config.MasterKeyFile, "k", config.MasterKeyFile, "vault master key file")
	fs.StringVar(&config.CredentialsFile, "u", config.CredentialsFile, "API credentials registry file")
	fs.StringVar(&config.GoogleClientSecretFile, "s", config.GoogleClientSecretFile, "Google OAuth client secret file")
	fs.StringVar(&config.OAuthRedirectURI, "o", config.OAuthRedirectURI, "OAuth redirect URI")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.IntVar(&config.MaxAPIUsers, "m", config.MaxAPIUsers, "maximum number of API users")
	currencies := fs.String("x", strings.Join(config.Currencies, ","), "comma-separated currency codes")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	proxies := fs.String("p", strings.Join(config.TrustedProxies, ","), "comma-separated trusted proxies")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.Currencies = splitCurrencies(*currencies)
	config.TrustedProxies = splitList(*proxies)
}

func splitCurrencies(s string) []string {
	out := splitList(s)
	for i, p := range out {
		out[i] = strings.ToUpper(p)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RotateMasterKeyFlag returns the value of -rotate-master-key: the file
// holding the new vault master key. Empty means a normal server start.
func RotateMasterKeyFlag() string {
	var path string

	args := flagx.FilterArgs(os.Args[1:], []string{"-rotate-master-key"})

	fs := flag.NewFlagSet("rotate", flag.ContinueOnError)
	fs.StringVar(&path, "rotate-master-key", "", "rotate the vault master key to the key in this file and exit")
	_ = fs.Parse(args)

	return path
}
