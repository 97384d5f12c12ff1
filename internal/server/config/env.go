package config

import (
	"os"
	"strconv"
)

// parseEnv overlays values from environment variables. Secrets usually arrive
// this way in container deployments, keeping them out of argv and config
// files.
func parseEnv(config *Config) {
	setIfEnv(&config.EndpointAddrHTTP, "ADDRESS")
	setIfEnv(&config.DatabaseDSN, "DATABASE_DSN")
	setIfEnv(&config.SecretKey, "SECRET_KEY")
	setIfEnv(&config.ClientURL, "CLIENT_URL")
	setIfEnv(&config.SMTPHost, "SMTP_HOST")
	setIfEnvInt(&config.SMTPPort, "SMTP_PORT")
	setIfEnv(&config.SMTPUsername, "SMTP_USERNAME")
	setIfEnv(&config.SMTPPassword, "SMTP_PASSWORD")
	setIfEnv(&config.MailFrom, "MAIL_FROM")
	setIfEnv(&config.GoogleClientID, "GOOGLE_CLIENT_ID")
	setIfEnv(&config.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setIfEnv(&config.GoogleRedirectURL, "GOOGLE_REDIRECT_URL")
}

func setIfEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setIfEnvInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
