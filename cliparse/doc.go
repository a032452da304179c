// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	if err := cliparse.LoadEnvFile(".env"); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Flags and Environment Variables

	-p, --port            PORT                3318
	-d, --database-url    DATABASE_URL        required
	-t, --database-type   DATABASE_TYPE       sqlite | postgres
	--admin-salt          ADMIN_KEY_SALT      required
	--cache-ttl           CACHE_TTL           30s
	--cache-size          CACHE_SIZE          1024
	--store-timeout       STORE_TIMEOUT       5s
	--sweep-interval      SWEEP_INTERVAL      15s
	--history-window-max  HISTORY_WINDOW_MAX  720h
	--notify-rules        NOTIFY_RULES        YAML rules file
	--cors-origins        CORS_ORIGINS        comma separated
	--log-level           LOG_LEVEL           info

CLI flags take precedence over environment variables, which take precedence
over the defaults. LoadEnvFile fills the environment from a .env file
without overriding variables that are already set.
*/
package cliparse
