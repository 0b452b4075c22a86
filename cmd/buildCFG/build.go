// Package buildCFG translates the loaded configuration file into the typed
// settings the application components are constructed from.
package buildCFG

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

type ServerConfig struct {
	Port string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type BotConfig struct {
	Token      string
	SessionTTL time.Duration
}

type ScheduleConfig struct {
	PenaltySpec  string
	ReminderSpec string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) *ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port is not set, falling back to 8080")
	}
	return &ServerConfig{Port: port}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("database.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("database.master_dsn is required")
	}
	slaveDSNs := cfg.GetStringSlice("database.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("database.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("database.conn_max_lifetime"),
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = time.Hour
	}

	log.Info().Int("slaves", len(slaveDSNs)).Msg("database configuration loaded")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (*RabbitConfig, error) {
	url := cfg.GetString("rabbit.url")
	if url == "" {
		return nil, fmt.Errorf("rabbit.url is required")
	}
	rc := &RabbitConfig{
		Url:      url,
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Exchange == "" {
		rc.Exchange = "notifications"
	}
	if rc.Queue == "" {
		rc.Queue = "student_notifications"
	}
	log.Info().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("rabbit configuration loaded")
	return rc, nil
}

func BuildBotConfig(cfg *config.Config, log *zerolog.Logger) (*BotConfig, error) {
	token := cfg.GetString("bot.token")
	if token == "" {
		return nil, fmt.Errorf("bot.token is required")
	}
	ttl := cfg.GetDuration("bot.session_ttl")
	if ttl == 0 {
		ttl = time.Hour
	}
	return &BotConfig{Token: token, SessionTTL: ttl}, nil
}

func BuildScheduleConfig(cfg *config.Config, log *zerolog.Logger) *ScheduleConfig {
	sc := &ScheduleConfig{
		PenaltySpec:  cfg.GetString("schedule.penalty"),
		ReminderSpec: cfg.GetString("schedule.reminders"),
	}
	if sc.PenaltySpec == "" {
		sc.PenaltySpec = "0 3 * * *"
	}
	if sc.ReminderSpec == "" {
		sc.ReminderSpec = "0 9 * * *"
	}
	log.Info().Str("penalty", sc.PenaltySpec).Str("reminders", sc.ReminderSpec).
		Msg("schedule configuration loaded")
	return sc
}

func AdminToken(cfg *config.Config, log *zerolog.Logger) string {
	token := cfg.GetString("server.admin_token")
	if token == "" {
		log.Warn().Msg("server.admin_token is empty, admin API is unprotected")
	}
	return token
}
