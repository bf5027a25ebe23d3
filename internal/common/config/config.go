package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Discord struct {
		BotToken string `env:"BOT_TOKEN,required"`
		APIBase  string `env:"DISCORD_API_BASE" envDefault:"https://discord.com/api/v10"`
	}

	Amari struct {
		Token   string `env:"AMARI_TOKEN" envDefault:""`
		APIBase string `env:"AMARI_API_BASE" envDefault:"https://amaribot.com/api/v1"`
	}

	Scheduler struct {
		// PollInterval is how often a scheduled giveaway checks whether its
		// start time has passed.
		PollInterval time.Duration `env:"SCHEDULER_POLL_INTERVAL" envDefault:"15s"`
		// SweepInterval is how often the supervisor scans for expired giveaways.
		SweepInterval time.Duration `env:"SCHEDULER_SWEEP_INTERVAL" envDefault:"10s"`
	}
}

func Load() *Config {
	// A missing .env file is fine; in production the variables are set on
	// the environment directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}
