// Package config loads application configuration from environment variables
// into annotated structs, with an optional .env file for local development.
//
// Each configuration type is parsed once per process and cached, so every
// package can load its own section without coordinating with the rest of the
// application:
//
//	type PaddleConfig struct {
//		APIKey      string `env:"PADDLE_API_KEY,required"`
//		Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
//	}
//
//	var cfg PaddleConfig
//	config.MustLoad(&cfg)
//
// Parsing is delegated to github.com/caarlos0/env; .env loading to
// github.com/joho/godotenv.
package config
