// Package config loads engine configuration from YAML files, .env files and
// environment variables.
//
// It uses Viper for file and environment handling and godotenv for .env
// files. Environment variables override file values when they carry the
// service prefix, e.g. DATAPIPE_PIPELINE_ERROR_POLICY=skip sets
// pipeline.error_policy.
//
// # Usage
//
//	var cfg bootstrap.Config
//	err := config.LoadConfig("datapipe", &cfg, config.WithConfigFile("train.yml"))
package config
