package config

import "go.uber.org/zap"

// NewLogger returns a development logger when appEnv is "development", and a
// JSON production logger otherwise.
func NewLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
