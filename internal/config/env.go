package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const namespace = "TASKGUARD"

// LoadEnv reads the TASKGUARD_* environment variables.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}
