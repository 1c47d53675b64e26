package main

import (
	"github.com/2Jaeheon/cascading-hybrid-search-engine/config"
)

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := cfg.EnsureDataDirs(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		return nil, err
	}
	return cfg, nil
}
