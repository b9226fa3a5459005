package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/joho/godotenv"
)

// config holds everything the commands need to build and run a platform.
type config struct {
	chunkSize        uint64
	accessDelay      int
	driverDelay      int
	memLatency       int
	memSize          uint64
	pageWalkLatency  int
	log2PageSize     uint64
	statsFile        string
	record           string
	monitor          bool
	monitorPort      int
	openMonitor      bool
	logEvents        bool
	logMsgs          bool
	traceMem         bool
	skipVerification bool
}

func defaultConfig() config {
	return config{
		chunkSize:       64,
		accessDelay:     1,
		memLatency:      100,
		memSize:         4 << 30,
		pageWalkLatency: 0,
		log2PageSize:    12,
	}
}

// loadEnvFile reads KEY=VALUE pairs from path into the environment. Variables
// that are already set are kept. A missing file is not an error.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

type lookupFunc func(key string) (string, bool)

// configFromEnv overrides the defaults with COPYENGINE_* variables.
func configFromEnv(lookup lookupFunc) (config, error) {
	cfg := defaultConfig()

	var err error

	uints := []struct {
		key string
		dst *uint64
	}{
		{"COPYENGINE_CHUNK_SIZE", &cfg.chunkSize},
		{"COPYENGINE_MEM_SIZE", &cfg.memSize},
		{"COPYENGINE_LOG2_PAGE_SIZE", &cfg.log2PageSize},
	}
	for _, u := range uints {
		if v, ok := lookup(u.key); ok {
			*u.dst, err = strconv.ParseUint(v, 0, 64)
			if err != nil {
				return cfg, fmt.Errorf("invalid %s: %w", u.key, err)
			}
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"COPYENGINE_ACCESS_DELAY", &cfg.accessDelay},
		{"COPYENGINE_DRIVER_DELAY", &cfg.driverDelay},
		{"COPYENGINE_MEM_LATENCY", &cfg.memLatency},
		{"COPYENGINE_PAGE_WALK_LATENCY", &cfg.pageWalkLatency},
		{"COPYENGINE_MONITOR_PORT", &cfg.monitorPort},
	}
	for _, i := range ints {
		if v, ok := lookup(i.key); ok {
			*i.dst, err = strconv.Atoi(v)
			if err != nil {
				return cfg, fmt.Errorf("invalid %s: %w", i.key, err)
			}
		}
	}

	if v, ok := lookup("COPYENGINE_STATS_FILE"); ok {
		cfg.statsFile = v
	}

	if v, ok := lookup("COPYENGINE_RECORD"); ok {
		cfg.record = v
	}

	return cfg, nil
}
