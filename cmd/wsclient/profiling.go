package main

import (
	"fmt"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"

	"github.com/muurk/wsclient/internal/logging"
	"github.com/muurk/wsclient/internal/version"
)

var profiler *pyroscope.Profiler

// startProfiling begins continuous profiling when a server is configured.
func startProfiling(server string) error {
	if server == "" || profiler != nil {
		return nil
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "wsclient",
		ServerAddress:   server,
		Tags: map[string]string{
			"version": version.Version,
		},
		Logger: logging.GetLogger().Sugar(),
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start profiler: %w", err)
	}

	profiler = p
	logging.Info("Profiling enabled", zap.String("server", server))
	return nil
}

func stopProfiling() {
	if profiler == nil {
		return
	}
	if err := profiler.Stop(); err != nil {
		logging.Warn("Failed to stop profiler", zap.Error(err))
	}
	profiler = nil
}
