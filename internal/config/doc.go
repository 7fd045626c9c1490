// Package config holds client settings and the on-disk profile registry.
//
// Config is the immutable value handed to a client: handshake and frame
// limits, keepalive timing, compression and TLS settings. Default returns
// the stock values and Validate rejects out-of-range fields with an
// InvalidParameter error.
//
// The Registry is a YAML file of named connection profiles:
//
//	version: 1
//	profiles:
//	  echo:
//	    url: wss://echo.example.com/ws
//	    config:
//	      timeout: 5s
//	      max_frame_size: 1048576
//	      compression: true
//	      compression_level: 6
//	      ping_interval: 30s
//	      pong_timeout: 10s
//	      headers:
//	        Origin: https://example.com
//	preferences:
//	  default_profile: echo
//	  discover_timeout: 5
//
// It lives at $XDG_CONFIG_HOME/wsclient/config.yaml (or the platform
// equivalent) unless WSCLIENT_CONFIG points elsewhere, and is written
// atomically.
package config
