// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

/*
Package config loads Shelfwise configuration with koanf.

Sources, lowest precedence first:

  - built-in defaults (defaultConfig)
  - a YAML file from CONFIG_PATH, ./config.yaml or /etc/shelfwise/config.yaml
  - environment variables listed in envTransformFunc

Example:

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

Durations accept Go syntax ("5s", "720h"). CORS_ORIGINS is comma separated
and INGEST_TYPE_THRESHOLDS uses "type:count" pairs, e.g. "click:5,hover:30".
*/
package config
