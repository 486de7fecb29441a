// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

//go:build !nats

package events

import "fmt"

// NATSAvailable reports whether the binary was built with NATS support.
const NATSAvailable = false

// NewNATSBus is unavailable without the nats build tag.
func NewNATSBus(_ string) (*Bus, error) {
	return nil, fmt.Errorf("NATS event bus requires building with -tags nats")
}
