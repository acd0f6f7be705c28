package model

import "time"

// Shared defaults used by both the client and feed binaries.
const (
	DefaultPerSourceCapacity    = 5000
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = 3 * time.Second
	DefaultSkin                 = "default"
)
