// File: utils/constants.go
package utils

import "time"

// SelectionCachePrefix is the prefix used for Redis keys holding a pending inventory selection.
const SelectionCachePrefix = "mitra:selection:"

// ReconcileDelay is how long the background worker waits before refreshing an uncertain transaction.
const ReconcileDelay = 5 * time.Second

// LoginPath is the partner API path whose 401 answers must not end the session.
const LoginPath = "/auth/login"
