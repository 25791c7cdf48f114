package handlers

import "time"

// nowFunc is overridden in tests that assert on persisted timestamps.
var nowFunc = time.Now
