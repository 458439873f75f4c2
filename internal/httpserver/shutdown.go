package httpserver

import "time"

// ShutdownTimeout bounds how long Shutdown waits for in-flight requests.
var ShutdownTimeout = 10 * time.Second
