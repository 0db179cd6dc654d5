package httpserver

import "time"

// ShutdownTimeout bounds how long in-flight requests and background workers get to finish.
var ShutdownTimeout = 15 * time.Second
