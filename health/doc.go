// Package health tracks the health of the robot's parts (driver, transport,
// publish lanes) and rolls them up into one status.
//
// Three states are reported: healthy, degraded and unhealthy. Aggregate marks
// the whole unhealthy when any part is unhealthy, degraded when any part is
// degraded, and healthy otherwise.
//
// Components either push a status with Monitor.Update or register a Probe
// that is evaluated whenever health is read:
//
//	monitor := health.NewMonitor()
//	monitor.Register("driver", drv.Status)
//	monitor.Register("transport", func() health.Status {
//	    return health.FromError("transport", transportErr(), "connected")
//	})
//	http.Handle("/health", monitor.Handler("vasya"))
//
// Error text passed through FromError is sanitized: URLs, file paths, IP
// addresses, ports and credential-looking pairs are replaced with
// placeholders before being served.
package health
