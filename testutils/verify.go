// Package testutils holds helpers shared by package tests.
package testutils

import (
	"go.uber.org/goleak"
)

// VerifyTestMain runs the package's tests and fails if any goroutine outlives them. Capture and
// callback goroutines must all be stopped by the time a test returns.
func VerifyTestMain(m goleak.TestingM) {
	goleak.VerifyTestMain(m,
		// glog's flush daemon is started by go.viam.com/utils' dependencies.
		goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		// lumberjack never stops its compression goroutine.
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}
