//go:build windows

package xpkg

// syslogSink is a no-op on platforms without syslog.
type syslogSink struct{}

func newSyslogSink() *syslogSink { return &syslogSink{} }

func (s *syslogSink) Noticef(format string, args ...interface{}) {}

func (s *syslogSink) Errf(format string, args ...interface{}) {}

func (s *syslogSink) Close() {}
