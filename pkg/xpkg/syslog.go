//go:build !windows

package xpkg

import (
	"fmt"
	"log/syslog"
)

// syslogSink mirrors removal outcomes to the system log, matching the
// distribution tooling's audit trail. It is a no-op when disabled or
// when the syslog daemon is unreachable.
type syslogSink struct {
	w *syslog.Writer
}

func newSyslogSink() *syslogSink {
	w, err := syslog.New(syslog.LOG_NOTICE|syslog.LOG_USER, "xpkg")
	if err != nil {
		return &syslogSink{}
	}
	return &syslogSink{w: w}
}

func (s *syslogSink) Noticef(format string, args ...interface{}) {
	if s == nil || s.w == nil {
		return
	}
	_ = s.w.Notice(fmt.Sprintf(format, args...))
}

func (s *syslogSink) Errf(format string, args ...interface{}) {
	if s == nil || s.w == nil {
		return
	}
	_ = s.w.Err(fmt.Sprintf(format, args...))
}

func (s *syslogSink) Close() {
	if s != nil && s.w != nil {
		_ = s.w.Close()
	}
}
