package notifier

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"quantdriver/model"
)

// audit is a second, independent logging surface from the package-global
// zerolog logger: a structured JSON trail of every notification outcome,
// kept separate so a compliance review never has to sift application logs
// for dispatch events.
var audit = newAuditLogger()

func newAuditLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stdout)
	return l
}

var auditMu sync.Mutex

func recordAudit(strategyID, symbol string, signalType model.SignalType, results map[string]ChannelResult) {
	auditMu.Lock()
	defer auditMu.Unlock()
	fields := logrus.Fields{
		"strategy_id": strategyID,
		"symbol":      symbol,
		"signal_type": signalType,
	}
	anyFailed := false
	for channel, r := range results {
		fields["channel_"+channel+"_ok"] = r.OK
		if !r.OK {
			anyFailed = true
			fields["channel_"+channel+"_error"] = r.Error
		}
	}
	entry := audit.WithFields(fields)
	if anyFailed {
		entry.Warn("notification dispatch had at least one channel failure")
		return
	}
	entry.Info("notification dispatched")
}
