package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/baraza/core"
	"github.com/trezcool/baraza/core/identity"
)

// RollbarLogger reports to rollbar and writes every entry to the wrapped logger as well.
type RollbarLogger struct {
	next core.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(next core.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{next: next}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare turns key-value pairs into rollbar arguments: the first error value is reported
// as the error, an identity.Identity sets the person and the rest becomes extras.
// Rollbar expects: msg | error, map[string]interface{}
func (l RollbarLogger) prepare(msg string, keysAndValues []interface{}) []interface{} {
	var (
		reported  error
		personSet bool
	)
	extras := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		switch val := keysAndValues[i+1].(type) {
		case identity.Identity:
			if !personSet { // only set one person
				rollbar.SetPerson(val.Subject(), personName(val), "")
				personSet = true
			}
		case error:
			if reported == nil {
				reported = val
			} else {
				extras[key] = val.Error()
			}
		default:
			extras[key] = val
		}
	}
	if !personSet {
		rollbar.ClearPerson()
	}

	args := make([]interface{}, 0, 2)
	if reported != nil {
		args = append(args, reported)
		extras["message"] = msg
	} else {
		args = append(args, msg)
	}
	if len(extras) > 0 {
		args = append(args, extras)
	}
	return args
}

func personName(caller identity.Identity) string {
	switch c := caller.(type) {
	case identity.Permanent:
		return c.DisplayName
	case identity.Temporary:
		return c.DisplayName
	}
	return ""
}

func (l RollbarLogger) Debug(msg string, keysAndValues ...interface{}) {
	rollbar.Debug(l.prepare(msg, keysAndValues)...)
	l.next.Debug(msg, keysAndValues...)
}

func (l RollbarLogger) Info(msg string, keysAndValues ...interface{}) {
	rollbar.Info(l.prepare(msg, keysAndValues)...)
	l.next.Info(msg, keysAndValues...)
}

func (l RollbarLogger) Warn(msg string, keysAndValues ...interface{}) {
	rollbar.Warning(l.prepare(msg, keysAndValues)...)
	l.next.Warn(msg, keysAndValues...)
}

func (l RollbarLogger) Error(msg string, keysAndValues ...interface{}) {
	rollbar.Error(l.prepare(msg, keysAndValues)...)
	l.next.Error(msg, keysAndValues...)
}

// Fatal flushes rollbar before the wrapped logger exits.
func (l RollbarLogger) Fatal(msg string, keysAndValues ...interface{}) {
	rollbar.Critical(l.prepare(msg, keysAndValues)...)
	rollbar.Wait()
	l.next.Fatal(msg, keysAndValues...)
}
