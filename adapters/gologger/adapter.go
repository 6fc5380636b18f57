package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// DefaultName is the logger name used when callers pass none.
const DefaultName = "webhooks"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(loggerName(name), provider, logger)
}

// ResolveComponent resolves a logger named "webhooks.<component>", e.g. the
// HTTP API or the queue worker.
func ResolveComponent(component string, provider glog.LoggerProvider, logger glog.Logger) glog.Logger {
	name := DefaultName
	if component = strings.Trim(strings.TrimSpace(component), "."); component != "" {
		name = DefaultName + "." + component
	}
	_, resolved := Resolve(name, provider, logger)
	return resolved
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

func loggerName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return DefaultName
}
