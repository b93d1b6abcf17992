package driver

import (
	"strconv"
	"strings"

	"github.com/npillmayer/schuko"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
)

// KnownSelectors lists the tracer keys the runtime packages select.
var KnownSelectors = []string{"yapvm.gc", "yapvm.threads", "yapvm.interpreter"}

const traceAdapterKey = "golog"

// traceSettings is the flat key/value view trace2go reads its levels from.
type traceSettings map[string]string

var _ schuko.Configuration = traceSettings{}

func (traceSettings) InitDefaults()       {}
func (traceSettings) IsInteractive() bool { return false }

func (s traceSettings) IsSet(key string) bool {
	_, ok := s[key]
	return ok
}

func (s traceSettings) GetString(key string) string { return s[key] }

func (s traceSettings) GetInt(key string) int {
	n, _ := strconv.Atoi(s[key])
	return n
}

func (s traceSettings) GetBool(key string) bool {
	b, _ := strconv.ParseBool(s[key])
	return b
}

// settings maps the trace section onto trace2go keys. Known tracers that are
// not selected stay at Error.
func (c TraceConfig) settings() traceSettings {
	s := traceSettings{
		"tracing.adapter": traceAdapterKey,
		"trace.root":      "Error",
	}
	if c.Destination != "" {
		s["tracing.destination"] = c.Destination
	}
	for _, sel := range KnownSelectors {
		s["trace."+sel] = "Error"
	}
	for _, sel := range c.Selectors {
		s["trace."+sel] = c.Level
	}
	return s
}

// SetupTracing installs Go-logger tracers for the runtime packages at the
// configured level. The returned teardown detaches them again.
func SetupTracing(c TraceConfig) (func(), error) {
	tracing.RegisterTraceAdapter(traceAdapterKey, gologadapter.GetAdapter(), false)
	if err := trace2go.ConfigureRoot(c.settings(), "trace", trace2go.ReplaceTracers(true)); err != nil {
		return nil, err
	}
	tracing.SetTraceSelector(trace2go.Selector())
	return trace2go.Teardown, nil
}

// ParseSelectors splits a --trace flag value ("yapvm.gc,yapvm.threads").
func ParseSelectors(flag string) []string {
	var out []string
	for _, sel := range strings.Split(flag, ",") {
		if sel = strings.TrimSpace(sel); sel != "" {
			out = append(out, sel)
		}
	}
	return out
}
