package handlers

import (
	"log"
	"net/http"
	"os"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// tokenQueryParam carries the bearer token on the /ws handshake
const tokenQueryParam = "token"

// redactingLogFormatter is chi's default access log with query-string
// tokens masked. The request handed to the route is left untouched.
type redactingLogFormatter struct {
	chimiddleware.DefaultLogFormatter
}

func (f *redactingLogFormatter) NewLogEntry(r *http.Request) chimiddleware.LogEntry {
	return f.DefaultLogFormatter.NewLogEntry(redactTokenQuery(r))
}

func redactTokenQuery(r *http.Request) *http.Request {
	query := r.URL.Query()
	if !query.Has(tokenQueryParam) {
		return r
	}
	query.Set(tokenQueryParam, "REDACTED")

	masked := r.Clone(r.Context())
	masked.URL.RawQuery = query.Encode()
	masked.RequestURI = masked.URL.RequestURI()
	return masked
}

// accessLogger logs one line per request to out, or to stdout when out is nil
func accessLogger(out chimiddleware.LoggerInterface) func(http.Handler) http.Handler {
	formatter := &redactingLogFormatter{}
	if out == nil {
		formatter.Logger = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		formatter.Logger = out
		formatter.NoColor = true
	}
	return chimiddleware.RequestLogger(formatter)
}
