package sdk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/rockbears/log"
)

// VERSION is set at build time.
var VERSION = "snapshot"

// FieldStacktrace is the log field carrying error stack traces.
var FieldStacktrace = log.Field("stack_trace")

func init() {
	log.RegisterField(FieldStacktrace)
}

// ContextWithStacktrace attaches the stack trace of given error to the
// context log fields.
func ContextWithStacktrace(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, FieldStacktrace, fmt.Sprintf("%+v", err))
}

// RandomString returns a random hex string of given length.
func RandomString(strlen int) string {
	b := make([]byte, strlen)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:strlen]
}
