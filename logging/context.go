package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugLogKeyType int

const debugLogKeyID = debugLogKeyType(iota)

// EnableDebugMode returns a new context with debug logging state attached. An empty `tag`
// generates a random value. Loggers honor it through the CDebug family, so a single control
// session can be traced without raising the level of the whole process.
func EnableDebugMode(ctx context.Context, tag string) context.Context {
	if tag == "" {
		tag = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugLogKeyID, tag)
}

// IsDebugMode returns whether the input context has debug logging enabled.
func IsDebugMode(ctx context.Context) bool {
	return DebugTag(ctx) != ""
}

// DebugTag returns the tag attached by EnableDebugMode.
func DebugTag(ctx context.Context) string {
	if val, ok := ctx.Value(debugLogKeyID).(string); ok {
		return val
	}
	return ""
}
