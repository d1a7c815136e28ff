package middleware

import (
	contextutil "gekoimport/internal/context"

	logger "github.com/Bparsons0904/goLogger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	TraceIDHeader   = "X-Trace-ID"
	TraceIDLocalKey = "traceID"

	// Matches the import_jobs.trace_id column.
	maxTraceIDLength = 64
)

// TraceID takes the caller's X-Trace-ID, or generates one, and echoes it back. The id is
// stored in locals and in the user context, where upload submissions pick it up so a
// polled import job can be tied back to the request that created it.
func (m *Middleware) TraceID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := acceptTraceID(c.Get(TraceIDHeader))
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set(TraceIDHeader, traceID)
		c.Locals(TraceIDLocalKey, traceID)

		ctx := logger.ContextWithTraceID(c.UserContext(), traceID)
		c.SetUserContext(contextutil.WithTraceID(ctx, traceID))

		return c.Next()
	}
}

func GetTraceID(c *fiber.Ctx) string {
	if traceID, ok := c.Locals(TraceIDLocalKey).(string); ok {
		return traceID
	}
	return ""
}

// acceptTraceID returns the incoming id when it fits the job column and holds only
// printable ASCII without spaces, and "" otherwise.
func acceptTraceID(traceID string) string {
	if len(traceID) > maxTraceIDLength {
		return ""
	}
	for i := 0; i < len(traceID); i++ {
		if traceID[i] <= ' ' || traceID[i] > '~' {
			return ""
		}
	}
	return traceID
}
