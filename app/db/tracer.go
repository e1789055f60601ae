package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/onelink-market/app/observability/metrics"
)

type queryStartKey struct{}

// queryTimer records db_query_duration_seconds for every statement run
// through the pool.
type queryTimer struct {
	now func() time.Time
}

var _ pgx.QueryTracer = (*queryTimer)(nil)

func (t *queryTimer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: t.now(), op: statementKind(data.SQL)})
}

func (t *queryTimer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	metrics.Get().DbQueryDurationSeconds.Record(ctx, t.now().Sub(start.at).Seconds(),
		metric.WithAttributes(
			attribute.String("operation", start.op),
			attribute.Bool("error", data.Err != nil),
		))
}

type queryStart struct {
	at time.Time
	op string
}

// statementKind keeps label cardinality bounded: only the leading keyword.
func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	switch kw := strings.ToUpper(fields[0]); kw {
	case "SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "BEGIN", "COMMIT", "ROLLBACK":
		return strings.ToLower(kw)
	default:
		return "other"
	}
}
