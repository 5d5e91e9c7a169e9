package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
)

var storeTracer = otel.Tracer("bacs.recordstore")

func startSpan(ctx context.Context, op, table string) (context.Context, trace.Span) {
	return storeTracer.Start(ctx, "bigquery."+op, trace.WithAttributes(
		attribute.String("db.system", "bigquery"),
		attribute.String("db.operation", op),
		attribute.String("db.sql.table", table),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// readRows runs a SELECT and decodes every row into T.
func readRows[T any](ctx context.Context, op, table string, q *bigquery.Query) (rows []T, err error) {
	ctx, span := startSpan(ctx, op, table)
	defer func() {
		span.SetAttributes(attribute.Int("db.rows", len(rows)))
		endSpan(span, err)
	}()

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: reading query: %w", op, err)
	}

	for {
		var row T
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iterating: %w", op, err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// execQuery runs a DML statement and waits for it to finish.
func execQuery(ctx context.Context, op, table string, q *bigquery.Query) (err error) {
	ctx, span := startSpan(ctx, op, table)
	defer func() { endSpan(span, err) }()

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}

	return nil
}
