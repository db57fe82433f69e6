package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/sphinxql/pkg/observability"
	"github.com/platinummonkey/sphinxql/pkg/sphinxql"
)

var clientTracer = otel.Tracer("sphinxql/client")

var (
	// ErrNilQuery is returned when a nil builder is passed to the client
	ErrNilQuery = errors.New("client: nil query")
	// ErrNoIndex is returned for a builder with no index; searchd rejects an empty FROM
	ErrNoIndex = errors.New("client: query has no index")
)

const showMeta = "SHOW META"

// Client executes builders against searchd. It implements sphinxql.Executor.
type Client struct {
	conns    *ConnectionManager
	logger   *logrus.Logger
	metrics  *observability.Metrics
	withMeta bool
}

// New creates a client. metrics may be nil.
func New(conns *ConnectionManager, logger *logrus.Logger, metrics *observability.Metrics) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		conns:   conns,
		logger:  logger,
		metrics: metrics,
	}
}

// WithMeta makes Query follow every statement with SHOW META on the same
// connection and fill ResultSet.Meta.
func (c *Client) WithMeta(enabled bool) *Client {
	c.withMeta = enabled
	return c
}

// HealthCheck reports the health of the underlying connections
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conns.HealthCheck(ctx)
}

// Query renders q and runs it on a replica
func (c *Client) Query(ctx context.Context, q *sphinxql.Query) (*sphinxql.ResultSet, error) {
	if q == nil {
		return nil, ErrNilQuery
	}
	indexes := q.Indexes()
	if len(indexes) == 0 {
		return nil, ErrNoIndex
	}

	statement := q.Render()
	queryID := uuid.New().String()
	index := indexes[0]

	ctx, span := clientTracer.Start(ctx, "Query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sphinxql"),
			attribute.String("db.statement", statement),
			attribute.String("sphinxql.query_id", queryID),
			attribute.StringSlice("sphinxql.indexes", indexes),
		),
	)
	defer span.End()

	log := observability.WithTraceContext(ctx, c.logger.WithFields(logrus.Fields{
		"query_id": queryID,
		"index":    index,
	}))

	start := time.Now()
	result, err := c.run(ctx, statement)
	duration := time.Since(start)

	c.metrics.ObserveQuery(index, duration, result.Len(), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		log.WithError(err).WithField("statement", statement).Error("Query failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("sphinxql.rows", result.Len()))
	span.SetStatus(codes.Ok, "")
	log.WithFields(logrus.Fields{
		"rows":        result.Len(),
		"duration_ms": duration.Milliseconds(),
	}).Debug("Query completed")

	return result, nil
}

func (c *Client) run(ctx context.Context, statement string) (*sphinxql.ResultSet, error) {
	conn, err := c.conns.Replica().Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	result, err := scanResultSet(rows)
	if err != nil {
		return nil, err
	}

	if c.withMeta {
		meta, err := readMeta(ctx, conn)
		if err != nil {
			return nil, err
		}
		result.Meta = meta
	}
	return result, nil
}

// scanResultSet reads every row into a map keyed by column name. Byte
// slices become strings and NULL stays nil.
func scanResultSet(rows *sql.Rows) (*sphinxql.ResultSet, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &sphinxql.ResultSet{
		Columns: columns,
		Rows:    make([]sphinxql.Row, 0),
	}

	values := make([]interface{}, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(sphinxql.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return result, nil
}

// readMeta runs SHOW META, which reports on the previous statement of the same session
func readMeta(ctx context.Context, conn *sql.Conn) (map[string]string, error) {
	rows, err := conn.QueryContext(ctx, showMeta)
	if err != nil {
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan meta: %w", err)
		}
		meta[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meta: %w", err)
	}
	return meta, nil
}

// Exec runs a raw statement (FLUSH RTINDEX, OPTIMIZE INDEX, ...) on the
// primary and returns the number of affected rows.
func (c *Client) Exec(ctx context.Context, statement string) (int64, error) {
	ctx, span := clientTracer.Start(ctx, "Exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sphinxql"),
			attribute.String("db.statement", statement),
		),
	)
	defer span.End()

	res, err := c.conns.Primary().ExecContext(ctx, statement)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exec failed")
		return 0, fmt.Errorf("failed to execute statement: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	span.SetAttributes(attribute.Int64("sphinxql.rows_affected", affected))
	return affected, nil
}

// QueryBatch runs the builders concurrently and returns their results in
// input order. The first failure cancels the remaining statements.
func (c *Client) QueryBatch(ctx context.Context, queries ...*sphinxql.Query) ([]*sphinxql.ResultSet, error) {
	results := make([]*sphinxql.ResultSet, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			result, err := c.Query(gctx, q)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
