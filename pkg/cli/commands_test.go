package cli

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sphinxql/pkg/client"
	"github.com/platinummonkey/sphinxql/pkg/config"
	"github.com/platinummonkey/sphinxql/pkg/sphinxql"
)

// useMockClient points openClient at a sqlmock database
func useMockClient(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	t.Setenv(config.FileEnvVar, "")

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	old := openClient
	openClient = func(cfg *config.Config, _ *logrus.Logger) (*client.Client, io.Closer, error) {
		logger, _ := test.NewNullLogger()
		conns := client.NewConnectionManagerFromDB(db)
		return client.New(conns, logger, nil).WithMeta(cfg.Sphinx.FetchMeta), conns, nil
	}
	t.Cleanup(func() { openClient = old })
	return mock
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "defaults",
			args: []string{"-index", "products"},
			want: "SELECT * FROM products LIMIT 0, 20",
		},
		{
			name: "no index",
			args: nil,
			want: "SELECT * FROM  LIMIT 0, 20",
		},
		{
			name: "everything",
			args: []string{
				"-index", "products", "-index", "products_delta",
				"-field", "id", "-field", "name=title",
				"-q", "O'Brien",
				"-filter", "price:gt:10",
				"-in", "brand:1,2",
				"-all", "tag:a,b",
				"-none", "status:0",
				"-order", "price:desc", "-order", "id",
				"-offset", "40", "-limit", "5",
			},
			want: `SELECT id AS id, title AS name FROM products,products_delta ` +
				`WHERE MATCH('O\'Brien') AND price > 10 AND brand IN (1, 2) AND tag IN (a) AND tag IN (b) AND status NOT IN (0) ` +
				`ORDER BY price DESC, id ASC LIMIT 40, 5`,
		},
		{
			name: "empty search term still matches",
			args: []string{"-index", "products", "-q", ""},
			want: "SELECT * FROM products WHERE MATCH('') LIMIT 0, 20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t)

			err := NewRootCommand().ExecuteArgs(append([]string{"render"}, tt.args...))
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", buf.String())
		})
	}
}

func TestRender_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad filter", []string{"-index", "i", "-filter", "price"}},
		{"bad order", []string{"-index", "i", "-order", "id:up"}},
		{"zero limit", []string{"-index", "i", "-limit", "0"}},
		{"negative offset", []string{"-index", "i", "-offset", "-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureOutput(t)
			err := NewRootCommand().ExecuteArgs(append([]string{"render"}, tt.args...))
			assert.ErrorIs(t, err, sphinxql.ErrInvalidParam)
		})
	}
}

func TestQuery(t *testing.T) {
	mock := useMockClient(t)
	buf := captureOutput(t)

	mock.ExpectQuery("SELECT id AS id, title AS title FROM products WHERE MATCH('phone') LIMIT 0, 2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(int64(1), []byte("phone")).
			AddRow(int64(2), []byte("phone case")))
	mock.ExpectQuery("SHOW META").
		WillReturnRows(sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("total_found", "2"))
	mock.ExpectClose()

	err := NewRootCommand().ExecuteArgs([]string{"query",
		"-index", "products", "-field", "id", "-field", "title", "-q", "phone", "-limit", "2", "-meta"})
	require.NoError(t, err)

	var out struct {
		Statement string                   `json:"statement"`
		Columns   []string                 `json:"columns"`
		Rows      []map[string]interface{} `json:"rows"`
		Meta      map[string]string        `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "SELECT id AS id, title AS title FROM products WHERE MATCH('phone') LIMIT 0, 2", out.Statement)
	assert.Equal(t, []string{"id", "title"}, out.Columns)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "phone case", out.Rows[1]["title"])
	assert.Equal(t, "2", out.Meta["total_found"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_NoIndex(t *testing.T) {
	mock := useMockClient(t)
	captureOutput(t)
	mock.ExpectClose()

	err := NewRootCommand().ExecuteArgs([]string{"query", "-q", "phone"})
	assert.ErrorIs(t, err, client.ErrNoIndex)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_InvalidFlagsDoNotConnect(t *testing.T) {
	t.Setenv(config.FileEnvVar, "")
	captureOutput(t)

	old := openClient
	openClient = func(*config.Config, *logrus.Logger) (*client.Client, io.Closer, error) {
		t.Fatal("should not connect")
		return nil, nil, nil
	}
	t.Cleanup(func() { openClient = old })

	err := NewRootCommand().ExecuteArgs([]string{"query", "-index", "products", "-filter", "nope"})
	assert.ErrorIs(t, err, sphinxql.ErrInvalidParam)
}

func TestQuery_FlagsOverrideConfig(t *testing.T) {
	t.Setenv(config.FileEnvVar, "")
	t.Setenv("SPHINXQL_PRIMARY_ADDR", "from-env:9306")
	t.Setenv("SPHINXQL_REPLICA_ADDRS", "replica:9306")
	captureOutput(t)

	var seen *config.Config
	old := openClient
	openClient = func(cfg *config.Config, _ *logrus.Logger) (*client.Client, io.Closer, error) {
		seen = cfg
		return nil, nil, errors.New("connection refused")
	}
	t.Cleanup(func() { openClient = old })

	err := NewRootCommand().ExecuteArgs([]string{"query",
		"-index", "products", "-addr", "from-flag:9306", "-user", "reader", "-meta"})
	assert.ErrorContains(t, err, "failed to connect to from-flag:9306: connection refused")

	require.NotNil(t, seen)
	assert.Equal(t, "from-flag:9306", seen.Sphinx.PrimaryAddr)
	assert.Empty(t, seen.Sphinx.ReplicaAddrs)
	assert.Equal(t, "reader", seen.Sphinx.User)
	assert.True(t, seen.Sphinx.FetchMeta)
}

func TestExec(t *testing.T) {
	mock := useMockClient(t)
	buf := captureOutput(t)

	mock.ExpectExec("FLUSH RTINDEX products").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	require.NoError(t, NewRootCommand().ExecuteArgs([]string{"exec", "FLUSH", "RTINDEX", "products"}))
	assert.Equal(t, "0 rows affected\n", buf.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExec_RequiresStatement(t *testing.T) {
	captureOutput(t)
	err := NewRootCommand().ExecuteArgs([]string{"exec"})
	assert.EqualError(t, err, "statement is required")
}
