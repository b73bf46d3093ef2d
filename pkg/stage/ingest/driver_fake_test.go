package ingest

import (
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

// fakeDriver is an in-process database/sql driver that records every
// statement it receives and serves canned query results, so the stage
// can be exercised without a MySQL server.
type fakeDriver struct {
	mu       sync.Mutex
	execs    []execCall
	result   *resultSet
	execErr  error
	queryErr error
}

type execCall struct {
	query string
	args  []driver.Value
}

type resultSet struct {
	columns []string
	rows    [][]driver.Value
}

var fake = &fakeDriver{}

func init() {
	sql.Register("farepipe_fake", fake)
}

func (d *fakeDriver) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs = nil
	d.result = nil
	d.execErr = nil
	d.queryErr = nil
}

func (d *fakeDriver) calls() []execCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]execCall, len(d.execs))
	copy(out, d.execs)
	return out
}

func (d *fakeDriver) record(query string, args []driver.Value) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := make([]driver.Value, len(args))
	copy(copied, args)
	d.execs = append(d.execs, execCall{query: query, args: copied})
}

func (d *fakeDriver) Open(name string) (driver.Conn, error) {
	return &fakeConn{driver: d}, nil
}

type fakeConn struct {
	driver *fakeDriver
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{driver: c.driver, query: query}, nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, driver.ErrSkip
}

type fakeStmt struct {
	driver *fakeDriver
	query  string
}

func (s *fakeStmt) Close() error { return nil }

func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.driver.mu.Lock()
	err := s.driver.execErr
	s.driver.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.driver.record(s.query, args)
	return driver.RowsAffected(int64(len(args))), nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.driver.mu.Lock()
	err := s.driver.queryErr
	result := s.driver.result
	s.driver.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.driver.record(s.query, args)
	if result == nil {
		result = &resultSet{}
	}
	return &fakeRows{result: result}, nil
}

type fakeRows struct {
	result *resultSet
	cursor int
}

func (r *fakeRows) Columns() []string { return r.result.columns }

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.cursor >= len(r.result.rows) {
		return io.EOF
	}
	copy(dest, r.result.rows[r.cursor])
	r.cursor++
	return nil
}
