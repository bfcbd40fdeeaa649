// Package graph stores cross-references between catalog entries in
// Neo4j. Lookups are best-effort context enrichment; callers log and
// skip failures rather than failing the request.
package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// CypherResult iterates query records.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// CypherRunner executes a single cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is one unit of graph work.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener opens sessions; satisfied by the Neo4j driver adapter
// and by test fakes.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o *driverOpener) OpenSession(ctx context.Context) CypherSession {
	return &neoSession{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type neoSession struct {
	sess neo4j.SessionWithContext
}

func (s *neoSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	res, err := s.sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return &neoResult{res: res}, nil
}

func (s *neoSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&txRunner{tx: tx})
	})
}

func (s *neoSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

type txRunner struct {
	tx neo4j.ManagedTransaction
}

func (r *txRunner) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	res, err := r.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return &neoResult{res: res}, nil
}

type neoResult struct {
	res neo4j.ResultWithContext
}

func (r *neoResult) Next(ctx context.Context) bool { return r.res.Next(ctx) }
func (r *neoResult) Record() *neo4j.Record         { return r.res.Record() }
func (r *neoResult) Err() error                    { return r.res.Err() }
