// Package locality persists the ingest-time chunk-neighbor annotation in
// Neo4j. Chunks become (:Chunk {doc_id, position}) nodes linked by ranked
// [:NEAR] relationships, which gives offline tooling a way to walk a
// document's semantic neighborhood without touching the vector index.
package locality

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store provides chunk-graph operations on a Neo4j driver.
type Store struct {
	driver neo4j.DriverWithContext
}

// New creates a Store on an existing driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{driver: driver}
}

// Connect opens a driver, verifies connectivity, and returns a Store.
func Connect(ctx context.Context, uri, user, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("locality: open driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("locality: verify connectivity: %w", err)
	}
	return New(driver), nil
}

// Close shuts down the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// SaveChunkGraph replaces the chunk graph for a document in a single
// transaction. neighbors[i] lists chunk i's nearest chunk indices, nearest
// first; the leading self-reference is skipped when present.
func (s *Store) SaveChunkGraph(ctx context.Context, docID string, chunkCount int, neighbors [][]int) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	rows := neighborRows(neighbors)
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Re-ingest replaces the graph wholesale.
		if _, err := tx.Run(ctx,
			`MATCH (c:Chunk {doc_id: $doc}) DETACH DELETE c`,
			map[string]any{"doc": docID}); err != nil {
			return nil, err
		}
		for pos := 0; pos < chunkCount; pos++ {
			if _, err := tx.Run(ctx,
				`MERGE (c:Chunk {doc_id: $doc, position: $pos})`,
				map[string]any{"doc": docID, "pos": pos}); err != nil {
				return nil, err
			}
		}
		for _, row := range rows {
			if _, err := tx.Run(ctx,
				`MATCH (a:Chunk {doc_id: $doc, position: $from}),
				       (b:Chunk {doc_id: $doc, position: $to})
				 MERGE (a)-[r:NEAR]->(b)
				 SET r.rank = $rank`,
				map[string]any{"doc": docID, "from": row.from, "to": row.to, "rank": row.rank}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("locality: save chunk graph for %s: %w", docID, err)
	}
	return nil
}

// NeighborPositions returns the neighbor chunk positions for one chunk,
// nearest first.
func (s *Store) NeighborPositions(ctx context.Context, docID string, position int) ([]int, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	result, err := sess.Run(ctx,
		`MATCH (:Chunk {doc_id: $doc, position: $pos})-[r:NEAR]->(b:Chunk)
		 RETURN b.position AS position ORDER BY r.rank`,
		map[string]any{"doc": docID, "pos": position})
	if err != nil {
		return nil, err
	}

	var positions []int
	for result.Next(ctx) {
		v, ok := result.Record().Get("position")
		if !ok {
			continue
		}
		if p, ok := v.(int64); ok {
			positions = append(positions, int(p))
		}
	}
	return positions, result.Err()
}

// DeleteDocument removes a document's chunk graph.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	_, err := sess.Run(ctx,
		`MATCH (c:Chunk {doc_id: $doc}) DETACH DELETE c`,
		map[string]any{"doc": docID})
	if err != nil {
		return fmt.Errorf("locality: delete document %s: %w", docID, err)
	}
	return nil
}

type neighborRow struct {
	from, to, rank int
}

// neighborRows flattens the per-chunk neighbor lists into relationship
// rows, dropping self-references and ranking the rest nearest-first from 1.
func neighborRows(neighbors [][]int) []neighborRow {
	var rows []neighborRow
	for from, nbrs := range neighbors {
		rank := 0
		for _, to := range nbrs {
			if to == from {
				continue
			}
			rank++
			rows = append(rows, neighborRow{from: from, to: to, rank: rank})
		}
	}
	return rows
}
