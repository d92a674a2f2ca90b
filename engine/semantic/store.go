package semantic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// scrollPageSize bounds one page of the ListDocuments scan.
const scrollPageSize = 256

// pointsAPI is the subset of the Qdrant points service the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

// collectionsAPI is the subset of the Qdrant collections service the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the Qdrant-backed Index implementation. It is the sole
// owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	dim         int
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr, collection string, dim int) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dim:         dim,
	}, nil
}

// NewWithClients creates a VectorStore over pre-built service clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string, dim int) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection, dim: dim}
}

// Close closes the underlying gRPC connection, if one was dialled.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// Ping verifies the Qdrant endpoint is reachable.
func (v *VectorStore) Ping(ctx context.Context) error {
	if _, err := v.collections.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("semantic: ping qdrant: %w", err)
	}
	return nil
}

// Initialize recreates the collection with the configured dimension and
// cosine distance, discarding any prior contents. A concurrent creator
// winning the race is treated as success, so the call is idempotent.
func (v *VectorStore) Initialize(ctx context.Context) error {
	if _, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection}); err != nil && !isNotFound(err) {
		return fmt.Errorf("semantic: drop collection %s: %w", v.collection, err)
	}
	return v.createCollection(ctx)
}

// ensureCollection creates the collection if it does not exist yet.
func (v *VectorStore) ensureCollection(ctx context.Context) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}
	return v.createCollection(ctx)
}

func (v *VectorStore) createCollection(ctx context.Context) error {
	_, err := v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(v.dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores one record per chunk under docID. Each record gets a fresh
// UUID, its position in the input sequence, and a creation timestamp. A
// missing collection is created and the write retried exactly once with the
// same point ids, so the retry can neither lose nor duplicate records.
func (v *VectorStore) Upsert(ctx context.Context, docID string, chunks []string, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("semantic: upsert: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	createdAt := time.Now().UTC().Format(time.RFC3339Nano)
	points := make([]*pb.PointStruct, len(chunks))
	for i, text := range chunks {
		if len(embeddings[i]) != v.dim {
			return fmt.Errorf("semantic: upsert chunk %d: vector has %d dims, want %d", i, len(embeddings[i]), v.dim)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embeddings[i]},
				},
			},
			Payload: map[string]*pb.Value{
				"text":       {Kind: &pb.Value_StringValue{StringValue: text}},
				"doc_id":     {Kind: &pb.Value_StringValue{StringValue: docID}},
				"position":   {Kind: &pb.Value_IntegerValue{IntegerValue: int64(i)}},
				"created_at": {Kind: &pb.Value_StringValue{StringValue: createdAt}},
			},
		}
	}

	wait := true
	req := &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	}
	_, err := v.points.Upsert(ctx, req)
	if err != nil && isNotFound(err) {
		if err = v.ensureCollection(ctx); err != nil {
			return err
		}
		_, err = v.points.Upsert(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points for doc %s: %w", len(points), docID, err)
	}
	return nil
}

// Search returns up to limit results ranked by descending cosine similarity.
// A non-empty docID restricts candidates before ranking; Qdrant applies the
// filter ahead of scoring, so recall is not reduced below limit when enough
// matching records exist. A missing collection is created lazily and yields
// an empty result set.
func (v *VectorStore) Search(ctx context.Context, vector []float32, limit int, docID string) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if docID != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch("doc_id", docID)}}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		if isNotFound(err) {
			if ensureErr := v.ensureCollection(ctx); ensureErr != nil {
				return nil, ensureErr
			}
			return nil, nil
		}
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, p := range resp.GetResult() {
		results[i] = resultFromPayload(p.GetPayload(), p.GetScore())
	}
	return results, nil
}

// ListDocuments scans every record page by page and aggregates chunk counts
// per doc id. A missing collection is created lazily and yields an empty list.
func (v *VectorStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	counts := make(map[string]int)
	var order []string

	limit := uint32(scrollPageSize)
	var offset *pb.PointId
	for {
		resp, err := v.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: v.collection,
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: false}},
		})
		if err != nil {
			if isNotFound(err) {
				if ensureErr := v.ensureCollection(ctx); ensureErr != nil {
					return nil, ensureErr
				}
				return nil, nil
			}
			return nil, fmt.Errorf("semantic: scroll: %w", err)
		}

		for _, p := range resp.GetResult() {
			docID := p.GetPayload()["doc_id"].GetStringValue()
			if docID == "" {
				continue
			}
			if _, seen := counts[docID]; !seen {
				order = append(order, docID)
			}
			counts[docID]++
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	docs := make([]DocumentInfo, len(order))
	for i, id := range order {
		docs[i] = DocumentInfo{DocID: id, ChunkCount: counts[id]}
	}
	return docs, nil
}

// DeleteDocument removes all records for docID in one filtered delete.
// found is false when the collection itself does not exist.
func (v *VectorStore) DeleteDocument(ctx context.Context, docID string) (bool, error) {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{Must: []*pb.Condition{fieldMatch("doc_id", docID)}},
			},
		},
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("semantic: delete doc %s: %w", docID, err)
	}
	return true, nil
}

func resultFromPayload(payload map[string]*pb.Value, score float32) SearchResult {
	return SearchResult{
		Text:     payload["text"].GetStringValue(),
		DocID:    payload["doc_id"].GetStringValue(),
		Position: int(payload["position"].GetIntegerValue()),
		Score:    score,
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// isNotFound reports whether err is the backend's missing-collection
// condition, keyed off the gRPC status code rather than the message text.
func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
