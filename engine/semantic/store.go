package semantic

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// upsertBatch bounds the number of points per Upsert request.
const upsertBatch = 256

// pointIDSpace namespaces the deterministic point IDs.
var pointIDSpace = uuid.MustParse("6f1c9a52-3d0b-4a8e-9c57-2b8e4f0d7a13")

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	ListAliases(ctx context.Context, in *pb.ListAliasesRequest, opts ...grpc.CallOption) (*pb.ListAliasesResponse, error)
	UpdateAliases(ctx context.Context, in *pb.ChangeAliases, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations. The configured
// collection name is an alias over versioned collections named
// <alias>_<unix-nanos>. Replace fills a new version and repoints the alias in
// one UpdateAliases call; the version it replaced is kept for snapshots still
// reading it and dropped by the following Replace.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	now         func() time.Time
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	vs := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	vs.conn = conn
	return vs, nil
}

// NewWithClients builds a VectorStore over existing clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection, now: time.Now}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

func (v *VectorStore) collectionNames(ctx context.Context) ([]string, error) {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("semantic: list collections: %w", err)
	}
	names := make([]string, 0, len(list.GetCollections()))
	for _, c := range list.GetCollections() {
		names = append(names, c.GetName())
	}
	return names, nil
}

// current resolves the alias to the collection it points at. A plain
// collection carrying the alias name, as written by earlier versions of the
// store, is reported with legacy set.
func (v *VectorStore) current(ctx context.Context) (name string, legacy bool, err error) {
	aliases, err := v.collections.ListAliases(ctx, &pb.ListAliasesRequest{})
	if err != nil {
		return "", false, fmt.Errorf("semantic: list aliases: %w", err)
	}
	for _, a := range aliases.GetAliases() {
		if a.GetAliasName() == v.collection {
			return a.GetCollectionName(), false, nil
		}
	}
	names, err := v.collectionNames(ctx)
	if err != nil {
		return "", false, err
	}
	for _, n := range names {
		if n == v.collection {
			return n, true, nil
		}
	}
	return "", false, nil
}

func (v *VectorStore) create(ctx context.Context, name string, dims int) error {
	_, err := v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", name, err)
	}
	return nil
}

func (v *VectorStore) drop(ctx context.Context, name string) error {
	if _, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", name, err)
	}
	return nil
}

// isVersion reports whether name is one of the alias's versioned collections.
func (v *VectorStore) isVersion(name string) bool {
	suffix, ok := strings.CutPrefix(name, v.collection+"_")
	if !ok {
		return false
	}
	_, err := strconv.ParseInt(suffix, 10, 64)
	return err == nil
}

// DeleteCollection removes the alias and every versioned collection behind it.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	cur, legacy, err := v.current(ctx)
	if err != nil {
		return err
	}
	if cur != "" && !legacy {
		if err := v.repoint(ctx, "", true); err != nil {
			return err
		}
	}
	names, err := v.collectionNames(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == v.collection || v.isVersion(n) {
			if err := v.drop(ctx, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// repoint moves the alias to target in one UpdateAliases call. An empty
// target only removes the alias.
func (v *VectorStore) repoint(ctx context.Context, target string, hadAlias bool) error {
	var actions []*pb.AliasOperations
	if hadAlias {
		actions = append(actions, &pb.AliasOperations{Action: &pb.AliasOperations_DeleteAlias{
			DeleteAlias: &pb.DeleteAlias{AliasName: v.collection},
		}})
	}
	if target != "" {
		actions = append(actions, &pb.AliasOperations{Action: &pb.AliasOperations_CreateAlias{
			CreateAlias: &pb.CreateAlias{CollectionName: target, AliasName: v.collection},
		}})
	}
	if len(actions) == 0 {
		return nil
	}
	if _, err := v.collections.UpdateAliases(ctx, &pb.ChangeAliases{Actions: actions}); err != nil {
		return fmt.Errorf("semantic: point alias %s at %q: %w", v.collection, target, err)
	}
	return nil
}

// Replace implements Store. The new version is filled completely before the
// alias moves; on failure it is dropped and the alias keeps its target.
func (v *VectorStore) Replace(ctx context.Context, records []Record) error {
	prev, legacy, err := v.current(ctx)
	if err != nil {
		return err
	}
	hadAlias := prev != "" && !legacy

	next := ""
	if len(records) > 0 {
		next = fmt.Sprintf("%s_%d", v.collection, v.now().UnixNano())
		if err := v.fill(ctx, next, records); err != nil {
			_ = v.drop(context.WithoutCancel(ctx), next)
			return err
		}
	}

	// An alias cannot share its name with a collection.
	if legacy {
		if err := v.drop(ctx, prev); err != nil {
			return err
		}
	}
	if err := v.repoint(ctx, next, hadAlias); err != nil {
		if next != "" && !legacy {
			_ = v.drop(context.WithoutCancel(ctx), next)
		}
		return err
	}
	v.prune(ctx, next, prev)
	return nil
}

func (v *VectorStore) fill(ctx context.Context, name string, records []Record) error {
	if err := v.create(ctx, name, len(records[0].Embedding)); err != nil {
		return err
	}
	for start := 0; start < len(records); start += upsertBatch {
		end := min(start+upsertBatch, len(records))
		if err := v.upsert(ctx, name, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// prune drops versions other than keep. Failures are left for the next
// Replace to retry.
func (v *VectorStore) prune(ctx context.Context, keep ...string) {
	names, err := v.collectionNames(ctx)
	if err != nil {
		return
	}
	for _, n := range names {
		if v.isVersion(n) && !slices.Contains(keep, n) {
			_ = v.drop(ctx, n)
		}
	}
}

// PointID returns the deterministic point ID of a record.
func PointID(r Record) string {
	return uuid.NewSHA1(pointIDSpace, []byte(r.Source+"#"+strconv.Itoa(r.ChunkIndex))).String()
}

func (v *VectorStore) upsert(ctx context.Context, collection string, records []Record) error {
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"text":        {Kind: &pb.Value_StringValue{StringValue: r.Text}},
				"source":      {Kind: &pb.Value_StringValue{StringValue: r.Source}},
				"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.ChunkIndex)}},
				"page":        {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Page)}},
			},
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Open implements Store. The returned snapshot is pinned to the collection
// the alias pointed at when it was opened.
func (v *VectorStore) Open(ctx context.Context) (Snapshot, bool, error) {
	name, _, err := v.current(ctx)
	if err != nil || name == "" {
		return nil, false, err
	}
	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{CollectionName: name, Exact: &exact})
	if err != nil {
		return nil, false, fmt.Errorf("semantic: count %s: %w", name, err)
	}
	n := int(resp.GetResult().GetCount())
	if n == 0 {
		return nil, false, nil
	}
	return &remoteSnapshot{store: v, collection: name, size: n}, true, nil
}

type remoteSnapshot struct {
	store      *VectorStore
	collection string
	size       int
}

func (s *remoteSnapshot) Len() int { return s.size }

func (s *remoteSnapshot) Search(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	return s.store.search(ctx, s.collection, embedding, k)
}

// Search performs k-NN similarity search through the alias.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, topK int) ([]Hit, error) {
	return v.search(ctx, v.collection, embedding, topK)
}

func (v *VectorStore) search(ctx context.Context, collection string, embedding []float32, topK int) ([]Hit, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search %s: %w", collection, err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := r.GetPayload()
		hits[i] = Hit{
			Record: Record{
				Text:       p["text"].GetStringValue(),
				Source:     p["source"].GetStringValue(),
				ChunkIndex: int(p["chunk_index"].GetIntegerValue()),
				Page:       int(p["page"].GetIntegerValue()),
			},
			Score: r.GetScore(),
		}
	}
	return hits, nil
}
