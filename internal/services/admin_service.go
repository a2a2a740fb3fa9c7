package services

import (
	"context"
	"log"
	"net/http"

	"mongolens/internal/apis/dtos"
	"mongolens/internal/utils"
	"mongolens/pkg/dbmanager"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AdminService orchestrates every store access for the HTTP surface
type AdminService interface {
	Connect(ctx context.Context, req *dtos.ConnectRequest) (*dtos.ConnectResponse, uint32, error)
	Status(ctx context.Context) (*dtos.StatusResponse, uint32, error)
	Disconnect(ctx context.Context) (*dtos.SuccessResponse, uint32, error)

	ListDatabases(ctx context.Context) (*dtos.DatabasesResponse, uint32, error)
	ListCollections(ctx context.Context, database string) (*dtos.CollectionsResponse, uint32, error)
	CreateCollection(ctx context.Context, database, name string) (*dtos.SuccessResponse, uint32, error)
	DropCollection(ctx context.Context, database, collection string) (*dtos.SuccessResponse, uint32, error)

	ListDocuments(ctx context.Context, database, collection string, req *dtos.ListDocumentsRequest) (*dtos.DocumentsResponse, uint32, error)
	GetDocument(ctx context.Context, database, collection, id string) (*dtos.DocumentResponse, uint32, error)
	CreateDocument(ctx context.Context, database, collection string, body []byte) (*dtos.InsertResponse, uint32, error)
	UpdateDocument(ctx context.Context, database, collection, id string, body []byte) (*dtos.UpdateResponse, uint32, error)
	DeleteDocument(ctx context.Context, database, collection, id string) (*dtos.SuccessResponse, uint32, error)

	GetSchema(ctx context.Context, database, collection string, sampleSize int) (*dtos.SchemaResponse, uint32, error)
	ListIndexes(ctx context.Context, database, collection string) (*dtos.IndexesResponse, uint32, error)
	ResolveReferences(ctx context.Context, database, collection, id string, maxProbes int) (*dtos.ReferencesResponse, uint32, error)
}

type adminService struct {
	manager          *dbmanager.Manager
	maxPageSize      int64
	schemaSampleSize int
	referenceOpts    dbmanager.ReferenceOptions
}

// NewAdminService creates the admin service on top of the connection manager
func NewAdminService(manager *dbmanager.Manager, maxPageSize, schemaSampleSize int, referenceOpts dbmanager.ReferenceOptions) AdminService {
	if schemaSampleSize <= 0 {
		schemaSampleSize = dbmanager.DefaultSchemaSampleSize
	}
	return &adminService{
		manager:          manager,
		maxPageSize:      int64(maxPageSize),
		schemaSampleSize: schemaSampleSize,
		referenceOpts:    referenceOpts,
	}
}

// fail maps a dbmanager error to its boundary status code
func fail(err error) (uint32, error) {
	return uint32(dbmanager.HTTPStatus(err)), err
}

func (s *adminService) Connect(ctx context.Context, req *dtos.ConnectRequest) (*dtos.ConnectResponse, uint32, error) {
	conn, err := s.manager.Connect(ctx, req.ConnectionString)
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	databases, err := listDatabases(ctx, conn.Client)
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	return &dtos.ConnectResponse{Success: true, Databases: databases}, http.StatusOK, nil
}

func (s *adminService) Status(ctx context.Context) (*dtos.StatusResponse, uint32, error) {
	connected, masked := s.manager.Status(ctx)
	return &dtos.StatusResponse{Connected: connected, ConnectionString: masked}, http.StatusOK, nil
}

func (s *adminService) Disconnect(ctx context.Context) (*dtos.SuccessResponse, uint32, error) {
	if err := s.manager.Disconnect(ctx); err != nil {
		code, err := fail(err)
		return nil, code, err
	}
	return &dtos.SuccessResponse{Success: true}, http.StatusOK, nil
}

func (s *adminService) ListDatabases(ctx context.Context) (*dtos.DatabasesResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	databases, err := listDatabases(ctx, conn.Client)
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}
	return &dtos.DatabasesResponse{Databases: databases}, http.StatusOK, nil
}

func listDatabases(ctx context.Context, client *mongo.Client) ([]dtos.DatabaseInfo, error) {
	result, err := client.ListDatabases(ctx, bson.M{})
	if err != nil {
		return nil, dbmanager.NewStoreError("failed to list databases", err)
	}

	databases := make([]dtos.DatabaseInfo, 0, len(result.Databases))
	for _, db := range result.Databases {
		databases = append(databases, dtos.DatabaseInfo{
			Name:       db.Name,
			SizeOnDisk: db.SizeOnDisk,
			Empty:      db.Empty,
		})
	}
	return databases, nil
}

func (s *adminService) ListCollections(ctx context.Context, database string) (*dtos.CollectionsResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	db := conn.Client.Database(database)
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to list collections", err))
		return nil, code, err
	}

	collections := make([]dtos.CollectionInfo, 0, len(names))
	for _, name := range names {
		count, err := db.Collection(name).EstimatedDocumentCount(ctx)
		if err != nil {
			log.Printf("AdminService -> ListCollections -> Error counting %s: %v", name, err)
			count = 0
		}
		collections = append(collections, dtos.CollectionInfo{Name: name, Count: count})
	}
	return &dtos.CollectionsResponse{Collections: collections}, http.StatusOK, nil
}

func (s *adminService) CreateCollection(ctx context.Context, database, name string) (*dtos.SuccessResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	if err := conn.Client.Database(database).CreateCollection(ctx, name); err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to create collection", err))
		return nil, code, err
	}
	return &dtos.SuccessResponse{Success: true}, http.StatusOK, nil
}

func (s *adminService) DropCollection(ctx context.Context, database, collection string) (*dtos.SuccessResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	if err := conn.Client.Database(database).Collection(collection).Drop(ctx); err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to drop collection", err))
		return nil, code, err
	}
	return &dtos.SuccessResponse{Success: true}, http.StatusOK, nil
}

func (s *adminService) ListDocuments(ctx context.Context, database, collection string, req *dtos.ListDocumentsRequest) (*dtos.DocumentsResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}
	coll := conn.Client.Database(database).Collection(collection)

	filter, err := dbmanager.ParseFilter(req.Filter)
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	var cursor *dbmanager.Cursor
	if req.Cursor != "" {
		cursor, err = dbmanager.DecodeCursor(req.Cursor)
		if err != nil {
			code, err := fail(err)
			return nil, code, err
		}
	}

	// one sample document drives searchable-field detection
	var sample bson.M
	if req.Search != "" {
		if err := coll.FindOne(ctx, bson.M{}).Decode(&sample); err != nil && err != mongo.ErrNoDocuments {
			log.Printf("AdminService -> ListDocuments -> Error sampling for search: %v", err)
		}
	}

	limit := dbmanager.ClampPageSize(req.Limit, s.maxPageSize)
	query := dbmanager.BuildListQuery(dbmanager.PageRequest{
		Filter: filter,
		Search: req.Search,
		Cursor: cursor,
		Limit:  limit,
	}, sample)

	// one extra row detects hasMore without a second count query
	findOpts := options.Find().SetSort(dbmanager.PageSort()).SetLimit(limit + 1)
	result, err := coll.Find(ctx, query, findOpts)
	if err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to query documents", err))
		return nil, code, err
	}

	var docs []bson.D
	if err := result.All(ctx, &docs); err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to decode documents", err))
		return nil, code, err
	}

	hasMore := int64(len(docs)) > limit
	if hasMore {
		docs = docs[:limit]
	}

	totalCount, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		log.Printf("AdminService -> ListDocuments -> Error estimating count: %v", err)
		totalCount = 0
	}

	response := &dtos.DocumentsResponse{
		Documents:  make([]*dbmanager.TaggedDoc, 0, len(docs)),
		HasMore:    hasMore,
		TotalCount: totalCount,
	}
	for _, doc := range docs {
		response.Documents = append(response.Documents, dbmanager.SerializeDocument(doc))
	}

	if hasMore && len(docs) > 0 {
		next := dbmanager.CursorFromDocument(docs[len(docs)-1])
		response.NextCursor = utils.ToStringPtr(dbmanager.EncodeCursor(next))
	}

	if req.View == "table" {
		response.Columns = dbmanager.TableColumns(docs)
		response.Rows = dbmanager.TableRows(docs, response.Columns)
	}

	return response, http.StatusOK, nil
}

func (s *adminService) GetDocument(ctx context.Context, database, collection, id string) (*dtos.DocumentResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	var doc bson.D
	err = conn.Client.Database(database).Collection(collection).
		FindOne(ctx, bson.M{"_id": dbmanager.ParseDocumentID(id)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		code, err := fail(dbmanager.NewNotFoundError("Document not found"))
		return nil, code, err
	}
	if err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to fetch document", err))
		return nil, code, err
	}

	return &dtos.DocumentResponse{Document: dbmanager.SerializeDocument(doc)}, http.StatusOK, nil
}

func (s *adminService) CreateDocument(ctx context.Context, database, collection string, body []byte) (*dtos.InsertResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	doc, err := dbmanager.ParseDocumentJSON(body)
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	result, err := conn.Client.Database(database).Collection(collection).InsertOne(ctx, doc)
	if err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to insert document", err))
		return nil, code, err
	}

	return &dtos.InsertResponse{
		Success:    true,
		InsertedID: dbmanager.FormatDocumentID(result.InsertedID),
	}, http.StatusOK, nil
}

func (s *adminService) UpdateDocument(ctx context.Context, database, collection, id string, body []byte) (*dtos.UpdateResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	doc, err := dbmanager.ParseDocumentJSON(body)
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	// the identifying field is immutable; the path id wins over any body copy
	replacement := make(bson.D, 0, len(doc))
	for _, elem := range doc {
		if elem.Key == "_id" {
			continue
		}
		replacement = append(replacement, elem)
	}

	result, err := conn.Client.Database(database).Collection(collection).
		ReplaceOne(ctx, bson.M{"_id": dbmanager.ParseDocumentID(id)}, replacement)
	if err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to update document", err))
		return nil, code, err
	}
	if result.MatchedCount == 0 {
		code, err := fail(dbmanager.NewNotFoundError("Document not found"))
		return nil, code, err
	}

	return &dtos.UpdateResponse{Success: true, ModifiedCount: result.ModifiedCount}, http.StatusOK, nil
}

func (s *adminService) DeleteDocument(ctx context.Context, database, collection, id string) (*dtos.SuccessResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	result, err := conn.Client.Database(database).Collection(collection).
		DeleteOne(ctx, bson.M{"_id": dbmanager.ParseDocumentID(id)})
	if err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to delete document", err))
		return nil, code, err
	}
	if result.DeletedCount == 0 {
		code, err := fail(dbmanager.NewNotFoundError("Document not found"))
		return nil, code, err
	}

	return &dtos.SuccessResponse{Success: true}, http.StatusOK, nil
}

func (s *adminService) GetSchema(ctx context.Context, database, collection string, sampleSize int) (*dtos.SchemaResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	if sampleSize <= 0 {
		sampleSize = s.schemaSampleSize
	}
	schema, err := dbmanager.InferSchema(ctx, conn.Client.Database(database).Collection(collection), sampleSize)
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}
	return &dtos.SchemaResponse{Schema: schema}, http.StatusOK, nil
}

func (s *adminService) ListIndexes(ctx context.Context, database, collection string) (*dtos.IndexesResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	cursor, err := conn.Client.Database(database).Collection(collection).Indexes().List(ctx)
	if err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to list indexes", err))
		return nil, code, err
	}
	defer cursor.Close(ctx)

	indexes := make([]dtos.IndexInfo, 0)
	for cursor.Next(ctx) {
		var idx bson.M
		if err := cursor.Decode(&idx); err != nil {
			log.Printf("AdminService -> ListIndexes -> Error decoding index: %v", err)
			continue
		}

		name, _ := idx["name"].(string)
		unique, _ := idx["unique"].(bool)
		sparse, _ := idx["sparse"].(bool)

		keys := make(map[string]interface{})
		if keyDoc, ok := idx["key"].(bson.D); ok {
			for _, key := range keyDoc {
				keys[key.Key] = key.Value
			}
		}

		indexes = append(indexes, dtos.IndexInfo{Name: name, Keys: keys, Unique: unique, Sparse: sparse})
	}
	if err := cursor.Err(); err != nil {
		code, err := fail(dbmanager.NewStoreError("error iterating indexes", err))
		return nil, code, err
	}

	return &dtos.IndexesResponse{Indexes: indexes}, http.StatusOK, nil
}

func (s *adminService) ResolveReferences(ctx context.Context, database, collection, id string, maxProbes int) (*dtos.ReferencesResponse, uint32, error) {
	conn, err := s.manager.Current()
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}
	db := conn.Client.Database(database)

	var doc bson.D
	err = db.Collection(collection).FindOne(ctx, bson.M{"_id": dbmanager.ParseDocumentID(id)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		code, err := fail(dbmanager.NewNotFoundError("Document not found"))
		return nil, code, err
	}
	if err != nil {
		code, err := fail(dbmanager.NewStoreError("failed to fetch document", err))
		return nil, code, err
	}

	opts := s.referenceOpts
	if maxProbes > 0 && maxProbes < opts.MaxProbes {
		opts.MaxProbes = maxProbes
	}

	result, err := dbmanager.ResolveReferences(ctx, db, doc, opts)
	if err != nil {
		code, err := fail(err)
		return nil, code, err
	}

	return &dtos.ReferencesResponse{
		References: result.References,
		Unresolved: result.Unresolved,
	}, http.StatusOK, nil
}
