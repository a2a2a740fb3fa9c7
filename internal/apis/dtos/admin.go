package dtos

import "mongolens/pkg/dbmanager"

// Response is the generic wrapper for ambient endpoints like /health
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *string     `json:"error,omitempty"`
}

// ErrorResponse is the boundary form of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

type ConnectRequest struct {
	ConnectionString string `json:"connectionString" binding:"required"`
}

type DatabaseInfo struct {
	Name       string `json:"name"`
	SizeOnDisk int64  `json:"sizeOnDisk"`
	Empty      bool   `json:"empty"`
}

type ConnectResponse struct {
	Success   bool           `json:"success"`
	Databases []DatabaseInfo `json:"databases"`
}

type DatabasesResponse struct {
	Databases []DatabaseInfo `json:"databases"`
}

type StatusResponse struct {
	Connected        bool   `json:"connected"`
	ConnectionString string `json:"connectionString,omitempty"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type CollectionInfo struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type CollectionsResponse struct {
	Collections []CollectionInfo `json:"collections"`
}

type CreateCollectionRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListDocumentsRequest carries the query parameters of a paginated fetch
type ListDocumentsRequest struct {
	Limit  int64
	Cursor string
	Filter string
	Search string
	View   string
}

type DocumentsResponse struct {
	Documents  []*dbmanager.TaggedDoc    `json:"documents"`
	NextCursor *string                   `json:"nextCursor"`
	HasMore    bool                      `json:"hasMore"`
	TotalCount int64                     `json:"totalCount"`
	Columns    []string                  `json:"columns,omitempty"`
	Rows       [][]dbmanager.CellDisplay `json:"rows,omitempty"`
}

type DocumentResponse struct {
	Document *dbmanager.TaggedDoc `json:"document"`
}

type InsertResponse struct {
	Success    bool   `json:"success"`
	InsertedID string `json:"insertedId"`
}

type UpdateResponse struct {
	Success       bool  `json:"success"`
	ModifiedCount int64 `json:"modifiedCount"`
}

type SchemaResponse struct {
	Schema *dbmanager.SchemaResult `json:"schema"`
}

type IndexInfo struct {
	Name   string                 `json:"name"`
	Keys   map[string]interface{} `json:"keys"`
	Unique bool                   `json:"unique"`
	Sparse bool                   `json:"sparse"`
}

type IndexesResponse struct {
	Indexes []IndexInfo `json:"indexes"`
}

type ReferencesResponse struct {
	References map[string]*dbmanager.TaggedDoc `json:"references"`
	Unresolved int                             `json:"unresolved"`
}
