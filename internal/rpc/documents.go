package rpc

import "github.com/FACorreiaa/bungmap/internal/types"

// DocumentServiceName is the fully-qualified name of the document service.
const DocumentServiceName = "bungmap.documents.v1.DocumentService"

// Document service procedures.
const (
	DocumentServiceListProcedure   = "/" + DocumentServiceName + "/List"
	DocumentServiceCreateProcedure = "/" + DocumentServiceName + "/Create"
	DocumentServiceUpdateProcedure = "/" + DocumentServiceName + "/Update"
	DocumentServiceDeleteProcedure = "/" + DocumentServiceName + "/Delete"
	DocumentServiceQueryProcedure  = "/" + DocumentServiceName + "/Query"
)

type ListRequest struct {
	Collection string `json:"collection"`
}

type DocumentsResponse struct {
	Documents []types.Document `json:"documents"`
}

type CreateRequest struct {
	Collection string       `json:"collection"`
	Fields     types.Fields `json:"fields"`
}

type CreateResponse struct {
	ID string `json:"id"`
}

type UpdateRequest struct {
	Collection string       `json:"collection"`
	ID         string       `json:"id"`
	Patch      types.Fields `json:"patch"`
}

type DeleteRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type QueryRequest struct {
	Collection string       `json:"collection"`
	Filter     types.Filter `json:"filter"`
}

// Empty is the acknowledgement returned by mutations without a result.
type Empty struct{}
