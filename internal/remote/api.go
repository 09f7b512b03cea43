// Package remote exposes the session contract over HTTP for automation.
//
// Every route is a POST with a JSON body and maps onto one service method.
// Keys and values travel as base64 strings. The server keeps no state of its
// own: a Put leaves a pending write in the service until a later Commit or
// Abort.
package remote

import (
	"github.com/roach88/boltview/internal/store"
)

// Route paths.
const (
	PathListDatabases = "/v1/databases:list"
	PathGet           = "/v1/get"
	PathPut           = "/v1/put"
	PathDelete        = "/v1/delete"
	PathCommit        = "/v1/commit"
	PathAbort         = "/v1/abort"
	PathStats         = "/v1/stats"
)

type ListDatabasesRequest struct{}

type ListDatabasesResponse struct {
	Names []string `json:"names"`
}

type GetRequest struct {
	DB  string `json:"db"`
	Key []byte `json:"key"`
}

type GetResponse struct {
	Value []byte `json:"value,omitempty"`
	Found bool   `json:"found"`
}

type PutRequest struct {
	DB    string `json:"db"`
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type PutResponse struct{}

type DeleteRequest struct {
	DB  string `json:"db"`
	Key []byte `json:"key"`
}

type DeleteResponse struct{}

type CommitRequest struct{}

type CommitResponse struct{}

type AbortRequest struct{}

type AbortResponse struct{}

type StatsRequest struct {
	DB string `json:"db"`
}

type StatsResponse struct {
	Stats store.DBStats `json:"stats"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
