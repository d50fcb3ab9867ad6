package mock

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/ridge/must/v2"
	"github.com/ridge/siltstone/thttp"
	"github.com/ridge/siltstone/tlog"
	"github.com/ridge/siltstone/txntime"
	"github.com/ridge/siltstone/wire"
	"github.com/ridge/tj"
)

// Server is an in-process Siltstone server.
//
// It evaluates a subset of query expressions against an in-memory store and
// serves streaming subscriptions backed by store watch channels. All requests
// must carry the configured secret as a bearer token.
type Server struct {
	DB     *DB
	secret string
}

// NewServer creates a mock server with an empty store
func NewServer(secret string) *Server {
	return &Server{DB: NewDB(), secret: secret}
}

// Router returns the HTTP handler of the server
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.Handle("/", thttp.Gzipped(http.HandlerFunc(s.handleQuery))).Methods(http.MethodPost)
	router.Handle("/ping", thttp.Gzipped(http.HandlerFunc(s.handlePing))).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/stream", s.handleStream).Methods(http.MethodPost)
	return thttp.StandardMiddleware(router)
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	token, err := thttp.BearerToken(r.Header)
	if err != nil || token != s.secret {
		thttp.JSONResult(tlog.Get(r.Context()), w, tj.O{
			"errors": tj.A{tj.O{"code": "unauthorized", "description": "Unauthorized"}},
		}, http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	thttp.JSONResult(tlog.Get(r.Context()), w, tj.O{"resource": "Scope write is OK"}, http.StatusOK)
}

// queryError is a user-visible evaluation failure
type queryError struct {
	status      int
	code        string
	description string
}

func (qe queryError) Error() string {
	return fmt.Sprintf("%s: %s", qe.code, qe.description)
}

func badRequest(description string) queryError {
	return queryError{status: http.StatusBadRequest, code: "invalid expression", description: description}
}

func notFound(description string) queryError {
	return queryError{status: http.StatusNotFound, code: "instance not found", description: description}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	logger := tlog.Get(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		thttp.JSONResult(logger, w, errorsBody(badRequest("failed to read request body")), http.StatusBadRequest)
		return
	}
	var expr map[string]any
	if err := json.Unmarshal(body, &expr); err != nil {
		thttp.JSONResult(logger, w, errorsBody(badRequest("request body is not a JSON object")), http.StatusBadRequest)
		return
	}

	resource, err := s.eval(expr)
	if err != nil {
		qe := queryError{status: http.StatusInternalServerError, code: "internal error", description: err.Error()}
		if known, ok := err.(queryError); ok {
			qe = known
		}
		thttp.JSONResult(logger, w, errorsBody(qe), qe.status)
		return
	}
	w.Header().Set(txntime.HeaderTxnTime, s.DB.LastTS().String())
	thttp.JSONResult(logger, w, tj.O{"resource": resource}, http.StatusOK)
}

func errorsBody(qe queryError) tj.O {
	return tj.O{"errors": tj.A{tj.O{"code": qe.code, "description": qe.description}}}
}

// eval evaluates a query expression. Only the expression forms produced by
// the query package are supported, one top-level operation per query.
func (s *Server) eval(expr map[string]any) (any, error) {
	switch {
	case expr["create_collection"] != nil:
		params := unwrapObject(expr["create_collection"])
		name, ok := params["name"].(string)
		if !ok {
			return nil, badRequest("create_collection requires a name")
		}
		collection, err := s.DB.CreateCollection(name)
		if err != nil {
			return nil, badRequest(err.Error())
		}
		return collectionJSON(collection), nil

	case expr["create"] != nil:
		collection, _, err := resolveRef(expr["create"])
		if err != nil {
			return nil, err
		}
		params := unwrapObject(expr["params"])
		doc, err := s.DB.CreateDocument(collection, unwrapObject(params["data"]))
		if err != nil {
			return nil, badRequest(err.Error())
		}
		return documentJSON(doc), nil

	case expr["get"] != nil:
		collection, id, err := resolveRef(expr["get"])
		if err != nil {
			return nil, err
		}
		doc, ok := s.DB.GetDocument(collection, id)
		if !ok {
			return nil, notFound(fmt.Sprintf("Document %s/%s not found.", collection, id))
		}
		return documentJSON(doc), nil

	case expr["update"] != nil:
		collection, id, err := resolveRef(expr["update"])
		if err != nil {
			return nil, err
		}
		params := unwrapObject(expr["params"])
		doc, err := s.DB.UpdateDocument(collection, id, unwrapObject(params["data"]))
		if err != nil {
			return nil, notFound(err.Error())
		}
		return documentJSON(doc), nil

	case expr["delete"] != nil:
		collection, id, err := resolveRef(expr["delete"])
		if err != nil {
			return nil, err
		}
		doc, err := s.DB.DeleteDocument(collection, id)
		if err != nil {
			return nil, notFound(err.Error())
		}
		return documentJSON(doc), nil

	case expr["paginate"] != nil:
		collection, err := resolveSet(expr["paginate"])
		if err != nil {
			return nil, err
		}
		refs := tj.A{}
		for _, doc := range s.DB.ListDocuments(collection) {
			refs = append(refs, docRefJSON(doc))
		}
		return tj.O{"data": refs}, nil

	default:
		return nil, badRequest("unsupported expression")
	}
}

// unwrapObject strips the {"object": ...} escaping from object literals
func unwrapObject(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	if inner, ok := m["object"].(map[string]any); ok {
		return inner
	}
	return m
}

// resolveRef extracts a collection name and document ID from a ref
// expression, accepting both the builder form {"ref": {"collection": name},
// "id": id} and the wire form {"@ref": {"id": id, "collection": ...}}.
//
// A bare collection ref resolves to an empty document ID.
func resolveRef(v any) (collection, id string, err error) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", "", badRequest("expected a ref")
	}
	if inner, ok := m["@ref"].(map[string]any); ok {
		id, _ := inner["id"].(string)
		parent, ok := inner["collection"].(map[string]any)
		if !ok {
			return id, "", nil
		}
		parentID, _, err := resolveRef(parent)
		if err != nil {
			return "", "", err
		}
		return parentID, id, nil
	}
	if ref, ok := m["ref"].(map[string]any); ok {
		collection, _ := ref["collection"].(string)
		if collection == "" {
			collection, _, _ = resolveRef(ref)
		}
		id, _ := m["id"].(string)
		return collection, id, nil
	}
	if name, ok := m["collection"].(string); ok {
		return name, "", nil
	}
	return "", "", badRequest("expected a ref")
}

// resolveSet extracts a collection name from a set expression such as
// {"documents": {"collection": name}}
func resolveSet(v any) (string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", badRequest("expected a set")
	}
	if docs, ok := m["documents"]; ok {
		collection, _, err := resolveRef(docs)
		return collection, err
	}
	return "", badRequest("expected a set")
}

func collectionRefJSON(name string) tj.O {
	return tj.O{"@ref": tj.O{
		"id":         name,
		"collection": tj.O{"@ref": tj.O{"id": "collections"}},
	}}
}

func docRefJSON(doc Document) tj.O {
	return tj.O{"@ref": tj.O{
		"id":         doc.ID,
		"collection": collectionRefJSON(doc.Collection),
	}}
}

func collectionJSON(collection Collection) tj.O {
	return tj.O{
		"ref":  collectionRefJSON(collection.Name),
		"name": collection.Name,
		"ts":   int64(collection.TS),
	}
}

func documentJSON(doc Document) tj.O {
	res := tj.O{
		"ref": docRefJSON(doc),
		"ts":  int64(doc.TS),
	}
	if doc.Data != nil {
		res["data"] = doc.Data
	}
	return res
}

// fieldFilter keeps only the requested event fields, "action" always included
type fieldFilter []string

func parseFieldFilter(raw string) fieldFilter {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func (f fieldFilter) apply(event tj.O) tj.O {
	if f == nil {
		return event
	}
	filtered := tj.O{"action": event["action"]}
	for _, field := range f {
		if v, ok := event[field]; ok {
			filtered[field] = v
		}
	}
	return filtered
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	logger := tlog.Get(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		thttp.JSONResult(logger, w, errorsBody(badRequest("failed to read request body")), http.StatusBadRequest)
		return
	}
	var expr map[string]any
	if err := json.Unmarshal(body, &expr); err != nil {
		thttp.JSONResult(logger, w, errorsBody(badRequest("request body is not a JSON object")), http.StatusBadRequest)
		return
	}
	fields := parseFieldFilter(r.URL.Query().Get("fields"))

	startTS := s.DB.Now()
	w.Header().Set(txntime.HeaderTxnTime, startTS.String())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)

	// Streamable targets are a document ref or a document set. Anything
	// else fails inside the stream, after the subscription is established.
	collection, id, refErr := resolveRef(expr)
	setCollection, setErr := resolveSet(expr)

	switch {
	case refErr == nil && id != "":
		_ = writeChunk(w, flusher, tj.O{"type": "start", "event": int64(startTS), "txn": int64(startTS)})
		s.streamDocument(r, w, flusher, collection, id, startTS, fields)
	case setErr == nil:
		_ = writeChunk(w, flusher, tj.O{"type": "start", "event": int64(startTS), "txn": int64(startTS)})
		s.streamSet(r, w, flusher, setCollection, startTS, fields)
	default:
		_ = writeChunk(w, flusher, errorsBody(badRequest("Expected a Document Ref or Set, got something else.")))
	}
}

// writeChunk sends one newline-terminated JSON chunk. Write errors mean the
// client went away.
func writeChunk(w http.ResponseWriter, flusher http.Flusher, chunk tj.O) error {
	if _, err := w.Write(append(must.OK1(json.Marshal(chunk)), '\n')); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (s *Server) streamDocument(r *http.Request, w http.ResponseWriter, flusher http.Flusher, collection, id string, after wire.Timestamp, fields fieldFilter) {
	ctx := r.Context()
	_, existed := s.DB.GetDocument(collection, id)
	for {
		doc, alive, err := s.DB.WatchDocument(ctx, collection, id, after, existed)
		if err != nil {
			return
		}
		if !alive {
			ts := s.DB.LastTS()
			_ = writeChunk(w, flusher, tj.O{
				"type": "version",
				"txn":  int64(ts),
				"event": fields.apply(tj.O{
					"action":   "delete",
					"document": tj.O{"ref": refJSONFor(collection, id), "ts": int64(ts)},
				}),
			})
			return
		}
		if err := writeChunk(w, flusher, tj.O{
			"type":  "version",
			"txn":   int64(doc.TS),
			"event": fields.apply(versionEvent("update", doc)),
		}); err != nil {
			return
		}
		after = doc.TS
		existed = true
	}
}

func (s *Server) streamSet(r *http.Request, w http.ResponseWriter, flusher http.Flusher, collection string, after wire.Timestamp, fields fieldFilter) {
	ctx := r.Context()
	for {
		docs, err := s.DB.WatchCollection(ctx, collection, after)
		if err != nil {
			return
		}
		for _, doc := range docs {
			if err := writeChunk(w, flusher, tj.O{
				"type":  "set",
				"txn":   int64(doc.TS),
				"event": fields.apply(tj.O{"action": "add", "document": docRefJSON(doc)}),
			}); err != nil {
				return
			}
			if doc.TS > after {
				after = doc.TS
			}
		}
	}
}

func refJSONFor(collection, id string) tj.O {
	return tj.O{"@ref": tj.O{
		"id":         id,
		"collection": collectionRefJSON(collection),
	}}
}

func versionEvent(action string, doc Document) tj.O {
	document := documentJSON(doc)
	return tj.O{
		"action":   action,
		"document": document,
		"diff":     document,
		"prev":     document,
	}
}
