// Command csvdb-server exposes a csvdb storage directory over HTTP JSON
// and gRPC (JSON codec, no protobuf). The engine provides no internal
// locking, so the server serializes all driver access behind one mutex;
// an optional auto-commit interval flushes tables periodically.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/dayjn1/csvdb"
	"github.com/dayjn1/csvdb/internal/maintenance"
)

// Flags
var (
	flagDir        = flag.String("dir", ".", "Storage directory")
	flagHTTP       = flag.String("http", ":8080", "HTTP listen address (empty to disable)")
	flagGRPC       = flag.String("grpc", ":9090", "gRPC listen address (empty to disable)")
	flagRPS        = flag.Float64("rps", 0, "HTTP request rate limit per second (0 = unlimited)")
	flagAutoCommit = flag.Duration("autocommit", 0, "Auto-commit interval (0 = explicit commits only)")
	flagVerbose    = flag.Bool("v", false, "Verbose logging")
)

// HTTP/gRPC types
type selectRequest struct {
	Table string         `json:"table"`
	Where map[string]any `json:"where,omitempty"`
}
type selectResponse struct {
	Table    string           `json:"table"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	Count    int              `json:"count"`
	Error    string           `json:"error,omitempty"`
	Duration string           `json:"duration"`
}

type mutateRequest struct {
	Table string           `json:"table"`
	Op    string           `json:"op"` // insert, update, delete
	Rows  []map[string]any `json:"rows,omitempty"`
	Where map[string]any   `json:"where,omitempty"`
	Set   map[string]any   `json:"set,omitempty"`
}
type mutateResponse struct {
	Success  bool   `json:"success"`
	Affected int    `json:"affected"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// gRPC JSON codec
type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// gRPC service interface and descriptors (manual, no protobuf)
type CSVDBServer interface {
	Select(context.Context, *selectRequest) (*selectResponse, error)
	Mutate(context.Context, *mutateRequest) (*mutateResponse, error)
}

func registerCSVDBServer(s *grpc.Server, srv CSVDBServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "csvdb.CSVDB",
		HandlerType: (*CSVDBServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Select", Handler: _CSVDB_Select_Handler},
			{MethodName: "Mutate", Handler: _CSVDB_Mutate_Handler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "csvdb", // informational
	}, srv)
}

func _CSVDB_Select_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(selectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CSVDBServer).Select(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/csvdb.CSVDB/Select"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CSVDBServer).Select(ctx, req.(*selectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _CSVDB_Mutate_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(mutateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CSVDBServer).Mutate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/csvdb.CSVDB/Mutate"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CSVDBServer).Mutate(ctx, req.(*mutateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// server state
type server struct {
	mu  sync.Mutex // serializes all driver access
	drv *csvdb.Driver
}

// whereMatch builds a predicate from a column→value equality map. An
// empty map matches everything.
func whereMatch(where map[string]any) csvdb.Predicate {
	return func(r *csvdb.Row) bool {
		for col, want := range where {
			got, err := r.Value(col)
			if err != nil || !jsonValueEqual(got, want) {
				return false
			}
		}
		return true
	}
}

// jsonValueEqual compares a stored value with a JSON-decoded one, where
// every number arrives as float64.
func jsonValueEqual(stored, want any) bool {
	switch s := stored.(type) {
	case int64:
		w, ok := want.(float64)
		return ok && float64(s) == w
	case float64:
		w, ok := want.(float64)
		return ok && s == w
	case string:
		w, ok := want.(string)
		return ok && s == w
	default:
		return false
	}
}

// coerceJSON converts a JSON-decoded value to what the column accepts.
func coerceJSON(t csvdb.ColumnType, v any) (any, error) {
	switch t {
	case csvdb.Integer:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("want an integer, got %v", v)
		}
		return int64(f), nil
	case csvdb.Numeric:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("want a number, got %v", v)
		}
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return int64(f), nil
		}
		return f, nil
	case csvdb.Real:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("want a number, got %v", v)
		}
		return f, nil
	case csvdb.Text:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want a string, got %v", v)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported column type %v", t)
	}
}

func (s *server) coerceSet(tbl *csvdb.Table, set map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(set))
	for col, v := range set {
		idx, err := tbl.Header().Index(col)
		if err != nil {
			return nil, err
		}
		cv, err := coerceJSON(tbl.Header().Column(idx).Type, v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		out[col] = cv
	}
	return out, nil
}

// CSVDBServer implementation
func (s *server) Select(_ context.Context, req *selectRequest) (*selectResponse, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := &selectResponse{Table: req.Table}
	tbl, err := s.drv.GetTable(req.Table)
	if err != nil {
		resp.Error = err.Error()
		resp.Duration = time.Since(start).String()
		return resp, nil
	}
	header := tbl.Header()
	for i := 0; i < header.Len(); i++ {
		resp.Columns = append(resp.Columns, header.Column(i).Name)
	}
	for _, row := range tbl.Select(whereMatch(req.Where)) {
		m := make(map[string]any, header.Len())
		for _, col := range resp.Columns {
			v, err := row.Value(col)
			if err != nil {
				resp.Error = err.Error()
				resp.Duration = time.Since(start).String()
				return resp, nil
			}
			m[col] = v
		}
		resp.Rows = append(resp.Rows, m)
	}
	resp.Count = len(resp.Rows)
	resp.Duration = time.Since(start).String()
	return resp, nil
}

func (s *server) Mutate(_ context.Context, req *mutateRequest) (*mutateResponse, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := &mutateResponse{}
	fail := func(err error) (*mutateResponse, error) {
		resp.Error = err.Error()
		resp.Duration = time.Since(start).String()
		return resp, nil
	}
	tbl, err := s.drv.GetTable(req.Table)
	if err != nil {
		return fail(err)
	}
	switch req.Op {
	case "insert":
		before := tbl.Len()
		for _, rowVals := range req.Rows {
			vals, err := s.coerceSet(tbl, rowVals)
			if err != nil {
				return fail(err)
			}
			row := tbl.NewRow()
			for col, v := range vals {
				if err := row.Set(col, v); err != nil {
					return fail(err)
				}
			}
			if err := tbl.Insert(row); err != nil {
				return fail(err)
			}
		}
		resp.Affected = tbl.Len() - before
	case "update":
		vals, err := s.coerceSet(tbl, req.Set)
		if err != nil {
			return fail(err)
		}
		n, err := tbl.UpdateMultiple(whereMatch(req.Where), vals)
		if err != nil {
			return fail(err)
		}
		resp.Affected = n
	case "delete":
		resp.Affected = tbl.Delete(whereMatch(req.Where))
	default:
		return fail(fmt.Errorf("unknown op %q", req.Op))
	}
	resp.Success = true
	resp.Duration = time.Since(start).String()
	return resp, nil
}

// HTTP handlers
func (s *server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	resp, _ := s.Select(r.Context(), &req)
	writeJSON(w, resp)
}

func (s *server) handleMutate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	resp, _ := s.Mutate(r.Context(), &req)
	writeJSON(w, resp)
}

func (s *server) handleTables(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	names := s.drv.ListTables()
	s.mu.Unlock()
	writeJSON(w, map[string]any{"tables": names, "count": len(names)})
}

func (s *server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	s.mu.Lock()
	err := s.drv.Commit()
	s.mu.Unlock()
	if err != nil {
		writeJSON(w, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, map[string]any{"success": true, "duration": time.Since(start).String()})
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	id := s.drv.ID().String()
	tables := len(s.drv.ListTables())
	s.mu.Unlock()
	writeJSON(w, map[string]any{
		"ok":     true,
		"time":   time.Now().Format(time.RFC3339),
		"driver": id,
		"dir":    *flagDir,
		"tables": tables,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// rateLimit wraps a handler with a token bucket; requests over the limit
// get 429.
func rateLimit(rps float64, next http.Handler) http.Handler {
	if rps <= 0 {
		return next
	}
	limiter := rate.NewLimiter(rate.Limit(rps), int(math.Ceil(rps)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	drv, err := csvdb.Open(*flagDir, csvdb.WithLogger(logger))
	if err != nil {
		log.Fatalf("open %s: %v", *flagDir, err)
	}
	defer drv.Close()

	srv := &server{drv: drv}

	if *flagAutoCommit > 0 {
		flusher := maintenance.NewFlusher(drv,
			maintenance.WithFlusherLogger(logger),
			maintenance.WithLocker(&srv.mu),
		)
		if err := flusher.StartInterval(*flagAutoCommit); err != nil {
			log.Fatalf("auto-commit: %v", err)
		}
		defer flusher.Stop()
	}

	// Register JSON codec for gRPC
	encoding.RegisterCodec(jsonCodec{})

	if *flagGRPC != "" {
		go func() {
			lis, err := net.Listen("tcp", *flagGRPC)
			if err != nil {
				log.Fatalf("gRPC listen error: %v", err)
			}
			gs := grpc.NewServer()
			registerCSVDBServer(gs, srv)
			logger.Info("gRPC listening", "addr", *flagGRPC)
			if err := gs.Serve(lis); err != nil {
				log.Fatalf("gRPC serve error: %v", err)
			}
		}()
	}

	if *flagHTTP != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/select", srv.handleSelect)
		mux.HandleFunc("/api/mutate", srv.handleMutate)
		mux.HandleFunc("/api/tables", srv.handleTables)
		mux.HandleFunc("/api/commit", srv.handleCommit)
		mux.HandleFunc("/api/status", srv.handleStatus)
		logger.Info("HTTP listening", "addr", *flagHTTP)
		if err := http.ListenAndServe(*flagHTTP, rateLimit(*flagRPS, mux)); err != nil {
			log.Fatalf("HTTP serve error: %v", err)
		}
	} else {
		// HTTP disabled; block on gRPC only.
		select {}
	}
}
