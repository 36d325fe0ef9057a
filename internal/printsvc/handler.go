package printsvc

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"go.uber.org/zap"
)

// ServiceName is the fully-qualified name of the print service
const ServiceName = "printrelay.v1.PrintService"

// Procedure paths
const (
	UploadProcedure  = "/" + ServiceName + "/Upload"
	PreviewProcedure = "/" + ServiceName + "/Preview"
	CheckProcedure   = "/" + ServiceName + "/Check"
	SubmitProcedure  = "/" + ServiceName + "/Submit"
	StatsProcedure   = "/" + ServiceName + "/Stats"
	ReportProcedure  = "/" + ServiceName + "/Report"
)

// Error metadata keys
const (
	ErrorCodeHeader = "Print-Error-Code"
	PageCountHeader = "Print-Page-Count"
)

// NewHandler builds an HTTP handler for svc. It returns the path on which
// to mount the handler and the handler itself.
//
// Messages are plain Go structs, so only JSON bodies are served. Requests
// in any other encoding get 415 before they reach Connect.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(validationInterceptor()),
	}, opts...)

	upload := connect.NewUnaryHandler(UploadProcedure, svc.Upload, opts...)
	preview := connect.NewUnaryHandler(PreviewProcedure, svc.Preview, opts...)
	check := connect.NewUnaryHandler(CheckProcedure, svc.Check, opts...)
	submit := connect.NewUnaryHandler(SubmitProcedure, svc.Submit, opts...)
	stats := connect.NewUnaryHandler(StatsProcedure, svc.Stats, opts...)
	report := connect.NewUnaryHandler(ReportProcedure, svc.Report, opts...)

	return "/" + ServiceName + "/", jsonOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case UploadProcedure:
			upload.ServeHTTP(w, r)
		case PreviewProcedure:
			preview.ServeHTTP(w, r)
		case CheckProcedure:
			check.ServeHTTP(w, r)
		case SubmitProcedure:
			submit.ServeHTTP(w, r)
		case StatsProcedure:
			stats.ServeHTTP(w, r)
		case ReportProcedure:
			report.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
}

// jsonContentTypes are the JSON flavours of the Connect, gRPC and gRPC-Web
// protocols.
var jsonContentTypes = map[string]bool{
	"application/json":          true,
	"application/connect+json":  true,
	"application/grpc+json":     true,
	"application/grpc-web+json": true,
}

// jsonOnly rejects requests whose body is not JSON.
func jsonOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || !jsonContentTypes[mediaType] {
			w.Header().Set("Accept-Post", "application/json")
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Client calls a remote print service
type Client struct {
	upload  *connect.Client[UploadRequest, UploadResponse]
	preview *connect.Client[PreviewRequest, PreviewResponse]
	check   *connect.Client[CheckRequest, CheckResponse]
	submit  *connect.Client[SubmitRequest, SubmitResponse]
	stats   *connect.Client[StatsRequest, StatsResponse]
	report  *connect.Client[ReportRequest, ReportResponse]
}

// NewClient creates a Client for the service at baseURL
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		upload:  connect.NewClient[UploadRequest, UploadResponse](httpClient, baseURL+UploadProcedure, opts...),
		preview: connect.NewClient[PreviewRequest, PreviewResponse](httpClient, baseURL+PreviewProcedure, opts...),
		check:   connect.NewClient[CheckRequest, CheckResponse](httpClient, baseURL+CheckProcedure, opts...),
		submit:  connect.NewClient[SubmitRequest, SubmitResponse](httpClient, baseURL+SubmitProcedure, opts...),
		stats:   connect.NewClient[StatsRequest, StatsResponse](httpClient, baseURL+StatsProcedure, opts...),
		report:  connect.NewClient[ReportRequest, ReportResponse](httpClient, baseURL+ReportProcedure, opts...),
	}
}

func (c *Client) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	res, err := c.upload.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) Preview(ctx context.Context, req *PreviewRequest) (*PreviewResponse, error) {
	res, err := c.preview.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	res, err := c.check.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	res, err := c.submit.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) Stats(ctx context.Context, req *StatsRequest) (*StatsResponse, error) {
	res, err := c.stats.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *Client) Report(ctx context.Context, req *ReportRequest) (*ReportResponse, error) {
	res, err := c.report.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// CORS allows browser clients from origins to call the service. An empty
// list or "*" allows any origin.
func CORS(origins []string, logger *zap.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	allowAll := len(origins) == 0 || allowed["*"]

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", ErrorCodeHeader+", "+PageCountHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("origin", origin),
			zap.Int64("bytes", r.ContentLength))

		next.ServeHTTP(w, r)
	})
}
