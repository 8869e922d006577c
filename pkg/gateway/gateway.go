package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xhad/askpdf/internal/models"
	"github.com/xhad/askpdf/internal/types"
	"github.com/xhad/askpdf/pkg/logger"
)

const module = "gateway"

var _ types.Backend = (*Gateway)(nil)

type GatewayConfig struct {
	BaseURL        string // includes the /api prefix
	HealthPath     string // resolved against the server root, outside /api
	HealthTimeout  time.Duration
	RequestTimeout time.Duration // 0 disables; never applied to streams
	Logger         types.Logger
}

// Gateway performs every call to the backend. Each call is attempted once
// and failures come back as *Error, never as panics.
type Gateway struct {
	config  GatewayConfig
	client  *http.Client
	rootURL string
	log     types.Logger
}

func NewWithConfig(config GatewayConfig) (*Gateway, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000/api"
	}
	if config.HealthPath == "" {
		config.HealthPath = "/"
	}
	if config.HealthTimeout <= 0 || config.HealthTimeout > 5*time.Second {
		config.HealthTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logger.NewNop()
	}

	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", config.BaseURL)
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	root := *parsed
	root.Path = strings.TrimSuffix(strings.TrimRight(root.Path, "/"), "/api")
	root.RawQuery = ""

	return &Gateway{
		config:  config,
		client:  &http.Client{},
		rootURL: strings.TrimRight(root.String(), "/"),
		log:     config.Logger,
	}, nil
}

func New(baseURL string) *Gateway {
	g, _ := NewWithConfig(GatewayConfig{BaseURL: baseURL})
	return g
}

func (g *Gateway) endpoint(path string, params url.Values) string {
	u := g.config.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, g.config.RequestTimeout)
	}
	return ctx, func() {}
}

func queryParams(question string, topK int) url.Values {
	params := url.Values{}
	params.Set("query", question)
	if topK > 0 {
		params.Set("top_k", strconv.Itoa(topK))
	}
	return params
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadDocument sends one PDF as multipart field "files" and returns the
// number of chunks the backend produced from it.
func (g *Gateway) UploadDocument(ctx context.Context, name string, data []byte) (int, error) {
	const op = "upload"
	if len(data) == 0 {
		return 0, ErrEmptyDocument
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(name)))
	header.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(header)
	if err != nil {
		return 0, fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return 0, fmt.Errorf("writing multipart part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("closing multipart writer: %w", err)
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("/upload", nil), &body)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result struct {
		Chunks int `json:"chunks"`
	}
	if err := g.doJSON(op, req, &result); err != nil {
		return 0, err
	}

	g.log.Debug(module, "document uploaded", map[string]interface{}{"name": name, "bytes": len(data), "chunks": result.Chunks})
	return result.Chunks, nil
}

// Query asks a question and waits for the whole answer with its sources.
func (g *Gateway) Query(ctx context.Context, question string, topK int) (string, []models.Source, error) {
	const op = "query"

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("/query", queryParams(question, topK)), nil)
	if err != nil {
		return "", nil, fmt.Errorf("creating request: %w", err)
	}

	var result struct {
		Answer  string            `json:"answer"`
		Sources []json.RawMessage `json:"sources"`
	}
	if err := g.doJSON(op, req, &result); err != nil {
		return "", nil, err
	}

	sources := decodeSources(result.Sources)
	g.log.Debug(module, "query answered", map[string]interface{}{"top_k": topK, "sources": len(sources)})
	return result.Answer, sources, nil
}

// QueryStream opens the streaming endpoint. A transport failure is returned
// directly; a non-200 status yields a stream carrying one fallback message
// whose Err reports the RequestFailed.
func (g *Gateway) QueryStream(ctx context.Context, question string, topK int) (types.Fragments, error) {
	const op = "query-stream"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("/query-stream", queryParams(question, topK)), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		gerr := transportError(op, err)
		g.log.Warn(module, "stream open failed", map[string]interface{}{"kind": gerr.Kind.String(), "error": err.Error()})
		return nil, gerr
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		gerr := statusError(op, resp.StatusCode, resp.Header.Get("Content-Type"), raw)
		g.log.Warn(module, "stream rejected", map[string]interface{}{"status": resp.StatusCode, "body": gerr.Body})
		return failedStream(gerr, FallbackMessage), nil
	}

	g.log.Debug(module, "stream opened", map[string]interface{}{"top_k": topK})
	return newStream(ctx, resp.Body), nil
}

// GetStatus returns the backend's document count. ok is false on any failure.
func (g *Gateway) GetStatus(ctx context.Context) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, g.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint("/status", nil), nil)
	if err != nil {
		return 0, false
	}

	var result struct {
		DocumentCount *int `json:"document_count"`
		VectorStore   struct {
			DocumentCount *int `json:"document_count"`
		} `json:"vector_store"`
	}
	if err := g.doJSON("status", req, &result); err != nil {
		return 0, false
	}

	switch {
	case result.VectorStore.DocumentCount != nil:
		return *result.VectorStore.DocumentCount, true
	case result.DocumentCount != nil:
		return *result.DocumentCount, true
	default:
		return 0, true
	}
}

// HealthCheck probes the server root with a bounded timeout.
func (g *Gateway) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, g.config.HealthTimeout)
	defer cancel()

	path := g.config.HealthPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.rootURL+path, nil)
	if err != nil {
		return false
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Debug(module, "health check failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return resp.StatusCode == http.StatusOK
}

func (g *Gateway) doJSON(op string, req *http.Request, out interface{}) error {
	resp, err := g.client.Do(req)
	if err != nil {
		gerr := transportError(op, err)
		g.log.Warn(module, "request failed", map[string]interface{}{"op": op, "kind": gerr.Kind.String(), "error": err.Error()})
		return gerr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		gerr := transportError(op, err)
		g.log.Warn(module, "reading response failed", map[string]interface{}{"op": op, "error": err.Error()})
		return gerr
	}

	if resp.StatusCode != http.StatusOK {
		gerr := statusError(op, resp.StatusCode, resp.Header.Get("Content-Type"), raw)
		g.log.Warn(module, "request rejected", map[string]interface{}{"op": op, "status": resp.StatusCode, "body": gerr.Body})
		return gerr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		g.log.Warn(module, "invalid response body", map[string]interface{}{"op": op, "error": err.Error()})
		return &Error{Kind: RequestFailed, Op: op, StatusCode: resp.StatusCode, Body: readableBody("", raw), Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// decodeSources accepts citation objects with a "text" field as well as bare
// strings; anything else is kept as its JSON text.
func decodeSources(raw []json.RawMessage) []models.Source {
	if len(raw) == 0 {
		return nil
	}

	sources := make([]models.Source, 0, len(raw))
	for _, item := range raw {
		var text string
		if json.Unmarshal(item, &text) == nil {
			sources = append(sources, models.Source{Text: text})
			continue
		}

		var obj map[string]interface{}
		if json.Unmarshal(item, &obj) == nil {
			src := models.Source{}
			if t, ok := obj["text"].(string); ok {
				src.Text = t
				delete(obj, "text")
			} else {
				src.Text = string(item)
			}
			if len(obj) > 0 {
				src.Metadata = obj
			}
			sources = append(sources, src)
			continue
		}

		sources = append(sources, models.Source{Text: string(item)})
	}
	return sources
}
