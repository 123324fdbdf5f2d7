package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type recorded struct {
	path          string
	authorization string
	contentType   string
	body          []byte
}

type fakeGraph struct {
	mu       sync.Mutex
	requests []recorded
	handler  fasthttp.RequestHandler
}

func (f *fakeGraph) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeGraph) setHandler(h fasthttp.RequestHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeGraph) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestClient(t *testing.T, handler fasthttp.RequestHandler, mutate ...func(*Config)) (*Client, *fakeGraph) {
	t.Helper()

	graph := &fakeGraph{handler: handler}
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		graph.mu.Lock()
		graph.requests = append(graph.requests, recorded{
			path:          string(ctx.Path()),
			authorization: string(ctx.Request.Header.Peek("Authorization")),
			contentType:   string(ctx.Request.Header.ContentType()),
			body:          append([]byte(nil), ctx.PostBody()...),
		})
		h := graph.handler
		graph.mu.Unlock()
		h(ctx)
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	cfg := &Config{
		BaseURL:                 "http://graph.test",
		Version:                 "v22.0",
		PhoneNumberID:           "1055",
		Token:                   "secret",
		Timeout:                 2 * time.Second,
		CircuitBreakerThreshold: 3,
		CircuitBreakerTimeout:   time.Minute,
	}
	for _, m := range mutate {
		m(cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	c.http.Dial = func(string) (net.Conn, error) { return ln.Dial() }
	return c, graph
}

func respond(status int, body string) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(status)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(body)
	}
}

func TestClient_SendTemplate(t *testing.T) {
	c, graph := newTestClient(t, respond(200, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.HBgM"}],"pricing":{"billable":true,"pricing_model":"CBP","category":"marketing"}}`))

	res, err := c.SendTemplate(context.Background(), TemplateMessage{
		To:       "573001112233",
		Name:     "cita_recordatorio",
		Language: "es",
		Components: []Component{{
			Type:       "body",
			Parameters: []Parameter{{Type: "text", Text: "Ana"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.HBgM", res.MessageID)
	require.NotNil(t, res.Pricing)
	assert.True(t, res.Pricing.Billable)
	assert.Equal(t, "marketing", res.Pricing.Category)

	req := graph.last()
	assert.Equal(t, "/v22.0/1055/messages", req.path)
	assert.Equal(t, "Bearer secret", req.authorization)
	assert.Equal(t, "application/json", req.contentType)
	assert.JSONEq(t, `{
		"messaging_product":"whatsapp",
		"recipient_type":"individual",
		"to":"573001112233",
		"type":"template",
		"template":{
			"name":"cita_recordatorio",
			"language":{"code":"es"},
			"components":[{"type":"body","parameters":[{"type":"text","text":"Ana"}]}]
		}
	}`, string(req.body))
}

func TestClient_SendVariants(t *testing.T) {
	c, graph := newTestClient(t, respond(200, `{"messages":[{"id":"wamid.1"}]}`))
	ctx := context.Background()

	_, err := c.Send(ctx, TextMessage{To: "573001112233", Body: "Hola Ana"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"messaging_product":"whatsapp","recipient_type":"individual","to":"573001112233","type":"text","text":{"preview_url":false,"body":"Hola Ana"}}`, string(graph.last().body))

	_, err = c.Send(ctx, MediaMessage{To: "573001112233", Kind: model.MediaKindVideo, Media: MediaRef{ID: "media-1", Caption: "promo"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"messaging_product":"whatsapp","recipient_type":"individual","to":"573001112233","type":"video","video":{"id":"media-1","caption":"promo"}}`, string(graph.last().body))
}

func TestClient_SendValidatesBeforeCalling(t *testing.T) {
	c, graph := newTestClient(t, respond(200, `{"messages":[{"id":"wamid.1"}]}`))
	ctx := context.Background()

	cases := []OutboundMessage{
		TextMessage{To: "", Body: "x"},
		TextMessage{To: "1", Body: strings.Repeat("a", maxTextLength+1)},
		TemplateMessage{To: "1", Name: "", Language: "es"},
		TemplateMessage{To: "1", Name: "n", Language: "es", Components: []Component{{Type: "header", Parameters: []Parameter{{Type: "image"}}}}},
		MediaMessage{To: "1", Kind: model.MediaKindText, Media: MediaRef{ID: "x"}},
		MediaMessage{To: "1", Kind: model.MediaKindImage},
	}
	for _, msg := range cases {
		_, err := c.Send(ctx, msg)
		var se *SendError
		require.ErrorAs(t, err, &se, "%#v", msg)
		assert.Equal(t, "send", se.Op)
	}
	assert.Zero(t, graph.count())
}

func TestClient_ProviderErrorIsNormalized(t *testing.T) {
	c, _ := newTestClient(t, respond(400, `{"error":{"message":"(#132001) Template name does not exist in the translation","type":"OAuthException","code":132001,"fbtrace_id":"AbC"}}`))

	_, err := c.SendTemplate(context.Background(), TemplateMessage{To: "1", Name: "missing", Language: "es"})
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 400, se.StatusCode)
	assert.Equal(t, 132001, se.Code)
	assert.Equal(t, "AbC", se.TraceID)
	assert.Contains(t, se.Error(), "Template name does not exist")
	assert.False(t, se.Transient())
	assert.Equal(t, StateHealthy, c.GetState(), "client errors do not open the circuit")
}

func TestClient_MalformedResponse(t *testing.T) {
	c, _ := newTestClient(t, respond(200, `{"messages":[]}`))

	_, err := c.SendTemplate(context.Background(), TemplateMessage{To: "1", Name: "n", Language: "es"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_CircuitOpensAfterServerErrors(t *testing.T) {
	c, graph := newTestClient(t, respond(503, `upstream unavailable`))
	ctx := context.Background()
	msg := TemplateMessage{To: "1", Name: "n", Language: "es"}

	for i := 0; i < 3; i++ {
		_, err := c.SendTemplate(ctx, msg)
		var se *SendError
		require.ErrorAs(t, err, &se)
		assert.True(t, se.Transient())
		assert.Equal(t, "upstream unavailable", se.Message)
	}
	assert.Equal(t, StateCircuitOpen, c.GetState())

	_, err := c.SendTemplate(ctx, msg)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, graph.count(), "open circuit fails without a request")

	// once the timeout passes a trial request goes out and success closes the circuit
	c.circuitOpenUntil.Store(time.Now().Add(-time.Second).UnixNano())
	graph.setHandler(respond(200, `{"messages":[{"id":"wamid.ok"}]}`))
	res, err := c.SendTemplate(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "wamid.ok", res.MessageID)
	assert.Equal(t, StateHealthy, c.GetState())

	stats := c.Stats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int32(0), stats.ConsecutiveFails)
}

func TestClient_CancelledContext(t *testing.T) {
	c, graph := newTestClient(t, respond(200, `{"messages":[{"id":"wamid.1"}]}`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SendTemplate(ctx, TemplateMessage{To: "1", Name: "n", Language: "es"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, graph.count())
}

func TestClient_UploadMedia(t *testing.T) {
	c, graph := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		form, err := ctx.MultipartForm()
		if err != nil {
			ctx.SetStatusCode(400)
			return
		}
		if form.Value["messaging_product"][0] != "whatsapp" || form.Value["type"][0] != "image/png" || len(form.File["file"]) != 1 {
			ctx.SetStatusCode(400)
			return
		}
		ctx.SetBodyString(`{"id":"media-77"}`)
	})

	path := filepath.Join(t.TempDir(), "promo.PNG")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))

	id, err := c.UploadMedia(context.Background(), path, model.MediaKindImage)
	require.NoError(t, err)
	assert.Equal(t, "media-77", id)
	assert.Equal(t, "/v22.0/1055/media", graph.last().path)
	assert.True(t, strings.HasPrefix(graph.last().contentType, "multipart/form-data"))

	_, err = c.UploadMedia(context.Background(), filepath.Join(t.TempDir(), "missing.png"), model.MediaKindImage)
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "upload", se.Op)
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "image/jpeg", MimeType("a/b/photo.JPG"))
	assert.Equal(t, "video/mp4", MimeType("clip.mp4"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", MimeType("report.xlsx"))
	assert.Equal(t, "application/octet-stream", MimeType("clip.avi"))
}

func TestParseComponents(t *testing.T) {
	components, err := ParseComponents([]byte(`[{"type":"header","parameters":[{"type":"image","image":{"link":"https://x/y.png"}}]},{"type":"button","sub_type":"url","index":0,"parameters":[{"type":"text","text":"abc"}]}]`))
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, "https://x/y.png", components[0].Parameters[0].Image.Link)
	assert.Equal(t, json.Number("0"), components[1].Index)

	components, err = ParseComponents(nil)
	require.NoError(t, err)
	assert.Nil(t, components)

	_, err = ParseComponents([]byte(`{`))
	assert.Error(t, err)
}

func TestProviderMetrics(t *testing.T) {
	m := NewProviderMetrics()
	m.RecordSuccess(100)
	m.RecordSuccess(200)
	m.RecordFailure(true)
	m.RecordFailure(false)

	assert.Equal(t, int64(4), m.TotalRequests.Load())
	assert.Equal(t, 0.5, m.SuccessRate())
	assert.Equal(t, int64(150), m.AvgLatencyMs())
	assert.Equal(t, int32(1), m.ConsecutiveFails.Load())

	for i := int64(0); i < 100; i++ {
		m.RecordSuccess(i * 10)
	}
	assert.GreaterOrEqual(t, m.P95LatencyMs(), int64(900))
}

func TestClient_SendReadsPricingFromMessageEntry(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		category string
	}{
		{
			name:     "inside the message entry",
			body:     `{"messages":[{"id":"wamid.1","message_status":"accepted","pricing":{"billable":true,"pricing_model":"PMP","category":"utility","type":"regular"}}]}`,
			category: "utility",
		},
		{
			name:     "entry wins over top level",
			body:     `{"messages":[{"id":"wamid.1","pricing":{"billable":true,"pricing_model":"PMP","category":"utility"}}],"pricing":{"billable":true,"pricing_model":"CBP","category":"marketing"}}`,
			category: "utility",
		},
		{
			name: "no pricing",
			body: `{"messages":[{"id":"wamid.1"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, respond(200, tt.body))

			res, err := c.Send(context.Background(), TextMessage{To: "573001112233", Body: "Hola"})
			require.NoError(t, err)
			assert.Equal(t, "wamid.1", res.MessageID)
			if tt.category == "" {
				assert.Nil(t, res.Pricing)
				return
			}
			require.NotNil(t, res.Pricing)
			assert.Equal(t, tt.category, res.Pricing.Category)
			assert.Equal(t, "PMP", res.Pricing.PricingModel)
		})
	}
}
