package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chat-client/internal/config"
	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// Client talks to the chat REST backend.
type Client struct {
	http   *resty.Client
	tracer trace.Tracer
	log    *zap.SugaredLogger
}

type restyLogger struct {
	log *zap.SugaredLogger
}

func (l restyLogger) Errorf(format string, v ...interface{}) { l.log.Errorf(format, v...) }
func (l restyLogger) Warnf(format string, v ...interface{})  { l.log.Warnf(format, v...) }
func (l restyLogger) Debugf(format string, v ...interface{}) { l.log.Debugf(format, v...) }

// NewClient constructs a Client. Only GET requests are retried; mutations fail fast.
func NewClient(cfg config.APIConfig, log *zap.SugaredLogger) *Client {
	c := resty.
		New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetLogger(restyLogger{log: log}).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			retry, _ := retryablehttp.DefaultRetryPolicy(r.Request.Context(), r.RawResponse, err)
			return retry
		})
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal

	return &Client{
		http:   c,
		tracer: otel.Tracer("chat-client/api"),
		log:    log,
	}
}

// FetchPage loads one history page. Page numbers start at 1 and pages are newest-last.
func (c *Client) FetchPage(ctx context.Context, conv models.ConversationRef, page, limit int) (models.Page, error) {
	var messages []models.Message
	env, err := c.do(ctx, "fetch_page", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetQueryParam("page", strconv.Itoa(page)).
			SetQueryParam("limit", strconv.Itoa(limit)).
			Get(historyPath(conv))
	}, &messages)
	if err != nil {
		return models.Page{}, err
	}
	return models.Page{Number: page, Limit: limit, Total: env.Total, Messages: messages}, nil
}

// CreateMessage posts a new comment or group message.
func (c *Client) CreateMessage(ctx context.Context, conv models.ConversationRef, req models.CreateMessageRequest) (models.MessageResponse, error) {
	var msg models.Message
	_, err := c.do(ctx, "create_message", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(req).Post(createPath(conv))
	}, &msg)
	if err != nil {
		return models.MessageResponse{}, err
	}
	return models.MessageResponse{Success: true, Data: msg}, nil
}

// EditMessage patches the content and mentions of a message.
func (c *Client) EditMessage(ctx context.Context, conv models.ConversationRef, messageID string, req models.EditMessageRequest) (models.MessageResponse, error) {
	var msg models.Message
	_, err := c.do(ctx, "edit_message", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(req).Patch(editPath(conv, messageID))
	}, &msg)
	if err != nil {
		return models.MessageResponse{}, err
	}
	return models.MessageResponse{Success: true, Data: msg}, nil
}

// MarkRead moves the user's read cursor.
func (c *Client) MarkRead(ctx context.Context, conv models.ConversationRef, req models.ReadReceiptRequest) error {
	_, err := c.do(ctx, "mark_read", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(req).Post(readCursorPath(conv))
	}, nil)
	return err
}

// Members returns the conversation roster.
func (c *Client) Members(ctx context.Context, conv models.ConversationRef) ([]models.Member, error) {
	var members []models.Member
	_, err := c.do(ctx, "members", func(r *resty.Request) (*resty.Response, error) {
		return r.Get(membersPath(conv))
	}, &members)
	return members, err
}

// UploadDocument sends a file as multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader) (models.Document, error) {
	var doc models.Document
	env, err := c.do(ctx, "upload_document", func(r *resty.Request) (*resty.Response, error) {
		return r.SetFileReader("file", filename, content).Post(documentsPath)
	}, nil)
	if err != nil {
		return models.Document{}, err
	}

	raw := env.Data
	if len(raw) == 0 {
		raw = env.raw
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Document{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.URL == "" {
		return models.Document{}, &Error{Op: "upload_document", Status: env.status, Message: "response has no url"}
	}
	return doc, nil
}

type response struct {
	models.Envelope
	status int
	raw    []byte
}

// do runs one traced request and decodes the envelope. When out is non-nil the
// envelope data is decoded into it.
func (c *Client) do(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error), out any) (response, error) {
	ctx, span := c.tracer.Start(ctx, "api."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	requestID := uuid.NewString()
	req := c.http.R().SetContext(ctx).SetHeader("X-Request-Id", requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := send(req)
	status := 0
	if resp != nil && resp.RawResponse != nil {
		status = resp.StatusCode()
	}
	observability.ObserveAPIRequest(op, status, time.Since(start))
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.Int("http.status_code", status),
	)

	fail := func(err error) (response, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warnw("api call failed", "op", op, "status", status, "request_id", requestID, "error", err)
		return response{status: status}, err
	}

	if err != nil {
		return fail(&Error{Op: op, Status: status, Message: err.Error()})
	}

	res := response{status: status, raw: resp.Body()}
	if len(res.raw) > 0 {
		if jerr := json.Unmarshal(res.raw, &res.Envelope); jerr != nil && !resp.IsError() {
			return fail(fmt.Errorf("%s: decode envelope: %w", op, jerr))
		}
	}
	if resp.IsError() {
		msg := res.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return fail(&Error{Op: op, Status: status, Message: msg})
	}
	if len(res.raw) > 0 && !res.Success && res.Message != "" {
		return fail(&Error{Op: op, Status: status, Message: res.Message})
	}

	if out != nil && len(res.Data) > 0 {
		if err := json.Unmarshal(res.Data, out); err != nil {
			return fail(fmt.Errorf("%s: decode data: %w", op, err))
		}
	}
	return res, nil
}
