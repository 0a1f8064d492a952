package freeagent

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
)

// BindResult describes the first attachment strategy that succeeded.
// RecordURL differs from the input record's URL only when the inline
// strategy re-created the record with the attachment embedded.
type BindResult struct {
	Strategy   string
	StatusCode int
	Body       []byte
	RecordURL  string
}

// attachStrategy is one known-working way of binding a receipt file to a
// record. Attempts run through the Executor, so each gets its own
// 401-refresh-retry.
type attachStrategy struct {
	name    string
	attempt func(ctx context.Context) (*Result, error)
}

// AttachReceipt binds the receipt file to the created record by trying
// the known attachment mechanisms in a fixed priority order and stopping
// at the first HTTP success. The accounting API's attachment contract
// varies by tenant and API version with no capability discovery, so the
// order encodes empirically observed reliability:
//
//  1. multipart upload, field "file"
//  2. multipart upload, nested field "attachment[file]"
//  3. standalone base64 attachment entity referencing the record
//  4. partial update (PUT) of the record with a nested attachment
//  5. re-issued record creation with the attachment embedded inline
//
// When every strategy fails the last failure is surfaced as an
// AttachmentError.
func (c *Client) AttachReceipt(ctx context.Context, record *CreatedRecord, payload *RecordPayload, file FileData) (*BindResult, error) {
	encoded := base64.StdEncoding.EncodeToString(file.Bytes)

	attachmentEntity := map[string]any{
		"data":         encoded,
		"file_name":    file.Name,
		"content_type": file.ContentType,
	}

	strategies := []attachStrategy{
		{
			name: "multipart-file",
			attempt: func(ctx context.Context) (*Result, error) {
				return c.exec.Do(ctx, c.multipartRequest(c.url("/v2/attachments"), "file", file, map[string]string{
					"parent_url": record.URL,
				}))
			},
		},
		{
			name: "multipart-nested",
			attempt: func(ctx context.Context) (*Result, error) {
				return c.exec.Do(ctx, c.multipartRequest(c.url("/v2/attachments"), "attachment[file]", file, map[string]string{
					"attachment[parent_url]": record.URL,
				}))
			},
		},
		{
			name: "json-entity",
			attempt: func(ctx context.Context) (*Result, error) {
				entity := map[string]any{
					"data":         encoded,
					"file_name":    file.Name,
					"content_type": file.ContentType,
					"parent_url":   record.URL,
				}
				return c.exec.Do(ctx, c.jsonRequest("POST", c.url("/v2/attachments"), map[string]any{
					"attachment": entity,
				}))
			},
		},
		{
			name: "record-put",
			attempt: func(ctx context.Context) (*Result, error) {
				wire := map[string]any{
					payload.wrapper: map[string]any{
						"attachment": attachmentEntity,
					},
				}
				return c.exec.Do(ctx, c.jsonRequest("PUT", record.URL, wire))
			},
		},
		{
			name: "inline-create",
			attempt: func(ctx context.Context) (*Result, error) {
				body := make(map[string]any, len(payload.body)+1)
				for k, v := range payload.body {
					body[k] = v
				}
				body["attachment"] = attachmentEntity
				return c.exec.Do(ctx, c.jsonRequest("POST", c.url(payload.endpoint), map[string]any{
					payload.wrapper: body,
				}))
			},
		},
	}

	var lastStatus int
	var lastBody []byte
	for _, strategy := range strategies {
		result, err := strategy.attempt(ctx)
		if err != nil {
			slog.Warn("Attachment strategy errored", "strategy", strategy.name, "error", err)
			lastStatus = 0
			lastBody = []byte(err.Error())
			continue
		}
		if !result.OK() {
			slog.Warn("Attachment strategy rejected", "strategy", strategy.name, "status", result.StatusCode)
			lastStatus = result.StatusCode
			lastBody = result.Body
			continue
		}

		bind := &BindResult{
			Strategy:   strategy.name,
			StatusCode: result.StatusCode,
			Body:       result.Body,
			RecordURL:  record.URL,
		}
		if strategy.name == "inline-create" {
			if url := extractRecordURL(result.Body, payload.wrapper); url != "" {
				bind.RecordURL = url
			}
		}
		slog.Info("Attached receipt", "strategy", strategy.name, "record", bind.RecordURL)
		return bind, nil
	}

	return nil, &AttachmentError{Status: lastStatus, Body: truncateBody(lastBody)}
}

// multipartRequest returns a RequestFactory for a multipart upload. The
// multipart body is rebuilt on every call so a post-refresh retry does
// not resend a drained reader.
func (c *Client) multipartRequest(url, fileField string, file FileData, fields map[string]string) RequestFactory {
	return func(token string) (*http.Request, error) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)

		part, err := writer.CreateFormFile(fileField, file.Name)
		if err != nil {
			return nil, fmt.Errorf("creating form file: %w", err)
		}
		if _, err := part.Write(file.Bytes); err != nil {
			return nil, fmt.Errorf("writing form file: %w", err)
		}
		for name, value := range fields {
			if err := writer.WriteField(name, value); err != nil {
				return nil, fmt.Errorf("writing form field: %w", err)
			}
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("closing multipart writer: %w", err)
		}

		req, err := http.NewRequest("POST", url, &buf)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, token)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	}
}
