package types

import (
	"bytes"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Response represents the result of fetching a request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte

	// Request is a reference to the original request.
	Request *Request

	ContentType string

	// FinalURL is the URL after any redirects.
	FinalURL string

	// doc is the parsed document, loaded on first use.
	doc *goquery.Document

	FetchDuration time.Duration
	FetchedAt     time.Time
}

// NewResponse creates a Response from an http.Response.
func NewResponse(req *Request, httpResp *http.Response, body []byte, duration time.Duration) *Response {
	return &Response{
		StatusCode:    httpResp.StatusCode,
		Headers:       httpResp.Header,
		Body:          body,
		Request:       req,
		ContentType:   httpResp.Header.Get("Content-Type"),
		FinalURL:      httpResp.Request.URL.String(),
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}
}

// NewBrowserResponse creates a Response from headless browser output.
func NewBrowserResponse(req *Request, statusCode int, body []byte, finalURL string, duration time.Duration) *Response {
	return &Response{
		StatusCode:    statusCode,
		Headers:       make(http.Header),
		Body:          body,
		Request:       req,
		ContentType:   "text/html",
		FinalURL:      finalURL,
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}
}

// Document returns a parsed goquery document, lazily initializing it.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc != nil {
		return r.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	r.doc = doc
	return doc, nil
}

// IsSuccess returns true if the response status is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsClientError returns true if the response status is 4xx.
func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}
