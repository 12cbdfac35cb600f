/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// ToJsonReq converts a Go object to a JSON-encoded HTTP request payload.
//
// Parameters:
// - payload interface{}: The data structure to be serialized into JSON.
//
// Returns:
// - *bytes.Buffer: The JSON-encoded payload wrapped in a bytes buffer, ready to be sent in a request.
// - error: An error if the JSON marshalling process fails.
func ToJsonReq(payload interface{}) (*bytes.Buffer, error) {
	c, e := json.Marshal(payload)
	if e != nil {
		return nil, e
	}
	return bytes.NewBuffer(c), nil
}

// MultipartFile builds a multipart/form-data body holding a single file part.
//
// Parameters:
// - field string: The form field name of the part.
// - filename string: The file name announced to the receiver.
// - contentType string: The Content-Type of the part itself.
// - content io.Reader: The file content.
//
// Returns:
// - *bytes.Buffer: The encoded body.
// - string: The Content-Type header for the request, including the boundary.
// - error: An error if the content cannot be copied.
func MultipartFile(field, filename, contentType string, content io.Reader) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

// Post sends body to url and returns the response status code and body.
// A non-2xx status is not an error; callers decide what it means.
//
// Parameters:
// - ctx context.Context: Bounds the whole exchange.
// - client *http.Client: The client to use; http.DefaultClient when nil.
// - url string: The target URL.
// - contentType string: The request Content-Type header.
// - body io.Reader: The request body.
//
// Returns:
// - int: The response status code.
// - []byte: The full response body.
// - error: An error if the request cannot be built, sent or read.
func Post(ctx context.Context, client *http.Client, url, contentType string, body io.Reader) (int, []byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return do(client, req)
}

func do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// PostJSON encodes payload as JSON and posts it to url with the extra headers set.
func PostJSON(ctx context.Context, client *http.Client, url string, payload interface{}, headers map[string]string) (int, []byte, error) {
	body, err := ToJsonReq(payload)
	if err != nil {
		return 0, nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return do(client, req)
}
