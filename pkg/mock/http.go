package mock

import (
	"bytes"
	"io/ioutil"
	"net/http"
)

// HTTPClient records requests and replies 200 OK with an empty body.
type HTTPClient struct {
	Requests []*http.Request
}

func (x *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	x.Requests = append(x.Requests, req)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       ioutil.NopCloser(bytes.NewReader(nil)),
		Request:    req,
	}, nil
}
