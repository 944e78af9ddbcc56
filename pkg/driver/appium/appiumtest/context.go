package appiumtest

import (
	"context"
	"net/http"
)

func contextWithBody(ctx context.Context, body map[string]interface{}) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func bodyFrom(r *http.Request) map[string]interface{} {
	body, _ := r.Context().Value(bodyKey{}).(map[string]interface{})
	if body == nil {
		body = map[string]interface{}{}
	}
	return body
}
