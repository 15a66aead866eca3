// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package client

import (
	"context"
	"net/http"
)

// Chain returns an Authorizer which applies all authorizers in order and stops at the
// first error. Nil entries are skipped.
func Chain(authorizers ...Authorizer) Authorizer {
	return AuthorizerFunc(func(ctx context.Context, r *http.Request, body []byte) error {
		for _, a := range authorizers {
			if a == nil {
				continue
			}
			if err := a.Authorize(ctx, r, body); err != nil {
				return err
			}
		}
		return nil
	})
}
