package requests

import "github.com/buildbuildio/mosaic/gqlerrors"

// Response is a standard graphql response envelope
type Response struct {
	Errors gqlerrors.ErrorList    `json:"errors,omitempty"`
	Data   map[string]interface{} `json:"data"`
}
