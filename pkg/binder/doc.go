// Package binder decodes JSON request bodies into structs.
//
// Decoding is strict: the content type must be application/json, unknown
// fields are rejected, the body must hold exactly one JSON value and it may
// not exceed the size limit.
//
//	var req CheckoutRequest
//	if err := binder.JSON(r, &req); err != nil {
//		respond.Error(w, http.StatusBadRequest, err.Error())
//		return
//	}
package binder
