// Package apperr defines the error taxonomy shared by the auth and platform
// services.
//
// Every domain failure is an *Error carrying a Kind. Transport code maps the
// kind to a status code (see httputil.WriteAppError) instead of inspecting
// messages:
//
//	if err := svc.Delete(ctx, caller, id); err != nil {
//		httputil.WriteAppError(w, err)
//		return
//	}
//
// Errors that are not *Error (store outages, encoding failures) are treated
// as KindInternal.
package apperr
