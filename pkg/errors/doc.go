// Package errors provides structured error handling with error codes for simple-rbac.
//
// Every reportable condition raised by the repositories, the relationship engine and the
// entity services carries an ErrorCode that the HTTP layer maps to a status code.
//
// # Error Codes
//
//   - ErrCodeNotFound: the id or natural key does not resolve to a stored record (404)
//   - ErrCodeConflict: a uniqueness pre-check failed before any write (409)
//   - ErrCodeInvalidInput, ErrCodeValidationFailed, ErrCodeInvalidID: bad payloads (400)
//   - ErrCodeRateLimited: the client exceeded the request budget (429)
//   - ErrCodeStoreFailure: the entity store returned an error (500)
//
// # Basic Usage
//
//	role, found, err := repo.FindByID(ctx, id, model.RolePermissions)
//	if err != nil {
//		return nil, err
//	}
//	if !found {
//		return nil, errors.NotFound("role", id.String())
//	}
//
//	if errors.IsCode(err, errors.ErrCodeConflict) {
//		// duplicate name
//	}
//
// # Public Messages
//
// PublicMessage hides the detail of 5xx errors. Handlers log the full error and send
// only the public message to clients:
//
//	slog.Error("request failed", "err", err)
//	httpx.Error(w, r, err)
package errors
