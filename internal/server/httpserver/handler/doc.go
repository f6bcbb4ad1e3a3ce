// Package handler provides HTTP request handlers for the admin API.
//
// This package contains handlers for all admin HTTP endpoints:
//
//   - admin.go: Status and snapshot management
//   - health.go: Health and readiness checks
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate request
//   - Call the storage engine
//   - Format and return response
//   - Handle errors with appropriate HTTP status codes
package handler
